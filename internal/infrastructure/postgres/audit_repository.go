package postgres

import (
	"context"
	"fmt"

	"sumarte/internal/domain/audit"
)

// AuditRepository is append-only by construction: it exposes no update
// or delete statements.
type AuditRepository struct {
	db *DB
}

func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `id, transaction_id, project_id, user_id, action, detail,
	tombstone_id, tombstone_document, tombstone_amount, occurred_at`

func (r *AuditRepository) Append(ctx context.Context, params audit.AppendParams) (*audit.Entry, error) {
	query := `
		INSERT INTO audit_log (transaction_id, project_id, user_id, action, detail,
			tombstone_id, tombstone_document, tombstone_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + auditColumns

	row := querierFrom(ctx, r.db).QueryRowContext(
		ctx, query,
		params.TransactionID, params.ProjectID, params.UserID, params.Action, params.Detail,
		params.TombstoneID, params.TombstoneDoc, params.TombstoneAmt,
	)

	entry, err := scanAuditEntry(row)
	if err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return entry, nil
}

func (r *AuditRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*audit.Entry, error) {
	query := `SELECT ` + auditColumns + `
		FROM audit_log
		WHERE transaction_id = $1 OR tombstone_id = $1
		ORDER BY occurred_at, id`
	return r.list(ctx, query, transactionID)
}

func (r *AuditRepository) ListByProject(ctx context.Context, projectID int64) ([]*audit.Entry, error) {
	query := `SELECT ` + auditColumns + `
		FROM audit_log
		WHERE project_id = $1
		ORDER BY occurred_at, id`
	return r.list(ctx, query, projectID)
}

func (r *AuditRepository) list(ctx context.Context, query string, arg any) ([]*audit.Entry, error) {
	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanAuditEntry(row RowScanner) (*audit.Entry, error) {
	var entry audit.Entry
	err := row.Scan(
		&entry.ID, &entry.TransactionID, &entry.ProjectID, &entry.UserID, &entry.Action,
		&entry.Detail, &entry.TombstoneID, &entry.TombstoneDoc, &entry.TombstoneAmt,
		&entry.OccurredAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
