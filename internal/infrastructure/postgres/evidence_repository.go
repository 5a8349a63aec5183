package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sumarte/internal/domain/evidence"
)

// EvidenceRepository implements evidence.Repository using PostgreSQL.
type EvidenceRepository struct {
	db *DB
}

func NewEvidenceRepository(db *DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

const evidenceColumns = `id, project_id, name, mime_type, version, previous_id,
	uploaded_by, uploaded_at, deleted, deleted_at, deleted_by`

func (r *EvidenceRepository) Create(ctx context.Context, params evidence.CreateParams) (*evidence.Evidence, error) {
	// A new version of earlier evidence takes its predecessor's version
	// plus one; fresh evidence starts at 1.
	query := `
		INSERT INTO evidences (id, project_id, name, mime_type, previous_id, uploaded_by, version)
		VALUES ($1, $2, $3, $4, $5, $6,
			COALESCE((SELECT version + 1 FROM evidences WHERE id = $5), 1))
		RETURNING ` + evidenceColumns

	row := querierFrom(ctx, r.db).QueryRowContext(
		ctx, query,
		params.ID, params.ProjectID, params.Name, params.MimeType,
		params.PreviousID, params.UploadedBy,
	)

	ev, err := scanEvidence(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create evidence: %w", err)
	}
	return ev, nil
}

func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*evidence.Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidences WHERE id = $1`

	row := querierFrom(ctx, r.db).QueryRowContext(ctx, query, id)
	ev, err := scanEvidence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}
	return ev, nil
}

func (r *EvidenceRepository) Link(ctx context.Context, transactionID, evidenceID string) error {
	query := `
		INSERT INTO transaction_evidences (transaction_id, evidence_id)
		VALUES ($1, $2)
		ON CONFLICT (transaction_id, evidence_id) DO NOTHING`

	if _, err := querierFrom(ctx, r.db).ExecContext(ctx, query, transactionID, evidenceID); err != nil {
		return fmt.Errorf("failed to link evidence: %w", err)
	}
	return nil
}

func (r *EvidenceRepository) Unlink(ctx context.Context, transactionID, evidenceID string) error {
	query := `DELETE FROM transaction_evidences WHERE transaction_id = $1 AND evidence_id = $2`

	if _, err := querierFrom(ctx, r.db).ExecContext(ctx, query, transactionID, evidenceID); err != nil {
		return fmt.Errorf("failed to unlink evidence: %w", err)
	}
	return nil
}

func (r *EvidenceRepository) SoftDelete(ctx context.Context, id string, deletedBy int64, deletedAt time.Time) error {
	query := `
		UPDATE evidences
		SET deleted = TRUE, deleted_at = $2, deleted_by = $3
		WHERE id = $1 AND NOT deleted`

	result, err := querierFrom(ctx, r.db).ExecContext(ctx, query, id, deletedAt, deletedBy)
	if err != nil {
		return fmt.Errorf("failed to soft delete evidence: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return evidence.ErrEvidenceNotFound
	}
	return nil
}

func (r *EvidenceRepository) Restore(ctx context.Context, id string) error {
	query := `
		UPDATE evidences
		SET deleted = FALSE, deleted_at = NULL, deleted_by = NULL
		WHERE id = $1 AND deleted`

	result, err := querierFrom(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to restore evidence: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return evidence.ErrEvidenceNotFound
	}
	return nil
}

func (r *EvidenceRepository) CountActiveByTransaction(ctx context.Context, transactionID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM transaction_evidences te
		JOIN evidences e ON e.id = te.evidence_id
		WHERE te.transaction_id = $1 AND NOT e.deleted`

	var count int
	err := querierFrom(ctx, r.db).QueryRowContext(ctx, query, transactionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active evidence: %w", err)
	}
	return count, nil
}

func (r *EvidenceRepository) TransactionsWithoutActiveEvidence(ctx context.Context, projectID int64) ([]string, error) {
	query := `
		SELECT t.id
		FROM transactions t
		WHERE t.project_id = $1
		  AND t.state = 'approved'
		  AND NOT EXISTS (
			SELECT 1
			FROM transaction_evidences te
			JOIN evidences e ON e.id = te.evidence_id
			WHERE te.transaction_id = t.id AND NOT e.deleted
		  )
		ORDER BY t.created_at`

	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions without evidence: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *EvidenceRepository) ListByProject(ctx context.Context, projectID int64, includeDeleted bool) ([]*evidence.Evidence, error) {
	query := `
		SELECT ` + evidenceColumns + `
		FROM evidences
		WHERE project_id = $1 AND ($2 OR NOT deleted)
		ORDER BY uploaded_at`

	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, query, projectID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidences: %w", err)
	}
	defer rows.Close()

	var evidences []*evidence.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		evidences = append(evidences, ev)
	}
	return evidences, rows.Err()
}

func scanEvidence(row RowScanner) (*evidence.Evidence, error) {
	var ev evidence.Evidence
	err := row.Scan(
		&ev.ID, &ev.ProjectID, &ev.Name, &ev.MimeType, &ev.Version, &ev.PreviousID,
		&ev.UploadedBy, &ev.UploadedAt, &ev.Deleted, &ev.DeletedAt, &ev.DeletedBy,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
