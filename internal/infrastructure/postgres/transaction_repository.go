package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sumarte/internal/domain/transaction"
)

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, project_id, creator_id, provider_id, amount, registration_date,
	document_number, document_type, kind, state, item_id, subitem_id, expense_category,
	bank_account_number, bank_operation_number, approver_id, approved_at, created_at, updated_at`

func (r *TransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) (*transaction.Transaction, error) {
	query := `
		INSERT INTO transactions (id, project_id, creator_id, provider_id, amount, registration_date,
			document_number, document_type, kind, state, item_id, subitem_id, expense_category,
			bank_account_number, bank_operation_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + transactionColumns

	row := querierFrom(ctx, r.db).QueryRowContext(
		ctx, query,
		txn.ID, txn.ProjectID, txn.CreatorID, txn.ProviderID, txn.Amount, txn.RegistrationDate,
		txn.DocumentNumber, txn.DocumentType, txn.Kind, txn.State, txn.ItemID, txn.SubitemID,
		txn.ExpenseCategory, txn.BankAccountNumber, txn.BankOperationNumber,
	)

	created, err := scanTransaction(row)
	if err != nil {
		// The unique index on (provider_id, document_number) closes the
		// window between the duplicate check and this insert.
		if isUniqueViolation(err, "transactions_provider_document_key") {
			return nil, &transaction.DuplicateTransactionError{}
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return created, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *TransactionRepository) GetForUpdate(ctx context.Context, id string) (*transaction.Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *TransactionRepository) get(ctx context.Context, query string, args ...any) (*transaction.Transaction, error) {
	txn, err := scanTransaction(querierFrom(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

func (r *TransactionRepository) FindByProviderAndDocument(ctx context.Context, providerID int64, documentNumber, excludeID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE provider_id = $1 AND document_number = $2 AND ($3 = '' OR id::text <> $3)
		LIMIT 1`
	return r.get(ctx, query, providerID, documentNumber, excludeID)
}

func (r *TransactionRepository) Update(ctx context.Context, txn *transaction.Transaction) (*transaction.Transaction, error) {
	query := `
		UPDATE transactions
		SET provider_id = $2, amount = $3, registration_date = $4, document_number = $5,
		    document_type = $6, item_id = $7, subitem_id = $8, expense_category = $9,
		    bank_account_number = $10, bank_operation_number = $11, updated_at = now()
		WHERE id = $1
		RETURNING ` + transactionColumns

	row := querierFrom(ctx, r.db).QueryRowContext(
		ctx, query,
		txn.ID, txn.ProviderID, txn.Amount, txn.RegistrationDate, txn.DocumentNumber,
		txn.DocumentType, txn.ItemID, txn.SubitemID, txn.ExpenseCategory,
		txn.BankAccountNumber, txn.BankOperationNumber,
	)

	updated, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		if isUniqueViolation(err, "transactions_provider_document_key") {
			return nil, &transaction.DuplicateTransactionError{}
		}
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	return updated, nil
}

func (r *TransactionRepository) MarkApproved(ctx context.Context, id string, approverID int64, approvedAt time.Time) error {
	query := `
		UPDATE transactions
		SET state = 'approved', approver_id = $2, approved_at = $3, updated_at = now()
		WHERE id = $1 AND state = 'pending'
	`

	result, err := querierFrom(ctx, r.db).ExecContext(ctx, query, id, approverID, approvedAt)
	if err != nil {
		return fmt.Errorf("failed to approve transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) MarkRejected(ctx context.Context, id string) error {
	query := `
		UPDATE transactions
		SET state = 'rejected', updated_at = now()
		WHERE id = $1 AND state = 'pending'
	`

	result, err := querierFrom(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reject transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id string) error {
	result, err := querierFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) ListByProject(ctx context.Context, projectID int64, limit, offset int) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE project_id = $1
		ORDER BY registration_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, query, projectID, limit, offset)
}

func (r *TransactionRepository) ListPending(ctx context.Context, projectID, excludeCreatorID int64) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE project_id = $1 AND state = 'pending' AND creator_id <> $2
		ORDER BY registration_date DESC, created_at DESC`
	return r.list(ctx, query, projectID, excludeCreatorID)
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (r *TransactionRepository) CountByState(ctx context.Context, projectID int64, state transaction.State) (int64, error) {
	var count int64
	err := querierFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE project_id = $1 AND state = $2`,
		projectID, state,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) SumApprovedExpenses(ctx context.Context, projectID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := querierFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions
		 WHERE project_id = $1 AND state = 'approved' AND kind = 'expense'`,
		projectID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum approved expenses: %w", err)
	}
	return total, nil
}

func scanTransaction(row RowScanner) (*transaction.Transaction, error) {
	var txn transaction.Transaction
	var approverID sql.NullInt64
	var approvedAt sql.NullTime

	err := row.Scan(
		&txn.ID, &txn.ProjectID, &txn.CreatorID, &txn.ProviderID, &txn.Amount, &txn.RegistrationDate,
		&txn.DocumentNumber, &txn.DocumentType, &txn.Kind, &txn.State, &txn.ItemID, &txn.SubitemID,
		&txn.ExpenseCategory, &txn.BankAccountNumber, &txn.BankOperationNumber,
		&approverID, &approvedAt, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approverID.Valid {
		txn.ApproverID = &approverID.Int64
	}
	if approvedAt.Valid {
		txn.ApprovedAt = &approvedAt.Time
	}
	return &txn, nil
}
