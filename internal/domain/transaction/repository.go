package transaction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for transaction data access.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) (*Transaction, error)
	GetByID(ctx context.Context, id string) (*Transaction, error)
	// GetForUpdate loads the transaction row under a pessimistic row
	// lock, so two concurrent approvals of the same transaction serialize.
	GetForUpdate(ctx context.Context, id string) (*Transaction, error)
	// FindByProviderAndDocument returns the transaction holding the
	// (provider, document number) pair in any state, excluding excludeID
	// when non-empty. Returns nil when the pair is free.
	FindByProviderAndDocument(ctx context.Context, providerID int64, documentNumber, excludeID string) (*Transaction, error)
	Update(ctx context.Context, tx *Transaction) (*Transaction, error)
	MarkApproved(ctx context.Context, id string, approverID int64, approvedAt time.Time) error
	MarkRejected(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListByProject(ctx context.Context, projectID int64, limit, offset int) ([]*Transaction, error)
	// ListPending returns the project's pending transactions excluding
	// those created by excludeCreatorID (segregation-of-duties worklist).
	ListPending(ctx context.Context, projectID, excludeCreatorID int64) ([]*Transaction, error)
	CountByState(ctx context.Context, projectID int64, state State) (int64, error)
	// SumApprovedExpenses totals the approved expense amounts of the
	// project, for the pre-closure reconciliation check.
	SumApprovedExpenses(ctx context.Context, projectID int64) (decimal.Decimal, error)
}

// TxManager runs fn inside one atomic storage transaction. Everything a
// service does through its repositories within fn either commits as a
// unit or rolls back entirely.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
