package evidence

import (
	"context"
	"time"
)

// Repository defines the interface for evidence metadata and the
// transaction-evidence links.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Evidence, error)
	GetByID(ctx context.Context, id string) (*Evidence, error)
	// Link associates evidence with a transaction. Linking the same pair
	// twice is a no-op at the storage layer (unique pair).
	Link(ctx context.Context, transactionID, evidenceID string) error
	Unlink(ctx context.Context, transactionID, evidenceID string) error
	// SoftDelete tombstones the evidence; Restore clears the tombstone.
	SoftDelete(ctx context.Context, id string, deletedBy int64, deletedAt time.Time) error
	Restore(ctx context.Context, id string) error
	// CountActiveByTransaction counts links whose evidence is not deleted.
	CountActiveByTransaction(ctx context.Context, transactionID string) (int, error)
	// TransactionsWithoutActiveEvidence returns ids of the project's
	// approved transactions that have no active evidence link. Used by
	// the pre-closure audit.
	TransactionsWithoutActiveEvidence(ctx context.Context, projectID int64) ([]string, error)
	ListByProject(ctx context.Context, projectID int64, includeDeleted bool) ([]*Evidence, error)
}
