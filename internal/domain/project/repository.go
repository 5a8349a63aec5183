package project

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for project data access.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Project, error)
	GetByID(ctx context.Context, id int64) (*Project, error)
	// GetForUpdate loads the project row under a pessimistic row lock.
	// Must be called inside a storage transaction; the lock is held until
	// that transaction commits or rolls back.
	GetForUpdate(ctx context.Context, id int64) (*Project, error)
	// ApplyAmounts atomically adds executedDelta to the executed total and
	// budgetDelta to the total budget. Deltas may be negative (reversal).
	ApplyAmounts(ctx context.Context, id int64, executedDelta, budgetDelta decimal.Decimal) error
	SetState(ctx context.Context, id int64, state State) error
	ListByOrganization(ctx context.Context, organizationID int64) ([]*Project, error)
}

// OrganizationRepository defines the interface for organization data access.
type OrganizationRepository interface {
	Create(ctx context.Context, params CreateOrganizationParams) (*Organization, error)
	GetByID(ctx context.Context, id int64) (*Organization, error)
	GetByTaxID(ctx context.Context, taxID string) (*Organization, error)
}
