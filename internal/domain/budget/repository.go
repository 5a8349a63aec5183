package budget

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for budget hierarchy data access.
type Repository interface {
	CreateItem(ctx context.Context, params CreateItemParams) (*Item, error)
	CreateSubitem(ctx context.Context, params CreateSubitemParams) (*Subitem, error)
	GetItemByID(ctx context.Context, id int64) (*Item, error)
	GetSubitemByID(ctx context.Context, id int64) (*Subitem, error)
	// GetItemForUpdate and GetSubitemForUpdate load the row under a
	// pessimistic row lock. Must be called inside a storage transaction
	// so the balance read and the executed-amount write are one unit.
	GetItemForUpdate(ctx context.Context, id int64) (*Item, error)
	GetSubitemForUpdate(ctx context.Context, id int64) (*Subitem, error)
	// AddItemExecuted and AddSubitemExecuted atomically add delta to the
	// executed amount. Delta may be negative (reversal).
	AddItemExecuted(ctx context.Context, id int64, delta decimal.Decimal) error
	AddSubitemExecuted(ctx context.Context, id int64, delta decimal.Decimal) error
	ListItemsByProject(ctx context.Context, projectID int64) ([]*Item, error)
	ListSubitemsByItem(ctx context.Context, itemID int64) ([]*Subitem, error)
	// ApprovedExpenseTotals returns, per item of the project, the sum and
	// count of approved expense transactions linked to the item directly
	// or through one of its subitems.
	ApprovedExpenseTotals(ctx context.Context, projectID int64) (map[int64]ApprovedTotal, error)
}

// ApprovedTotal aggregates approved expense transactions for one item.
type ApprovedTotal struct {
	Total decimal.Decimal
	Count int64
}
