package budget

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound    = errors.New("budget item not found")
	ErrSubitemNotFound = errors.New("budget subitem not found")
)

// Item is a budget line under a project. Executed is the cached sum of
// approved expense transactions linked to the item directly or through
// one of its subitems; it is mutated only by Service.Apply and
// Service.Reverse.
type Item struct {
	ID        int64           `json:"id"`
	ProjectID int64           `json:"projectId"`
	Name      string          `json:"name"`
	Assigned  decimal.Decimal `json:"assigned"`
	Executed  decimal.Decimal `json:"executed"`
	Category  *string         `json:"category,omitempty"`
}

// Balance returns assigned minus executed.
func (i *Item) Balance() decimal.Decimal {
	return i.Assigned.Sub(i.Executed)
}

// HasSufficientBalance reports whether amount fits within the balance.
func (i *Item) HasSufficientBalance(amount decimal.Decimal) bool {
	return i.Balance().GreaterThanOrEqual(amount)
}

// PercentExecuted returns the executed share of the assignment, 0-100.
func (i *Item) PercentExecuted() float64 {
	if i.Assigned.IsZero() {
		return 0
	}
	pct, _ := i.Executed.Div(i.Assigned).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct
}

// Subitem is one level below an Item, with the same invariants.
type Subitem struct {
	ID       int64           `json:"id"`
	ItemID   int64           `json:"itemId"`
	Name     string          `json:"name"`
	Assigned decimal.Decimal `json:"assigned"`
	Executed decimal.Decimal `json:"executed"`
	Category *string         `json:"category,omitempty"`
}

// Balance returns assigned minus executed.
func (s *Subitem) Balance() decimal.Decimal {
	return s.Assigned.Sub(s.Executed)
}

// HasSufficientBalance reports whether amount fits within the balance.
func (s *Subitem) HasSufficientBalance(amount decimal.Decimal) bool {
	return s.Balance().GreaterThanOrEqual(amount)
}

// PercentExecuted returns the executed share of the assignment, 0-100.
func (s *Subitem) PercentExecuted() float64 {
	if s.Assigned.IsZero() {
		return 0
	}
	pct, _ := s.Executed.Div(s.Assigned).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct
}

// CreateItemParams contains parameters for creating a budget item.
type CreateItemParams struct {
	ProjectID int64
	Name      string
	Assigned  decimal.Decimal
	Category  *string
}

// CreateSubitemParams contains parameters for creating a budget subitem.
type CreateSubitemParams struct {
	ItemID   int64
	Name     string
	Assigned decimal.Decimal
	Category *string
}

// ItemSpend is the approved-expense breakdown for one item.
type ItemSpend struct {
	ItemID           int64           `json:"itemId"`
	Name             string          `json:"name"`
	Assigned         decimal.Decimal `json:"assigned"`
	Executed         decimal.Decimal `json:"executed"`
	Balance          decimal.Decimal `json:"balance"`
	PercentExecuted  float64         `json:"percentExecuted"`
	ApprovedTotal    decimal.Decimal `json:"approvedTotal"`
	TransactionCount int64           `json:"transactionCount"`
}

// ProjectMetrics summarizes budget execution for one project.
type ProjectMetrics struct {
	TotalBudget      decimal.Decimal `json:"totalBudget"`
	Executed         decimal.Decimal `json:"executed"`
	Available        decimal.Decimal `json:"available"`
	PercentExecuted  float64         `json:"percentExecuted"`
	ItemCount        int             `json:"itemCount"`
	ItemsWithBalance int             `json:"itemsWithBalance"`
}
