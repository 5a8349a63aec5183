package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"sumarte/internal/domain/project"
)

// Entry is the monetary effect of one approved transaction, as seen by
// the ledger. SubitemID wins over ItemID when both are set: the subitem
// and its parent item are both updated.
type Entry struct {
	ProjectID int64
	ItemID    *int64
	SubitemID *int64
	Amount    decimal.Decimal
	Income    bool
}

// Service maintains the cached executed amounts across the budget
// hierarchy. Apply and Reverse must run inside the same storage
// transaction as the state change that triggered them; they assume the
// caller already holds (or is about to take) the relevant row locks.
type Service struct {
	repo     Repository
	projects project.Repository
}

// NewService creates a new budget service.
func NewService(repo Repository, projects project.Repository) *Service {
	return &Service{repo: repo, projects: projects}
}

// Apply adds the entry's amount to the executed totals of the linked
// subitem, its parent item (or the directly linked item), and the
// project. Income raises the project's total budget instead of its
// executed amount; that asymmetry is intentional.
func (s *Service) Apply(ctx context.Context, entry Entry) error {
	return s.shift(ctx, entry, entry.Amount)
}

// Reverse undoes Apply with the exact inverse arithmetic. Used when an
// approved transaction is physically deleted.
func (s *Service) Reverse(ctx context.Context, entry Entry) error {
	return s.shift(ctx, entry, entry.Amount.Neg())
}

func (s *Service) shift(ctx context.Context, entry Entry, delta decimal.Decimal) error {
	switch {
	case entry.SubitemID != nil:
		subitem, err := s.repo.GetSubitemForUpdate(ctx, *entry.SubitemID)
		if err != nil {
			return fmt.Errorf("failed to lock budget subitem %d: %w", *entry.SubitemID, err)
		}
		if subitem == nil {
			return ErrSubitemNotFound
		}
		if err := s.repo.AddSubitemExecuted(ctx, subitem.ID, delta); err != nil {
			return fmt.Errorf("failed to update budget subitem %d: %w", subitem.ID, err)
		}
		// The parent item carries the subitem's execution as well.
		item, err := s.repo.GetItemForUpdate(ctx, subitem.ItemID)
		if err != nil {
			return fmt.Errorf("failed to lock budget item %d: %w", subitem.ItemID, err)
		}
		if item == nil {
			return ErrItemNotFound
		}
		if err := s.repo.AddItemExecuted(ctx, subitem.ItemID, delta); err != nil {
			return fmt.Errorf("failed to update budget item %d: %w", subitem.ItemID, err)
		}
	case entry.ItemID != nil:
		item, err := s.repo.GetItemForUpdate(ctx, *entry.ItemID)
		if err != nil {
			return fmt.Errorf("failed to lock budget item %d: %w", *entry.ItemID, err)
		}
		if item == nil {
			return ErrItemNotFound
		}
		if err := s.repo.AddItemExecuted(ctx, *entry.ItemID, delta); err != nil {
			return fmt.Errorf("failed to update budget item %d: %w", *entry.ItemID, err)
		}
	}

	executedDelta := delta
	budgetDelta := decimal.Zero
	if entry.Income {
		executedDelta = decimal.Zero
		budgetDelta = delta
	}
	if err := s.projects.ApplyAmounts(ctx, entry.ProjectID, executedDelta, budgetDelta); err != nil {
		return fmt.Errorf("failed to update project %d totals: %w", entry.ProjectID, err)
	}
	return nil
}

// ProjectMetrics computes the execution summary for a project from its
// items plus the cached project totals.
func (s *Service) ProjectMetrics(ctx context.Context, projectID int64) (*ProjectMetrics, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, project.ErrProjectNotFound
	}

	items, err := s.repo.ListItemsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	withBalance := 0
	for _, item := range items {
		if item.Balance().IsPositive() {
			withBalance++
		}
	}

	pct := 0.0
	if p.TotalBudget.IsPositive() {
		pct, _ = p.Executed.Div(p.TotalBudget).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	}

	return &ProjectMetrics{
		TotalBudget:      p.TotalBudget,
		Executed:         p.Executed,
		Available:        p.Available(),
		PercentExecuted:  pct,
		ItemCount:        len(items),
		ItemsWithBalance: withBalance,
	}, nil
}

// SpendByItem returns the per-item breakdown of approved expenses.
func (s *Service) SpendByItem(ctx context.Context, projectID int64) ([]*ItemSpend, error) {
	items, err := s.repo.ListItemsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.ApprovedExpenseTotals(ctx, projectID)
	if err != nil {
		return nil, err
	}

	spend := make([]*ItemSpend, 0, len(items))
	for _, item := range items {
		t := totals[item.ID]
		spend = append(spend, &ItemSpend{
			ItemID:           item.ID,
			Name:             item.Name,
			Assigned:         item.Assigned,
			Executed:         item.Executed,
			Balance:          item.Balance(),
			PercentExecuted:  item.PercentExecuted(),
			ApprovedTotal:    t.Total,
			TransactionCount: t.Count,
		})
	}
	return spend, nil
}

// ResolveTarget loads the item/subitem pair an expense entry points at.
// When a subitem is linked its parent item is resolved too, so callers
// can validate both levels.
func (s *Service) ResolveTarget(ctx context.Context, itemID, subitemID *int64) (*Item, *Subitem, error) {
	var (
		item    *Item
		subitem *Subitem
		err     error
	)
	if subitemID != nil {
		subitem, err = s.repo.GetSubitemByID(ctx, *subitemID)
		if err != nil {
			return nil, nil, err
		}
		if subitem == nil {
			return nil, nil, ErrSubitemNotFound
		}
		item, err = s.repo.GetItemByID(ctx, subitem.ItemID)
		if err != nil {
			return nil, nil, err
		}
		if item == nil {
			return nil, nil, ErrItemNotFound
		}
		return item, subitem, nil
	}
	if itemID != nil {
		item, err = s.repo.GetItemByID(ctx, *itemID)
		if err != nil {
			return nil, nil, err
		}
		if item == nil {
			return nil, nil, ErrItemNotFound
		}
	}
	return item, subitem, nil
}

// LockTarget is ResolveTarget under pessimistic row locks, for the
// approval path: the balance read and the later executed-amount write
// must see the same row. Lock order is subitem before parent item,
// matching Apply, so concurrent approvals cannot deadlock.
func (s *Service) LockTarget(ctx context.Context, itemID, subitemID *int64) (*Item, *Subitem, error) {
	if subitemID != nil {
		subitem, err := s.repo.GetSubitemForUpdate(ctx, *subitemID)
		if err != nil {
			return nil, nil, err
		}
		if subitem == nil {
			return nil, nil, ErrSubitemNotFound
		}
		item, err := s.repo.GetItemForUpdate(ctx, subitem.ItemID)
		if err != nil {
			return nil, nil, err
		}
		if item == nil {
			return nil, nil, ErrItemNotFound
		}
		return item, subitem, nil
	}
	if itemID != nil {
		item, err := s.repo.GetItemForUpdate(ctx, *itemID)
		if err != nil {
			return nil, nil, err
		}
		if item == nil {
			return nil, nil, ErrItemNotFound
		}
		return item, nil, nil
	}
	return nil, nil, nil
}

// IsNotFound reports whether err marks a missing hierarchy node.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrSubitemNotFound)
}
