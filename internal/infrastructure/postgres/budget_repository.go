package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"sumarte/internal/domain/budget"
)

type BudgetRepository struct {
	db *DB
}

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func (r *BudgetRepository) CreateItem(ctx context.Context, params budget.CreateItemParams) (*budget.Item, error) {
	query := `
		INSERT INTO budget_items (project_id, name, assigned, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, project_id, name, assigned, executed, category
	`

	var item budget.Item
	err := querierFrom(ctx, r.db).QueryRowContext(
		ctx, query, params.ProjectID, params.Name, params.Assigned, params.Category,
	).Scan(&item.ID, &item.ProjectID, &item.Name, &item.Assigned, &item.Executed, &item.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to create budget item: %w", err)
	}
	return &item, nil
}

func (r *BudgetRepository) CreateSubitem(ctx context.Context, params budget.CreateSubitemParams) (*budget.Subitem, error) {
	query := `
		INSERT INTO budget_subitems (item_id, name, assigned, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, item_id, name, assigned, executed, category
	`

	var subitem budget.Subitem
	err := querierFrom(ctx, r.db).QueryRowContext(
		ctx, query, params.ItemID, params.Name, params.Assigned, params.Category,
	).Scan(&subitem.ID, &subitem.ItemID, &subitem.Name, &subitem.Assigned, &subitem.Executed, &subitem.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to create budget subitem: %w", err)
	}
	return &subitem, nil
}

func (r *BudgetRepository) GetItemByID(ctx context.Context, id int64) (*budget.Item, error) {
	return r.getItem(ctx, `SELECT id, project_id, name, assigned, executed, category
		FROM budget_items WHERE id = $1`, id)
}

func (r *BudgetRepository) GetItemForUpdate(ctx context.Context, id int64) (*budget.Item, error) {
	return r.getItem(ctx, `SELECT id, project_id, name, assigned, executed, category
		FROM budget_items WHERE id = $1 FOR UPDATE`, id)
}

func (r *BudgetRepository) getItem(ctx context.Context, query string, id int64) (*budget.Item, error) {
	var item budget.Item
	err := querierFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.ProjectID, &item.Name, &item.Assigned, &item.Executed, &item.Category,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget item: %w", err)
	}
	return &item, nil
}

func (r *BudgetRepository) GetSubitemByID(ctx context.Context, id int64) (*budget.Subitem, error) {
	return r.getSubitem(ctx, `SELECT id, item_id, name, assigned, executed, category
		FROM budget_subitems WHERE id = $1`, id)
}

func (r *BudgetRepository) GetSubitemForUpdate(ctx context.Context, id int64) (*budget.Subitem, error) {
	return r.getSubitem(ctx, `SELECT id, item_id, name, assigned, executed, category
		FROM budget_subitems WHERE id = $1 FOR UPDATE`, id)
}

func (r *BudgetRepository) getSubitem(ctx context.Context, query string, id int64) (*budget.Subitem, error) {
	var subitem budget.Subitem
	err := querierFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&subitem.ID, &subitem.ItemID, &subitem.Name, &subitem.Assigned, &subitem.Executed, &subitem.Category,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget subitem: %w", err)
	}
	return &subitem, nil
}

func (r *BudgetRepository) AddItemExecuted(ctx context.Context, id int64, delta decimal.Decimal) error {
	result, err := querierFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE budget_items SET executed = executed + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("failed to update budget item executed amount: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return budget.ErrItemNotFound
	}
	return nil
}

func (r *BudgetRepository) AddSubitemExecuted(ctx context.Context, id int64, delta decimal.Decimal) error {
	result, err := querierFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE budget_subitems SET executed = executed + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("failed to update budget subitem executed amount: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return budget.ErrSubitemNotFound
	}
	return nil
}

func (r *BudgetRepository) ListItemsByProject(ctx context.Context, projectID int64) ([]*budget.Item, error) {
	query := `SELECT id, project_id, name, assigned, executed, category
		FROM budget_items WHERE project_id = $1 ORDER BY name`

	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budget items: %w", err)
	}
	defer rows.Close()

	var items []*budget.Item
	for rows.Next() {
		var item budget.Item
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Name, &item.Assigned, &item.Executed, &item.Category); err != nil {
			return nil, fmt.Errorf("failed to scan budget item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *BudgetRepository) ListSubitemsByItem(ctx context.Context, itemID int64) ([]*budget.Subitem, error) {
	query := `SELECT id, item_id, name, assigned, executed, category
		FROM budget_subitems WHERE item_id = $1 ORDER BY name`

	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budget subitems: %w", err)
	}
	defer rows.Close()

	var subitems []*budget.Subitem
	for rows.Next() {
		var subitem budget.Subitem
		if err := rows.Scan(&subitem.ID, &subitem.ItemID, &subitem.Name, &subitem.Assigned, &subitem.Executed, &subitem.Category); err != nil {
			return nil, fmt.Errorf("failed to scan budget subitem: %w", err)
		}
		subitems = append(subitems, &subitem)
	}
	return subitems, rows.Err()
}

// ApprovedExpenseTotals aggregates approved expense transactions per
// item, counting those linked through a subitem against the parent item.
func (r *BudgetRepository) ApprovedExpenseTotals(ctx context.Context, projectID int64) (map[int64]budget.ApprovedTotal, error) {
	query := `
		SELECT COALESCE(t.item_id, s.item_id) AS item_id,
		       COALESCE(SUM(t.amount), 0), COUNT(*)
		FROM transactions t
		LEFT JOIN budget_subitems s ON s.id = t.subitem_id
		WHERE t.project_id = $1
		  AND t.state = 'approved'
		  AND t.kind = 'expense'
		  AND COALESCE(t.item_id, s.item_id) IS NOT NULL
		GROUP BY COALESCE(t.item_id, s.item_id)
	`

	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate approved expenses: %w", err)
	}
	defer rows.Close()

	totals := make(map[int64]budget.ApprovedTotal)
	for rows.Next() {
		var itemID int64
		var t budget.ApprovedTotal
		if err := rows.Scan(&itemID, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan approved expense total: %w", err)
		}
		totals[itemID] = t
	}
	return totals, rows.Err()
}
