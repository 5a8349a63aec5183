package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"sumarte/internal/domain/project"
)

type ProjectRepository struct {
	db *DB
}

func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, organization_id, name, start_date, end_date, total_budget, executed, state`

func (r *ProjectRepository) Create(ctx context.Context, params project.CreateParams) (*project.Project, error) {
	query := `
		INSERT INTO projects (organization_id, name, start_date, end_date, total_budget, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + projectColumns

	state := params.State
	if state == "" {
		state = project.StateInactive
	}

	var p project.Project
	err := querierFrom(ctx, r.db).QueryRowContext(
		ctx, query,
		params.OrganizationID, params.Name, params.StartDate, params.EndDate,
		params.TotalBudget, state,
	).Scan(
		&p.ID, &p.OrganizationID, &p.Name, &p.StartDate, &p.EndDate,
		&p.TotalBudget, &p.Executed, &p.State,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return &p, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*project.Project, error) {
	return r.get(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

func (r *ProjectRepository) GetForUpdate(ctx context.Context, id int64) (*project.Project, error) {
	return r.get(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id)
}

func (r *ProjectRepository) get(ctx context.Context, query string, id int64) (*project.Project, error) {
	var p project.Project
	err := querierFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.OrganizationID, &p.Name, &p.StartDate, &p.EndDate,
		&p.TotalBudget, &p.Executed, &p.State,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

func (r *ProjectRepository) ApplyAmounts(ctx context.Context, id int64, executedDelta, budgetDelta decimal.Decimal) error {
	query := `
		UPDATE projects
		SET executed = executed + $2, total_budget = total_budget + $3
		WHERE id = $1
	`

	result, err := querierFrom(ctx, r.db).ExecContext(ctx, query, id, executedDelta, budgetDelta)
	if err != nil {
		return fmt.Errorf("failed to update project amounts: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return project.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) SetState(ctx context.Context, id int64, state project.State) error {
	result, err := querierFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE projects SET state = $2 WHERE id = $1`, id, state)
	if err != nil {
		return fmt.Errorf("failed to set project state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return project.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) ListByOrganization(ctx context.Context, organizationID int64) ([]*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE organization_id = $1 ORDER BY name`

	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		var p project.Project
		if err := rows.Scan(
			&p.ID, &p.OrganizationID, &p.Name, &p.StartDate, &p.EndDate,
			&p.TotalBudget, &p.Executed, &p.State,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

type OrganizationRepository struct {
	db *DB
}

func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, params project.CreateOrganizationParams) (*project.Organization, error) {
	query := `
		INSERT INTO organizations (name, tax_id, subscription_plan, subscription_state, subscribed_since)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, tax_id, subscription_plan, subscription_state, subscribed_since
	`

	var o project.Organization
	err := querierFrom(ctx, r.db).QueryRowContext(
		ctx, query,
		params.Name, params.TaxID, params.SubscriptionPlan, params.SubscriptionState, params.SubscribedSince,
	).Scan(&o.ID, &o.Name, &o.TaxID, &o.SubscriptionPlan, &o.SubscriptionState, &o.SubscribedSince)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return &o, nil
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id int64) (*project.Organization, error) {
	return r.get(ctx, `SELECT id, name, tax_id, subscription_plan, subscription_state, subscribed_since
		FROM organizations WHERE id = $1`, id)
}

func (r *OrganizationRepository) GetByTaxID(ctx context.Context, taxID string) (*project.Organization, error) {
	return r.get(ctx, `SELECT id, name, tax_id, subscription_plan, subscription_state, subscribed_since
		FROM organizations WHERE tax_id = $1`, taxID)
}

func (r *OrganizationRepository) get(ctx context.Context, query string, arg any) (*project.Organization, error) {
	var o project.Organization
	err := querierFrom(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&o.ID, &o.Name, &o.TaxID, &o.SubscriptionPlan, &o.SubscriptionState, &o.SubscribedSince,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}
