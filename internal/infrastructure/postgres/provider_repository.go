package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sumarte/internal/domain/provider"
)

type ProviderRepository struct {
	db *DB
}

func NewProviderRepository(db *DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) Create(ctx context.Context, params provider.CreateParams) (*provider.Provider, error) {
	query := `
		INSERT INTO providers (name, tax_id, email)
		VALUES ($1, $2, $3)
		RETURNING id, name, tax_id, email
	`

	var p provider.Provider
	err := querierFrom(ctx, r.db).QueryRowContext(ctx, query, params.Name, params.TaxID, params.Email).
		Scan(&p.ID, &p.Name, &p.TaxID, &p.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return &p, nil
}

func (r *ProviderRepository) GetByID(ctx context.Context, id int64) (*provider.Provider, error) {
	return r.get(ctx, `SELECT id, name, tax_id, email FROM providers WHERE id = $1`, id)
}

func (r *ProviderRepository) GetByTaxID(ctx context.Context, taxID string) (*provider.Provider, error) {
	return r.get(ctx, `SELECT id, name, tax_id, email FROM providers WHERE tax_id = $1`, taxID)
}

func (r *ProviderRepository) get(ctx context.Context, query string, arg any) (*provider.Provider, error) {
	var p provider.Provider
	err := querierFrom(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Name, &p.TaxID, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &p, nil
}

func (r *ProviderRepository) List(ctx context.Context) ([]*provider.Provider, error) {
	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, `SELECT id, name, tax_id, email FROM providers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var providers []*provider.Provider
	for rows.Next() {
		var p provider.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.TaxID, &p.Email); err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, &p)
	}
	return providers, rows.Err()
}
