package provider

import "context"

// Repository defines the interface for provider data access.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Provider, error)
	GetByID(ctx context.Context, id int64) (*Provider, error)
	GetByTaxID(ctx context.Context, taxID string) (*Provider, error)
	List(ctx context.Context) ([]*Provider, error)
}
