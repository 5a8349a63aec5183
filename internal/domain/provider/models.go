package provider

import "errors"

var ErrProviderNotFound = errors.New("provider not found")

// Provider is a supplier issuing the documents behind transactions.
// TaxID is unique; (provider, document number) is the duplicate key for
// transactions system-wide.
type Provider struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	TaxID string `json:"taxId"`
	Email string `json:"email"`
}

// CreateParams contains parameters for registering a new provider.
type CreateParams struct {
	Name  string
	TaxID string
	Email string
}
