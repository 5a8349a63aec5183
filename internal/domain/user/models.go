package user

import "errors"

var ErrUserNotFound = errors.New("user not found")

// User identifies an operator. Authorization beyond the four-eyes rule
// on approvals is out of scope; the id is what the audit trail records.
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	PasswordHash   string `json:"-"`
	OrganizationID *int64 `json:"organizationId,omitempty"`
}

// CreateParams contains parameters for creating a user.
type CreateParams struct {
	Username       string
	PasswordHash   string
	OrganizationID *int64
}
