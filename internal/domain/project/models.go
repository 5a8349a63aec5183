package project

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Project lifecycle states. States in lockedStates freeze every
// transaction under the project (create, edit, approve, reject, delete)
// until further notice; only the closure workflow itself may move a
// project into one of them.
type State string

const (
	StateInactive    State = "inactive"
	StateActive      State = "active"
	StatePaused      State = "paused"
	StateInRendition State = "in_rendition"
	StateCompleted   State = "completed"
	StateClosed      State = "closed"
)

var lockedStates = map[State]struct{}{
	StateInRendition: {},
	StateCompleted:   {},
	StateClosed:      {},
}

// Locked reports whether the state blocks all transaction mutation.
func (s State) Locked() bool {
	_, ok := lockedStates[s]
	return ok
}

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrOrganizationNotFound = errors.New("organization not found")
)

// LockedError is returned when an operation targets a project whose
// state blocks edits (in rendition, completed or closed).
type LockedError struct {
	ProjectID int64
	State     State
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("project %d is locked for edits (state %q)", e.ProjectID, e.State)
}

func (e *LockedError) Code() string { return "project_locked" }

// Organization owns projects. TaxID is unique across organizations.
type Organization struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	TaxID             string    `json:"taxId"`
	SubscriptionPlan  string    `json:"subscriptionPlan"`
	SubscriptionState string    `json:"subscriptionState"`
	SubscribedSince   time.Time `json:"subscribedSince"`
}

// Project is the top of the budget hierarchy. TotalBudget is the
// assigned ceiling; Executed is the cached sum of approved expense
// amounts, maintained exclusively by the budget service.
type Project struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organizationId"`
	Name           string          `json:"name"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	TotalBudget    decimal.Decimal `json:"totalBudget"`
	Executed       decimal.Decimal `json:"executed"`
	State          State           `json:"state"`
}

// Available returns the budget not yet consumed by approved expenses.
func (p *Project) Available() decimal.Decimal {
	return p.TotalBudget.Sub(p.Executed)
}

// CreateParams contains parameters for registering a new project.
type CreateParams struct {
	OrganizationID int64
	Name           string
	StartDate      time.Time
	EndDate        time.Time
	TotalBudget    decimal.Decimal
	State          State
}

// CreateOrganizationParams contains parameters for registering an organization.
type CreateOrganizationParams struct {
	Name              string
	TaxID             string
	SubscriptionPlan  string
	SubscriptionState string
	SubscribedSince   time.Time
}
