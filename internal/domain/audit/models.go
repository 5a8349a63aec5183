package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the kind of event recorded against a transaction.
type Action string

const (
	ActionCreated  Action = "created"
	ActionModified Action = "modified"
	ActionDeleted  Action = "deleted"
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
)

// Entry is one append-only audit record. TransactionID is a nullable
// reference: the storage layer sets it to NULL when the transaction row
// is physically removed, while the tombstone fields keep a copy of the
// identifying data so the trail outlives the transaction.
type Entry struct {
	ID            int64            `json:"id"`
	TransactionID *string          `json:"transactionId,omitempty"`
	ProjectID     int64            `json:"projectId"`
	UserID        int64            `json:"userId"`
	Action        Action           `json:"action"`
	Detail        *string          `json:"detail,omitempty"`
	TombstoneID   *string          `json:"tombstoneId,omitempty"`
	TombstoneDoc  *string          `json:"tombstoneDocument,omitempty"`
	TombstoneAmt  *decimal.Decimal `json:"tombstoneAmount,omitempty"`
	OccurredAt    time.Time        `json:"occurredAt"`
}

// AppendParams contains the fields recorded for a new audit entry.
type AppendParams struct {
	TransactionID string
	ProjectID     int64
	UserID        int64
	Action        Action
	Detail        *string
	TombstoneID   *string
	TombstoneDoc  *string
	TombstoneAmt  *decimal.Decimal
}
