package audit

import "context"

// Repository defines the interface for the audit trail. The trail is
// append-only: there is no update or delete. Append participates in the
// caller's storage transaction, so a failed append rolls back the whole
// business operation rather than leaving a silent gap in the trail.
type Repository interface {
	Append(ctx context.Context, params AppendParams) (*Entry, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]*Entry, error)
	ListByProject(ctx context.Context, projectID int64) ([]*Entry, error)
}
