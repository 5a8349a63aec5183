package evidence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service manages evidence metadata and its links to transactions.
// Only the linkage and the active/deleted status matter to the ledger
// core; file contents are handled elsewhere.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new evidence service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Register stores new evidence metadata. A non-nil PreviousID marks
// this as a new version of earlier evidence.
func (s *Service) Register(ctx context.Context, params CreateParams) (*Evidence, error) {
	if params.ID == "" {
		params.ID = uuid.NewString()
	}
	return s.repo.Create(ctx, params)
}

// Attach links evidence to a transaction. Attaching twice is a no-op.
func (s *Service) Attach(ctx context.Context, transactionID, evidenceID string) error {
	ev, err := s.repo.GetByID(ctx, evidenceID)
	if err != nil {
		return err
	}
	if ev == nil {
		return ErrEvidenceNotFound
	}
	return s.repo.Link(ctx, transactionID, evidenceID)
}

// Detach removes the link between a transaction and evidence.
func (s *Service) Detach(ctx context.Context, transactionID, evidenceID string) error {
	return s.repo.Unlink(ctx, transactionID, evidenceID)
}

// SoftDelete tombstones evidence: the row stays for auditability but
// stops counting as active for the pre-closure audit.
func (s *Service) SoftDelete(ctx context.Context, id string, deletedBy int64) error {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ev == nil {
		return ErrEvidenceNotFound
	}
	if ev.Deleted {
		return ErrAlreadyDeleted
	}
	return s.repo.SoftDelete(ctx, id, deletedBy, s.now())
}

// Restore clears a tombstone.
func (s *Service) Restore(ctx context.Context, id string) error {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ev == nil {
		return ErrEvidenceNotFound
	}
	if !ev.Deleted {
		return ErrNotDeleted
	}
	return s.repo.Restore(ctx, id)
}

// ActiveCount returns the number of non-deleted evidence documents
// linked to a transaction.
func (s *Service) ActiveCount(ctx context.Context, transactionID string) (int, error) {
	return s.repo.CountActiveByTransaction(ctx, transactionID)
}
