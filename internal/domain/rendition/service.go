package rendition

import (
	"context"
	"errors"
	"fmt"

	"sumarte/internal/domain/evidence"
	"sumarte/internal/domain/project"
	"sumarte/internal/domain/transaction"
)

// Service runs the final-accounting closure workflow: a read-only
// integrity audit over a project's transactions, and the state flip
// that locks the project once the audit is clean.
type Service struct {
	txm       transaction.TxManager
	projects  project.Repository
	txns      transaction.Repository
	evidences evidence.Repository
}

// NewService creates a new rendition service.
func NewService(txm transaction.TxManager, projects project.Repository, txns transaction.Repository, evidences evidence.Repository) *Service {
	return &Service{txm: txm, projects: projects, txns: txns, evidences: evidences}
}

// PreClose audits the project without mutating anything.
//
// Errors (block closure): pending transactions exist; approved
// transactions lack active evidence.
// Warnings: rejected transactions exist; the cached executed total
// drifted from the sum of approved expenses.
func (s *Service) PreClose(ctx context.Context, projectID int64) (*Result, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, wrapStorage("audit rendition", err)
	}
	if p == nil {
		return nil, project.ErrProjectNotFound
	}
	result, err := s.audit(ctx, p)
	if err != nil {
		return nil, wrapStorage("audit rendition", err)
	}
	return result, nil
}

// Close re-runs the integrity audit and, when clean, moves the project
// into the completed state. From then on every transaction mutation
// under the project is rejected as locked.
func (s *Service) Close(ctx context.Context, projectID, actorID int64) (*project.Project, error) {
	var closed *project.Project
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.projects.GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if p == nil {
			return project.ErrProjectNotFound
		}
		if p.State.Locked() {
			return &project.LockedError{ProjectID: p.ID, State: p.State}
		}

		result, err := s.audit(ctx, p)
		if err != nil {
			return err
		}
		if !result.Valid {
			return &IncompleteError{ProjectID: p.ID, Errors: result.Errors}
		}

		if err := s.projects.SetState(ctx, p.ID, project.StateCompleted); err != nil {
			return err
		}
		p.State = project.StateCompleted
		closed = p
		return nil
	})
	if err != nil {
		return nil, wrapStorage("close project", err)
	}
	return closed, nil
}

// wrapStorage mirrors the transaction service's boundary policy:
// business errors and not-found sentinels pass through verbatim, any
// other failure is a retryable OperationFailedError.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if transaction.IsBusinessError(err) || errors.Is(err, project.ErrProjectNotFound) {
		return err
	}
	return &transaction.OperationFailedError{Op: op, Err: err}
}

func (s *Service) audit(ctx context.Context, p *project.Project) (*Result, error) {
	result := &Result{Errors: []string{}, Warnings: []string{}}

	pending, err := s.txns.CountByState(ctx, p.ID, transaction.StatePending)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("%d transaction(s) are still pending approval", pending))
	}

	withoutEvidence, err := s.evidences.TransactionsWithoutActiveEvidence(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(withoutEvidence) > 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("approved transaction(s) without active evidence: %v", withoutEvidence))
	}

	rejected, err := s.txns.CountByState(ctx, p.ID, transaction.StateRejected)
	if err != nil {
		return nil, err
	}
	if rejected > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d transaction(s) were rejected", rejected))
	}

	approvedTotal, err := s.txns.SumApprovedExpenses(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !approvedTotal.Equal(p.Executed) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("the project's executed total (%s) does not match the sum of approved expenses (%s)",
				p.Executed.StringFixed(2), approvedTotal.StringFixed(2)))
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}
