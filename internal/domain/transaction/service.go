package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sumarte/internal/domain/audit"
	"sumarte/internal/domain/budget"
	"sumarte/internal/domain/project"
)

// Service is the transaction state machine. Every state-changing method
// runs as one atomic unit of work: entity change, ledger mutation and
// audit entry commit together or not at all.
type Service struct {
	txm      TxManager
	repo     Repository
	projects project.Repository
	budgets  *budget.Service
	trail    audit.Repository
	rules    Rules
	now      func() time.Time
}

// NewService creates a new transaction service.
func NewService(txm TxManager, repo Repository, projects project.Repository, budgets *budget.Service, trail audit.Repository, rules Rules) *Service {
	return &Service{
		txm:      txm,
		repo:     repo,
		projects: projects,
		budgets:  budgets,
		trail:    trail,
		rules:    rules,
		now:      time.Now,
	}
}

// Create validates the draft and persists it as a pending transaction
// owned by creatorID, with a `created` audit entry.
func (s *Service) Create(ctx context.Context, draft Draft, creatorID int64) (*Transaction, error) {
	txn := &Transaction{
		ID:                  uuid.NewString(),
		ProjectID:           draft.ProjectID,
		CreatorID:           creatorID,
		ProviderID:          draft.ProviderID,
		Amount:              draft.Amount,
		RegistrationDate:    draft.RegistrationDate,
		DocumentNumber:      draft.DocumentNumber,
		DocumentType:        draft.DocumentType,
		Kind:                draft.Kind,
		State:               StatePending,
		ItemID:              draft.ItemID,
		SubitemID:           draft.SubitemID,
		ExpenseCategory:     draft.ExpenseCategory,
		BankAccountNumber:   draft.BankAccountNumber,
		BankOperationNumber: draft.BankOperationNumber,
	}

	var created *Transaction
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.getProject(ctx, txn.ProjectID)
		if err != nil {
			return err
		}
		if err := ValidateProjectUnlocked(p); err != nil {
			return err
		}

		existing, err := s.repo.FindByProviderAndDocument(ctx, txn.ProviderID, txn.DocumentNumber, "")
		if err != nil {
			return err
		}
		if err := ValidateNoDuplicate(existing); err != nil {
			return err
		}

		if err := ValidateCompliance(txn, s.now()); err != nil {
			return err
		}
		if err := ValidateMaxAmount(txn, s.rules.MaxAmount); err != nil {
			return err
		}
		if s.rules.RequireReconciliation {
			if err := ValidateReconciliationData(txn); err != nil {
				return err
			}
		}

		if txn.Kind == KindExpense {
			item, subitem, err := s.budgets.ResolveTarget(ctx, txn.ItemID, txn.SubitemID)
			if err != nil {
				return err
			}
			if err := ValidateBalance(txn, item, subitem); err != nil {
				return err
			}
			if s.rules.EnforceCategoryMatch {
				if err := ValidateCategory(txn, item, subitem); err != nil {
					return err
				}
			}
		}

		created, err = s.repo.Create(ctx, txn)
		if err != nil {
			return err
		}

		_, err = s.trail.Append(ctx, audit.AppendParams{
			TransactionID: created.ID,
			ProjectID:     created.ProjectID,
			UserID:        creatorID,
			Action:        audit.ActionCreated,
		})
		return err
	})
	if err != nil {
		return nil, wrapStorage("create transaction", err)
	}
	return created, nil
}

// Approve moves a pending transaction to approved, applies its
// monetary effect to the budget hierarchy and records an `approved`
// audit entry. The approver must differ from the creator, and the
// balance and category checks rerun under row locks because balances
// may have shifted since creation.
func (s *Service) Approve(ctx context.Context, id string, approverID int64) (*Transaction, error) {
	var approved *Transaction
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		txn, err := s.getForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if txn.State != StatePending {
			return &NotPendingError{ID: txn.ID, State: txn.State}
		}
		if txn.CreatorID == approverID {
			return &SegregationOfDutiesError{UserID: approverID}
		}

		p, err := s.lockProject(ctx, txn.ProjectID)
		if err != nil {
			return err
		}
		if err := ValidateProjectUnlocked(p); err != nil {
			return err
		}

		if txn.Kind == KindExpense {
			item, subitem, err := s.budgets.LockTarget(ctx, txn.ItemID, txn.SubitemID)
			if err != nil {
				return err
			}
			if err := ValidateBalance(txn, item, subitem); err != nil {
				return err
			}
			if s.rules.EnforceCategoryMatch {
				if err := ValidateCategory(txn, item, subitem); err != nil {
					return err
				}
			}
		}
		if err := ValidateCompliance(txn, s.now()); err != nil {
			return err
		}

		approvedAt := s.now()
		if err := s.repo.MarkApproved(ctx, txn.ID, approverID, approvedAt); err != nil {
			return err
		}
		if err := s.budgets.Apply(ctx, ledgerEntry(txn)); err != nil {
			return err
		}

		if _, err := s.trail.Append(ctx, audit.AppendParams{
			TransactionID: txn.ID,
			ProjectID:     txn.ProjectID,
			UserID:        approverID,
			Action:        audit.ActionApproved,
		}); err != nil {
			return err
		}

		txn.State = StateApproved
		txn.ApproverID = &approverID
		txn.ApprovedAt = &approvedAt
		approved = txn
		return nil
	})
	if err != nil {
		return nil, wrapStorage("approve transaction", err)
	}
	return approved, nil
}

// Reject moves a pending transaction to rejected and records a
// `rejected` audit entry carrying the optional reason. No ledger effect.
func (s *Service) Reject(ctx context.Context, id string, rejecterID int64, reason *string) (*Transaction, error) {
	var rejected *Transaction
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		txn, err := s.getForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if txn.State != StatePending {
			return &NotPendingError{ID: txn.ID, State: txn.State}
		}

		p, err := s.getProject(ctx, txn.ProjectID)
		if err != nil {
			return err
		}
		if err := ValidateProjectUnlocked(p); err != nil {
			return err
		}

		if err := s.repo.MarkRejected(ctx, txn.ID); err != nil {
			return err
		}

		if _, err := s.trail.Append(ctx, audit.AppendParams{
			TransactionID: txn.ID,
			ProjectID:     txn.ProjectID,
			UserID:        rejecterID,
			Action:        audit.ActionRejected,
			Detail:        reason,
		}); err != nil {
			return err
		}

		txn.State = StateRejected
		rejected = txn
		return nil
	})
	if err != nil {
		return nil, wrapStorage("reject transaction", err)
	}
	return rejected, nil
}

// Update applies changes to a pending transaction, re-running the
// duplicate, compliance, balance and category checks against the
// proposed values before committing.
func (s *Service) Update(ctx context.Context, id string, changes UpdateParams, actorID int64) (*Transaction, error) {
	var updated *Transaction
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		txn, err := s.getForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !txn.Editable() {
			return &NotPendingError{ID: txn.ID, State: txn.State}
		}

		p, err := s.getProject(ctx, txn.ProjectID)
		if err != nil {
			return err
		}
		if err := ValidateProjectUnlocked(p); err != nil {
			return err
		}

		proposed := applyChanges(txn, changes)

		existing, err := s.repo.FindByProviderAndDocument(ctx, proposed.ProviderID, proposed.DocumentNumber, proposed.ID)
		if err != nil {
			return err
		}
		if err := ValidateNoDuplicate(existing); err != nil {
			return err
		}
		if err := ValidateCompliance(proposed, s.now()); err != nil {
			return err
		}
		if err := ValidateMaxAmount(proposed, s.rules.MaxAmount); err != nil {
			return err
		}
		if s.rules.RequireReconciliation {
			if err := ValidateReconciliationData(proposed); err != nil {
				return err
			}
		}

		if proposed.Kind == KindExpense {
			item, subitem, err := s.budgets.ResolveTarget(ctx, proposed.ItemID, proposed.SubitemID)
			if err != nil {
				return err
			}
			if err := ValidateBalance(proposed, item, subitem); err != nil {
				return err
			}
			if s.rules.EnforceCategoryMatch {
				if err := ValidateCategory(proposed, item, subitem); err != nil {
					return err
				}
			}
		}

		updated, err = s.repo.Update(ctx, proposed)
		if err != nil {
			return err
		}

		_, err = s.trail.Append(ctx, audit.AppendParams{
			TransactionID: updated.ID,
			ProjectID:     updated.ProjectID,
			UserID:        actorID,
			Action:        audit.ActionModified,
		})
		return err
	})
	if err != nil {
		return nil, wrapStorage("update transaction", err)
	}
	return updated, nil
}

// Delete physically removes a transaction. An approved transaction
// first has its ledger effect reversed, which a locked project rejects.
// The tombstone audit entry is written before the row disappears; its
// transaction reference goes NULL on delete while the tombstone fields
// keep the id, document number and amount.
func (s *Service) Delete(ctx context.Context, id string, actorID int64) error {
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		txn, err := s.getForUpdate(ctx, id)
		if err != nil {
			return err
		}

		p, err := s.lockProject(ctx, txn.ProjectID)
		if err != nil {
			return err
		}
		if err := ValidateProjectUnlocked(p); err != nil {
			return err
		}

		if txn.State == StateApproved {
			if err := s.budgets.Reverse(ctx, ledgerEntry(txn)); err != nil {
				return err
			}
		}

		tombID := txn.ID
		tombDoc := txn.DocumentNumber
		tombAmt := txn.Amount
		if _, err := s.trail.Append(ctx, audit.AppendParams{
			TransactionID: txn.ID,
			ProjectID:     txn.ProjectID,
			UserID:        actorID,
			Action:        audit.ActionDeleted,
			TombstoneID:   &tombID,
			TombstoneDoc:  &tombDoc,
			TombstoneAmt:  &tombAmt,
		}); err != nil {
			return err
		}

		return s.repo.Delete(ctx, txn.ID)
	})
	return wrapStorage("delete transaction", err)
}

// Get returns one transaction by id.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	txn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapStorage("get transaction", err)
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

// ListByProject returns the project's transactions, newest first.
func (s *Service) ListByProject(ctx context.Context, projectID int64, limit, offset int) ([]*Transaction, error) {
	txns, err := s.repo.ListByProject(ctx, projectID, limit, offset)
	if err != nil {
		return nil, wrapStorage("list transactions", err)
	}
	return txns, nil
}

// PendingForApprover returns the project's pending transactions the
// given user is allowed to approve, i.e. excluding their own.
func (s *Service) PendingForApprover(ctx context.Context, projectID, approverID int64) ([]*Transaction, error) {
	txns, err := s.repo.ListPending(ctx, projectID, approverID)
	if err != nil {
		return nil, wrapStorage("list pending transactions", err)
	}
	return txns, nil
}

// AuditTrail returns the audit entries recorded for one transaction.
func (s *Service) AuditTrail(ctx context.Context, transactionID string) ([]*audit.Entry, error) {
	entries, err := s.trail.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, wrapStorage("load audit trail", err)
	}
	return entries, nil
}

// ProjectAuditTrail returns every audit entry under a project,
// tombstones included.
func (s *Service) ProjectAuditTrail(ctx context.Context, projectID int64) ([]*audit.Entry, error) {
	entries, err := s.trail.ListByProject(ctx, projectID)
	if err != nil {
		return nil, wrapStorage("load audit trail", err)
	}
	return entries, nil
}

func (s *Service) getProject(ctx context.Context, id int64) (*project.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, project.ErrProjectNotFound
	}
	return p, nil
}

func (s *Service) lockProject(ctx context.Context, id int64) (*project.Project, error) {
	p, err := s.projects.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, project.ErrProjectNotFound
	}
	return p, nil
}

func (s *Service) getForUpdate(ctx context.Context, id string) (*Transaction, error) {
	txn, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

func ledgerEntry(txn *Transaction) budget.Entry {
	return budget.Entry{
		ProjectID: txn.ProjectID,
		ItemID:    txn.ItemID,
		SubitemID: txn.SubitemID,
		Amount:    txn.Amount,
		Income:    txn.Kind == KindIncome,
	}
}

func applyChanges(txn *Transaction, changes UpdateParams) *Transaction {
	proposed := *txn
	if changes.ProviderID != nil {
		proposed.ProviderID = *changes.ProviderID
	}
	if changes.Amount != nil {
		proposed.Amount = *changes.Amount
	}
	if changes.RegistrationDate != nil {
		proposed.RegistrationDate = *changes.RegistrationDate
	}
	if changes.DocumentNumber != nil {
		proposed.DocumentNumber = *changes.DocumentNumber
	}
	if changes.DocumentType != nil {
		proposed.DocumentType = *changes.DocumentType
	}
	if changes.ItemID != nil {
		proposed.ItemID = changes.ItemID
	}
	if changes.SubitemID != nil {
		proposed.SubitemID = changes.SubitemID
	}
	if changes.ExpenseCategory != nil {
		proposed.ExpenseCategory = changes.ExpenseCategory
	}
	if changes.BankAccountNumber != nil {
		proposed.BankAccountNumber = changes.BankAccountNumber
	}
	if changes.BankOperationNumber != nil {
		proposed.BankOperationNumber = changes.BankOperationNumber
	}
	return &proposed
}
