package transaction

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sumarte/internal/domain/budget"
	"sumarte/internal/domain/project"
)

// Business-control validators. Each checks exactly one rule over an
// already-loaded snapshot and returns a typed error on the first
// violation; none of them touch storage.

// Rules tunes the optional controls. The zero value disables them all;
// DefaultRules matches the standard rendition guidelines.
type Rules struct {
	EnforceCategoryMatch  bool
	RequireReconciliation bool
	// MaxAmount caps a single transaction; zero disables the cap.
	MaxAmount decimal.Decimal
}

func DefaultRules() Rules {
	return Rules{
		EnforceCategoryMatch:  true,
		RequireReconciliation: true,
	}
}

// ValidateBalance checks that an expense fits within the balance of its
// target budget line. The subitem is preferred when both are linked.
// Income always passes.
func ValidateBalance(tx *Transaction, item *budget.Item, subitem *budget.Subitem) error {
	if tx.Kind == KindIncome {
		return nil
	}
	if subitem != nil {
		if !subitem.HasSufficientBalance(tx.Amount) {
			return &InsufficientBalanceError{
				TargetName: subitem.Name,
				Available:  subitem.Balance(),
				Required:   tx.Amount,
			}
		}
		return nil
	}
	if item == nil {
		return &InvalidTransactionError{Reason: "expense transactions must reference a budget item or subitem"}
	}
	if !item.HasSufficientBalance(tx.Amount) {
		return &InsufficientBalanceError{
			TargetName: item.Name,
			Available:  item.Balance(),
			Required:   tx.Amount,
		}
	}
	return nil
}

// ValidateNoDuplicate fails when existing holds a transaction already
// using the (provider, document number) pair. The caller resolves
// existing from storage; duplicates are global across all states,
// rejected included.
func ValidateNoDuplicate(existing *Transaction) error {
	if existing != nil {
		return &DuplicateTransactionError{ExistingID: existing.ID}
	}
	return nil
}

// ValidateCategory checks the expense category against the category
// declared by the target budget line. Lines without a category skip the
// check; the comparison is case-insensitive.
func ValidateCategory(tx *Transaction, item *budget.Item, subitem *budget.Subitem) error {
	var declared *string
	if subitem != nil && subitem.Category != nil {
		declared = subitem.Category
	} else if item != nil && item.Category != nil {
		declared = item.Category
	}
	if declared == nil || *declared == "" {
		return nil
	}
	if tx.ExpenseCategory == nil || *tx.ExpenseCategory == "" {
		return &CategoryMismatchError{Expected: *declared}
	}
	if !strings.EqualFold(*tx.ExpenseCategory, *declared) {
		return &CategoryMismatchError{Expected: *declared, Actual: *tx.ExpenseCategory}
	}
	return nil
}

// ValidateProjectUnlocked fails when the project state blocks edits.
func ValidateProjectUnlocked(p *project.Project) error {
	if p.State.Locked() {
		return &project.LockedError{ProjectID: p.ID, State: p.State}
	}
	return nil
}

// ValidateCompliance runs the basic sanity checks: document type
// present, positive amount, registration date not in the future,
// provider present.
func ValidateCompliance(tx *Transaction, today time.Time) error {
	if tx.DocumentType == "" {
		return &InvalidTransactionError{Reason: "document type is required"}
	}
	if !tx.Amount.IsPositive() {
		return &InvalidTransactionError{Reason: "amount must be greater than zero"}
	}
	if dateOnly(tx.RegistrationDate).After(dateOnly(today)) {
		return &InvalidTransactionError{Reason: "registration date cannot be in the future"}
	}
	if tx.ProviderID == 0 {
		return &InvalidTransactionError{Reason: "provider is required"}
	}
	return nil
}

// ValidateMaxAmount enforces the per-transaction cap; a zero cap
// disables the check.
func ValidateMaxAmount(tx *Transaction, limit decimal.Decimal) error {
	if limit.IsZero() {
		return nil
	}
	if tx.Amount.GreaterThan(limit) {
		return &InvalidTransactionError{
			Reason: "amount exceeds the configured maximum of " + limit.String(),
		}
	}
	return nil
}

// ValidateReconciliationData checks that income transactions carry the
// bank account and operation numbers needed for reconciliation.
func ValidateReconciliationData(tx *Transaction) error {
	if tx.Kind != KindIncome {
		return nil
	}
	if tx.BankAccountNumber == nil || *tx.BankAccountNumber == "" {
		return &MissingReconciliationDataError{Field: "a bank account number"}
	}
	if tx.BankOperationNumber == nil || *tx.BankOperationNumber == "" {
		return &MissingReconciliationDataError{Field: "a bank operation number"}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
