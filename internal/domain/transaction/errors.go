package transaction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"sumarte/internal/domain/budget"
	"sumarte/internal/domain/project"
)

// Every business-rule failure carries a stable machine-readable code
// through Code(). Callers branch on the concrete type (errors.As) or on
// the code; messages are for humans and may change.

// InsufficientBalanceError is returned when an expense exceeds the
// balance of its target budget item or subitem.
type InsufficientBalanceError struct {
	TargetName string
	Available  decimal.Decimal
	Required   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("budget line %q has insufficient balance: available %s, required %s",
		e.TargetName, e.Available.StringFixed(2), e.Required.StringFixed(2))
}

func (e *InsufficientBalanceError) Code() string { return "insufficient_balance" }

// DuplicateTransactionError is returned when another transaction, in
// any state, already uses the same (provider, document number) pair.
type DuplicateTransactionError struct {
	ExistingID string
}

func (e *DuplicateTransactionError) Error() string {
	if e.ExistingID == "" {
		return "a transaction with the same provider and document number already exists"
	}
	return fmt.Sprintf("a transaction with the same provider and document number already exists (id %s)", e.ExistingID)
}

func (e *DuplicateTransactionError) Code() string { return "duplicate_transaction" }

// CategoryMismatchError is returned when the expense category does not
// match the category declared by the target budget line.
type CategoryMismatchError struct {
	Expected string
	Actual   string
}

func (e *CategoryMismatchError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("the budget line requires expense category %q but the transaction has none", e.Expected)
	}
	return fmt.Sprintf("expense category %q does not match the budget line category %q", e.Actual, e.Expected)
}

func (e *CategoryMismatchError) Code() string { return "category_mismatch" }

// InvalidTransactionError is returned by the basic compliance check.
type InvalidTransactionError struct {
	Reason string
}

func (e *InvalidTransactionError) Error() string {
	return "invalid transaction: " + e.Reason
}

func (e *InvalidTransactionError) Code() string { return "invalid_transaction" }

// MissingReconciliationDataError is returned for income transactions
// lacking the bank data needed for reconciliation.
type MissingReconciliationDataError struct {
	Field string
}

func (e *MissingReconciliationDataError) Error() string {
	return fmt.Sprintf("income transactions require %s for bank reconciliation", e.Field)
}

func (e *MissingReconciliationDataError) Code() string { return "missing_reconciliation_data" }

// SegregationOfDutiesError is returned when a user tries to approve a
// transaction they created.
type SegregationOfDutiesError struct {
	UserID int64
}

func (e *SegregationOfDutiesError) Error() string {
	return fmt.Sprintf("user %d cannot approve a transaction they created", e.UserID)
}

func (e *SegregationOfDutiesError) Code() string { return "segregation_of_duties" }

// NotPendingError is returned when mutating a transaction that already
// reached a terminal state.
type NotPendingError struct {
	ID    string
	State State
}

func (e *NotPendingError) Error() string {
	return fmt.Sprintf("transaction %s is %s and can no longer be modified", e.ID, e.State)
}

func (e *NotPendingError) Code() string { return "transaction_not_pending" }

// OperationFailedError wraps storage-layer failures (lock timeouts,
// connection loss). Unlike the business errors above it is retryable
// without changing the input.
type OperationFailedError struct {
	Op  string
	Err error
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationFailedError) Code() string { return "operation_failed" }

func (e *OperationFailedError) Unwrap() error { return e.Err }

// coder is satisfied by every business error in this module.
type coder interface{ Code() string }

// IsBusinessError reports whether err (or anything it wraps) carries a
// stable business-rule code, as opposed to a storage failure.
func IsBusinessError(err error) bool {
	var c coder
	if !errors.As(err, &c) {
		return false
	}
	return c.Code() != "operation_failed"
}

// wrapStorage passes business errors and not-found sentinels through
// verbatim and wraps everything else as a retryable OperationFailedError.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsBusinessError(err) {
		return err
	}
	for _, sentinel := range []error{
		ErrTransactionNotFound,
		project.ErrProjectNotFound,
		budget.ErrItemNotFound,
		budget.ErrSubitemNotFound,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &OperationFailedError{Op: op, Err: err}
}
