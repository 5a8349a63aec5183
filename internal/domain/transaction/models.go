package transaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes money flowing out (expense) from money flowing in
// (income).
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// State is the approval-workflow state. A transaction is created
// pending and transitions exactly once to approved or rejected; both
// are terminal.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

// Document types accepted by the compliance check.
const (
	DocElectronicInvoice = "factura electronica"
	DocExemptInvoice     = "factura exenta"
	DocPurchaseReceipt   = "boleta de compra"
	DocFeeReceipt        = "boleta de honorarios"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Transaction is one financial movement under a project, routed through
// the two-person approval workflow. Amount is always positive; Kind
// decides its sign in the ledger.
type Transaction struct {
	ID                  string          `json:"id"`
	ProjectID           int64           `json:"projectId"`
	CreatorID           int64           `json:"creatorId"`
	ProviderID          int64           `json:"providerId"`
	Amount              decimal.Decimal `json:"amount"`
	RegistrationDate    time.Time       `json:"registrationDate"`
	DocumentNumber      string          `json:"documentNumber"`
	DocumentType        string          `json:"documentType"`
	Kind                Kind            `json:"kind"`
	State               State           `json:"state"`
	ItemID              *int64          `json:"itemId,omitempty"`
	SubitemID           *int64          `json:"subitemId,omitempty"`
	ExpenseCategory     *string         `json:"expenseCategory,omitempty"`
	BankAccountNumber   *string         `json:"bankAccountNumber,omitempty"`
	BankOperationNumber *string         `json:"bankOperationNumber,omitempty"`
	ApproverID          *int64          `json:"approverId,omitempty"`
	ApprovedAt          *time.Time      `json:"approvedAt,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Editable reports whether the transaction can still be mutated.
func (t *Transaction) Editable() bool {
	return t.State == StatePending
}

// CanBeApprovedBy reports whether approver may approve this
// transaction: it must still be pending and the approver must not be
// the creator (segregation of duties).
func (t *Transaction) CanBeApprovedBy(approverID int64) bool {
	return t.State == StatePending && t.CreatorID != approverID
}

// Draft contains the caller-supplied fields for a new transaction.
type Draft struct {
	ProjectID           int64
	ProviderID          int64
	Amount              decimal.Decimal
	RegistrationDate    time.Time
	DocumentNumber      string
	DocumentType        string
	Kind                Kind
	ItemID              *int64
	SubitemID           *int64
	ExpenseCategory     *string
	BankAccountNumber   *string
	BankOperationNumber *string
}

// UpdateParams carries the proposed changes for a pending transaction.
// Nil fields keep their current value.
type UpdateParams struct {
	ProviderID          *int64
	Amount              *decimal.Decimal
	RegistrationDate    *time.Time
	DocumentNumber      *string
	DocumentType        *string
	ItemID              *int64
	SubitemID           *int64
	ExpenseCategory     *string
	BankAccountNumber   *string
	BankOperationNumber *string
}
