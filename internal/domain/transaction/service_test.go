package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sumarte/internal/domain/audit"
	"sumarte/internal/domain/budget"
	"sumarte/internal/domain/project"
)

// passTxManager runs the unit of work directly; atomicity is the
// storage layer's concern, not the service logic under test.
type passTxManager struct{}

func (passTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MockRepository implements Repository for testing.
type MockRepository struct {
	CreateFunc                    func(ctx context.Context, tx *Transaction) (*Transaction, error)
	GetByIDFunc                   func(ctx context.Context, id string) (*Transaction, error)
	GetForUpdateFunc              func(ctx context.Context, id string) (*Transaction, error)
	FindByProviderAndDocumentFunc func(ctx context.Context, providerID int64, documentNumber, excludeID string) (*Transaction, error)
	UpdateFunc                    func(ctx context.Context, tx *Transaction) (*Transaction, error)
	MarkApprovedFunc              func(ctx context.Context, id string, approverID int64, approvedAt time.Time) error
	MarkRejectedFunc              func(ctx context.Context, id string) error
	DeleteFunc                    func(ctx context.Context, id string) error
	ListByProjectFunc             func(ctx context.Context, projectID int64, limit, offset int) ([]*Transaction, error)
	ListPendingFunc               func(ctx context.Context, projectID, excludeCreatorID int64) ([]*Transaction, error)
	CountByStateFunc              func(ctx context.Context, projectID int64, state State) (int64, error)
	SumApprovedExpensesFunc       func(ctx context.Context, projectID int64) (decimal.Decimal, error)
}

func (m *MockRepository) Create(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx)
	}
	return tx, nil
}
func (m *MockRepository) GetByID(ctx context.Context, id string) (*Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockRepository) GetForUpdate(ctx context.Context, id string) (*Transaction, error) {
	if m.GetForUpdateFunc != nil {
		return m.GetForUpdateFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockRepository) FindByProviderAndDocument(ctx context.Context, providerID int64, documentNumber, excludeID string) (*Transaction, error) {
	if m.FindByProviderAndDocumentFunc != nil {
		return m.FindByProviderAndDocumentFunc(ctx, providerID, documentNumber, excludeID)
	}
	return nil, nil
}
func (m *MockRepository) Update(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx)
	}
	return tx, nil
}
func (m *MockRepository) MarkApproved(ctx context.Context, id string, approverID int64, approvedAt time.Time) error {
	if m.MarkApprovedFunc != nil {
		return m.MarkApprovedFunc(ctx, id, approverID, approvedAt)
	}
	return nil
}
func (m *MockRepository) MarkRejected(ctx context.Context, id string) error {
	if m.MarkRejectedFunc != nil {
		return m.MarkRejectedFunc(ctx, id)
	}
	return nil
}
func (m *MockRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}
func (m *MockRepository) ListByProject(ctx context.Context, projectID int64, limit, offset int) ([]*Transaction, error) {
	if m.ListByProjectFunc != nil {
		return m.ListByProjectFunc(ctx, projectID, limit, offset)
	}
	return nil, nil
}
func (m *MockRepository) ListPending(ctx context.Context, projectID, excludeCreatorID int64) ([]*Transaction, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx, projectID, excludeCreatorID)
	}
	return nil, nil
}
func (m *MockRepository) CountByState(ctx context.Context, projectID int64, state State) (int64, error) {
	if m.CountByStateFunc != nil {
		return m.CountByStateFunc(ctx, projectID, state)
	}
	return 0, nil
}
func (m *MockRepository) SumApprovedExpenses(ctx context.Context, projectID int64) (decimal.Decimal, error) {
	if m.SumApprovedExpensesFunc != nil {
		return m.SumApprovedExpensesFunc(ctx, projectID)
	}
	return decimal.Zero, nil
}

// MockProjectRepository implements project.Repository for testing.
type MockProjectRepository struct {
	CreateFunc             func(ctx context.Context, params project.CreateParams) (*project.Project, error)
	GetByIDFunc            func(ctx context.Context, id int64) (*project.Project, error)
	GetForUpdateFunc       func(ctx context.Context, id int64) (*project.Project, error)
	ApplyAmountsFunc       func(ctx context.Context, id int64, executedDelta, budgetDelta decimal.Decimal) error
	SetStateFunc           func(ctx context.Context, id int64, state project.State) error
	ListByOrganizationFunc func(ctx context.Context, organizationID int64) ([]*project.Project, error)
}

func (m *MockProjectRepository) Create(ctx context.Context, params project.CreateParams) (*project.Project, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}
func (m *MockProjectRepository) GetByID(ctx context.Context, id int64) (*project.Project, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockProjectRepository) GetForUpdate(ctx context.Context, id int64) (*project.Project, error) {
	if m.GetForUpdateFunc != nil {
		return m.GetForUpdateFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockProjectRepository) ApplyAmounts(ctx context.Context, id int64, executedDelta, budgetDelta decimal.Decimal) error {
	if m.ApplyAmountsFunc != nil {
		return m.ApplyAmountsFunc(ctx, id, executedDelta, budgetDelta)
	}
	return nil
}
func (m *MockProjectRepository) SetState(ctx context.Context, id int64, state project.State) error {
	if m.SetStateFunc != nil {
		return m.SetStateFunc(ctx, id, state)
	}
	return nil
}
func (m *MockProjectRepository) ListByOrganization(ctx context.Context, organizationID int64) ([]*project.Project, error) {
	if m.ListByOrganizationFunc != nil {
		return m.ListByOrganizationFunc(ctx, organizationID)
	}
	return nil, nil
}

// MockBudgetRepository implements budget.Repository for testing.
type MockBudgetRepository struct {
	CreateItemFunc            func(ctx context.Context, params budget.CreateItemParams) (*budget.Item, error)
	CreateSubitemFunc         func(ctx context.Context, params budget.CreateSubitemParams) (*budget.Subitem, error)
	GetItemByIDFunc           func(ctx context.Context, id int64) (*budget.Item, error)
	GetSubitemByIDFunc        func(ctx context.Context, id int64) (*budget.Subitem, error)
	GetItemForUpdateFunc      func(ctx context.Context, id int64) (*budget.Item, error)
	GetSubitemForUpdateFunc   func(ctx context.Context, id int64) (*budget.Subitem, error)
	AddItemExecutedFunc       func(ctx context.Context, id int64, delta decimal.Decimal) error
	AddSubitemExecutedFunc    func(ctx context.Context, id int64, delta decimal.Decimal) error
	ListItemsByProjectFunc    func(ctx context.Context, projectID int64) ([]*budget.Item, error)
	ListSubitemsByItemFunc    func(ctx context.Context, itemID int64) ([]*budget.Subitem, error)
	ApprovedExpenseTotalsFunc func(ctx context.Context, projectID int64) (map[int64]budget.ApprovedTotal, error)
}

func (m *MockBudgetRepository) CreateItem(ctx context.Context, params budget.CreateItemParams) (*budget.Item, error) {
	if m.CreateItemFunc != nil {
		return m.CreateItemFunc(ctx, params)
	}
	return nil, nil
}
func (m *MockBudgetRepository) CreateSubitem(ctx context.Context, params budget.CreateSubitemParams) (*budget.Subitem, error) {
	if m.CreateSubitemFunc != nil {
		return m.CreateSubitemFunc(ctx, params)
	}
	return nil, nil
}
func (m *MockBudgetRepository) GetItemByID(ctx context.Context, id int64) (*budget.Item, error) {
	if m.GetItemByIDFunc != nil {
		return m.GetItemByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockBudgetRepository) GetSubitemByID(ctx context.Context, id int64) (*budget.Subitem, error) {
	if m.GetSubitemByIDFunc != nil {
		return m.GetSubitemByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockBudgetRepository) GetItemForUpdate(ctx context.Context, id int64) (*budget.Item, error) {
	if m.GetItemForUpdateFunc != nil {
		return m.GetItemForUpdateFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockBudgetRepository) GetSubitemForUpdate(ctx context.Context, id int64) (*budget.Subitem, error) {
	if m.GetSubitemForUpdateFunc != nil {
		return m.GetSubitemForUpdateFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockBudgetRepository) AddItemExecuted(ctx context.Context, id int64, delta decimal.Decimal) error {
	if m.AddItemExecutedFunc != nil {
		return m.AddItemExecutedFunc(ctx, id, delta)
	}
	return nil
}
func (m *MockBudgetRepository) AddSubitemExecuted(ctx context.Context, id int64, delta decimal.Decimal) error {
	if m.AddSubitemExecutedFunc != nil {
		return m.AddSubitemExecutedFunc(ctx, id, delta)
	}
	return nil
}
func (m *MockBudgetRepository) ListItemsByProject(ctx context.Context, projectID int64) ([]*budget.Item, error) {
	if m.ListItemsByProjectFunc != nil {
		return m.ListItemsByProjectFunc(ctx, projectID)
	}
	return nil, nil
}
func (m *MockBudgetRepository) ListSubitemsByItem(ctx context.Context, itemID int64) ([]*budget.Subitem, error) {
	if m.ListSubitemsByItemFunc != nil {
		return m.ListSubitemsByItemFunc(ctx, itemID)
	}
	return nil, nil
}
func (m *MockBudgetRepository) ApprovedExpenseTotals(ctx context.Context, projectID int64) (map[int64]budget.ApprovedTotal, error) {
	if m.ApprovedExpenseTotalsFunc != nil {
		return m.ApprovedExpenseTotalsFunc(ctx, projectID)
	}
	return map[int64]budget.ApprovedTotal{}, nil
}

// MockAuditRepository implements audit.Repository and records appends.
type MockAuditRepository struct {
	AppendFunc func(ctx context.Context, params audit.AppendParams) (*audit.Entry, error)
	Appended   []audit.AppendParams
}

func (m *MockAuditRepository) Append(ctx context.Context, params audit.AppendParams) (*audit.Entry, error) {
	m.Appended = append(m.Appended, params)
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, params)
	}
	return &audit.Entry{ID: int64(len(m.Appended)), Action: params.Action}, nil
}
func (m *MockAuditRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*audit.Entry, error) {
	return nil, nil
}
func (m *MockAuditRepository) ListByProject(ctx context.Context, projectID int64) ([]*audit.Entry, error) {
	return nil, nil
}

type fixture struct {
	repo     *MockRepository
	projects *MockProjectRepository
	budgets  *MockBudgetRepository
	trail    *MockAuditRepository
	service  *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     &MockRepository{},
		projects: &MockProjectRepository{},
		budgets:  &MockBudgetRepository{},
		trail:    &MockAuditRepository{},
	}
	budgetService := budget.NewService(f.budgets, f.projects)
	f.service = NewService(passTxManager{}, f.repo, f.projects, budgetService, f.trail, DefaultRules())
	f.service.now = func() time.Time {
		return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	}
	return f
}

func activeProject(id int64) *project.Project {
	return &project.Project{
		ID:          id,
		Name:        "Festival",
		TotalBudget: decimal.NewFromInt(5_000_000),
		Executed:    decimal.NewFromInt(1_000_000),
		State:       project.StateActive,
	}
}

func i64Ptr(v int64) *int64 { return &v }

func validDraft() Draft {
	return Draft{
		ProjectID:        1,
		ProviderID:       7,
		Amount:           decimal.NewFromInt(100_000),
		RegistrationDate: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		DocumentNumber:   "FAC-1",
		DocumentType:     DocElectronicInvoice,
		Kind:             KindExpense,
		ItemID:           i64Ptr(3),
	}
}

func TestCreate_Expense(t *testing.T) {
	f := newFixture()
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}
	f.budgets.GetItemByIDFunc = func(ctx context.Context, id int64) (*budget.Item, error) {
		return &budget.Item{ID: id, Name: "Honorarios", Assigned: decimal.NewFromInt(500_000)}, nil
	}

	created, err := f.service.Create(context.Background(), validDraft(), 1)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if created.ID == "" {
		t.Error("Create() did not assign an id")
	}
	if created.State != StatePending {
		t.Errorf("State = %s, want pending", created.State)
	}
	if created.CreatorID != 1 {
		t.Errorf("CreatorID = %d, want 1", created.CreatorID)
	}

	if len(f.trail.Appended) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(f.trail.Appended))
	}
	if f.trail.Appended[0].Action != audit.ActionCreated {
		t.Errorf("audit action = %s, want created", f.trail.Appended[0].Action)
	}
	if f.trail.Appended[0].UserID != 1 {
		t.Errorf("audit user = %d, want 1", f.trail.Appended[0].UserID)
	}
}

func TestCreate_DuplicateDocument(t *testing.T) {
	f := newFixture()
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}
	f.repo.FindByProviderAndDocumentFunc = func(ctx context.Context, providerID int64, documentNumber, excludeID string) (*Transaction, error) {
		return &Transaction{ID: "orig", State: StateRejected}, nil
	}
	createCalled := false
	f.repo.CreateFunc = func(ctx context.Context, tx *Transaction) (*Transaction, error) {
		createCalled = true
		return tx, nil
	}

	_, err := f.service.Create(context.Background(), validDraft(), 1)

	var dupErr *DuplicateTransactionError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateTransactionError, got %v", err)
	}
	if dupErr.ExistingID != "orig" {
		t.Errorf("ExistingID = %q, want %q", dupErr.ExistingID, "orig")
	}
	if createCalled {
		t.Error("repository Create must not run after a duplicate hit")
	}
	if len(f.trail.Appended) != 0 {
		t.Error("no audit entry must be written for a rejected create")
	}
}

func TestCreate_InsufficientBalance(t *testing.T) {
	f := newFixture()
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}
	f.budgets.GetItemByIDFunc = func(ctx context.Context, id int64) (*budget.Item, error) {
		return &budget.Item{
			ID:       id,
			Name:     "Honorarios",
			Assigned: decimal.NewFromInt(1_000_000),
			Executed: decimal.NewFromInt(500_000),
		}, nil
	}

	draft := validDraft()
	draft.Amount = decimal.NewFromInt(600_000)

	_, err := f.service.Create(context.Background(), draft, 1)

	var balErr *InsufficientBalanceError
	if !errors.As(err, &balErr) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !balErr.Available.Equal(decimal.NewFromInt(500_000)) {
		t.Errorf("Available = %s, want 500000", balErr.Available)
	}
}

func TestCreate_ProjectLocked(t *testing.T) {
	f := newFixture()
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		p := activeProject(id)
		p.State = project.StateInRendition
		return p, nil
	}

	_, err := f.service.Create(context.Background(), validDraft(), 1)

	var lockErr *project.LockedError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected LockedError, got %v", err)
	}
}

func TestCreate_IncomeRequiresBankData(t *testing.T) {
	f := newFixture()
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}

	draft := validDraft()
	draft.Kind = KindIncome
	draft.ItemID = nil

	_, err := f.service.Create(context.Background(), draft, 1)

	var recErr *MissingReconciliationDataError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected MissingReconciliationDataError, got %v", err)
	}
}

func TestCreate_StorageFailureIsWrapped(t *testing.T) {
	f := newFixture()
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return nil, errors.New("connection reset")
	}

	_, err := f.service.Create(context.Background(), validDraft(), 1)

	var opErr *OperationFailedError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationFailedError, got %v", err)
	}
	if IsBusinessError(err) {
		t.Error("storage failures must not classify as business errors")
	}
}

func pendingExpense(id string, creatorID int64) *Transaction {
	return &Transaction{
		ID:               id,
		ProjectID:        1,
		CreatorID:        creatorID,
		ProviderID:       7,
		Amount:           decimal.NewFromInt(100_000),
		RegistrationDate: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		DocumentNumber:   "FAC-1",
		DocumentType:     DocElectronicInvoice,
		Kind:             KindExpense,
		State:            StatePending,
		ItemID:           i64Ptr(3),
	}
}

func TestApprove_AppliesLedgerEffect(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		return pendingExpense(id, 1), nil
	}
	f.projects.GetForUpdateFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}
	f.budgets.GetItemForUpdateFunc = func(ctx context.Context, id int64) (*budget.Item, error) {
		return &budget.Item{ID: id, Name: "Honorarios", Assigned: decimal.NewFromInt(500_000)}, nil
	}

	var markedApprover int64
	f.repo.MarkApprovedFunc = func(ctx context.Context, id string, approverID int64, approvedAt time.Time) error {
		markedApprover = approverID
		return nil
	}
	var itemDelta decimal.Decimal
	f.budgets.AddItemExecutedFunc = func(ctx context.Context, id int64, delta decimal.Decimal) error {
		itemDelta = delta
		return nil
	}
	var executedDelta, budgetDelta decimal.Decimal
	f.projects.ApplyAmountsFunc = func(ctx context.Context, id int64, ed, bd decimal.Decimal) error {
		executedDelta, budgetDelta = ed, bd
		return nil
	}

	approved, err := f.service.Approve(context.Background(), "t1", 2)
	if err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if approved.State != StateApproved {
		t.Errorf("State = %s, want approved", approved.State)
	}
	if approved.ApproverID == nil || *approved.ApproverID != 2 {
		t.Errorf("ApproverID = %v, want 2", approved.ApproverID)
	}
	if markedApprover != 2 {
		t.Errorf("MarkApproved approver = %d, want 2", markedApprover)
	}
	if !itemDelta.Equal(decimal.NewFromInt(100_000)) {
		t.Errorf("item executed delta = %s, want 100000", itemDelta)
	}
	if !executedDelta.Equal(decimal.NewFromInt(100_000)) {
		t.Errorf("project executed delta = %s, want 100000", executedDelta)
	}
	if !budgetDelta.IsZero() {
		t.Errorf("expenses must not move the total budget, got %s", budgetDelta)
	}
	if len(f.trail.Appended) != 1 || f.trail.Appended[0].Action != audit.ActionApproved {
		t.Errorf("expected one approved audit entry, got %+v", f.trail.Appended)
	}
}

func TestApprove_IncomeRaisesBudget(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		txn := pendingExpense(id, 1)
		txn.Kind = KindIncome
		txn.ItemID = nil
		txn.Amount = decimal.NewFromInt(250_000)
		txn.BankAccountNumber = strPtr("12345-6")
		txn.BankOperationNumber = strPtr("OP-1")
		return txn, nil
	}
	f.projects.GetForUpdateFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}

	var executedDelta, budgetDelta decimal.Decimal
	f.projects.ApplyAmountsFunc = func(ctx context.Context, id int64, ed, bd decimal.Decimal) error {
		executedDelta, budgetDelta = ed, bd
		return nil
	}

	if _, err := f.service.Approve(context.Background(), "t1", 2); err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if !executedDelta.IsZero() {
		t.Errorf("income must not move the executed total, got %s", executedDelta)
	}
	if !budgetDelta.Equal(decimal.NewFromInt(250_000)) {
		t.Errorf("total budget delta = %s, want 250000", budgetDelta)
	}
}

func TestApprove_SegregationOfDuties(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		return pendingExpense(id, 1), nil
	}

	_, err := f.service.Approve(context.Background(), "t1", 1)

	var segErr *SegregationOfDutiesError
	if !errors.As(err, &segErr) {
		t.Fatalf("expected SegregationOfDutiesError, got %v", err)
	}
	if len(f.trail.Appended) != 0 {
		t.Error("no audit entry must be written for a blocked approval")
	}
}

func TestApprove_NotPending(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		txn := pendingExpense(id, 1)
		txn.State = StateApproved
		return txn, nil
	}

	_, err := f.service.Approve(context.Background(), "t1", 2)

	var npErr *NotPendingError
	if !errors.As(err, &npErr) {
		t.Fatalf("expected NotPendingError, got %v", err)
	}
	if npErr.State != StateApproved {
		t.Errorf("State = %s, want approved", npErr.State)
	}
}

func TestApprove_BalanceRecheckedUnderLock(t *testing.T) {
	// The balance was fine at creation but another approval consumed it
	// in the meantime; the locked recheck must catch that.
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		return pendingExpense(id, 1), nil
	}
	f.projects.GetForUpdateFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}
	f.budgets.GetItemForUpdateFunc = func(ctx context.Context, id int64) (*budget.Item, error) {
		return &budget.Item{
			ID:       id,
			Name:     "Honorarios",
			Assigned: decimal.NewFromInt(500_000),
			Executed: decimal.NewFromInt(450_000),
		}, nil
	}
	marked := false
	f.repo.MarkApprovedFunc = func(ctx context.Context, id string, approverID int64, approvedAt time.Time) error {
		marked = true
		return nil
	}

	_, err := f.service.Approve(context.Background(), "t1", 2)

	var balErr *InsufficientBalanceError
	if !errors.As(err, &balErr) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if marked {
		t.Error("MarkApproved must not run when the balance recheck fails")
	}
}

func TestReject_RecordsReason(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		return pendingExpense(id, 1), nil
	}
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}

	reason := "document unreadable"
	rejected, err := f.service.Reject(context.Background(), "t1", 2, &reason)
	if err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	if rejected.State != StateRejected {
		t.Errorf("State = %s, want rejected", rejected.State)
	}
	if len(f.trail.Appended) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(f.trail.Appended))
	}
	entry := f.trail.Appended[0]
	if entry.Action != audit.ActionRejected {
		t.Errorf("audit action = %s, want rejected", entry.Action)
	}
	if entry.Detail == nil || *entry.Detail != reason {
		t.Errorf("audit detail = %v, want %q", entry.Detail, reason)
	}
}

func TestReject_NoLedgerEffect(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		return pendingExpense(id, 1), nil
	}
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}
	f.projects.ApplyAmountsFunc = func(ctx context.Context, id int64, ed, bd decimal.Decimal) error {
		t.Error("rejection must not touch the ledger")
		return nil
	}
	f.budgets.AddItemExecutedFunc = func(ctx context.Context, id int64, delta decimal.Decimal) error {
		t.Error("rejection must not touch the budget items")
		return nil
	}

	if _, err := f.service.Reject(context.Background(), "t1", 2, nil); err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
}

func TestReject_SecondCallNotPending(t *testing.T) {
	f := newFixture()
	stored := pendingExpense("t1", 1)
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		snapshot := *stored
		return &snapshot, nil
	}
	f.repo.MarkRejectedFunc = func(ctx context.Context, id string) error {
		stored.State = StateRejected
		return nil
	}
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}

	if _, err := f.service.Reject(context.Background(), "t1", 2, nil); err != nil {
		t.Fatalf("first Reject() failed: %v", err)
	}

	_, err := f.service.Reject(context.Background(), "t1", 2, nil)

	var npErr *NotPendingError
	if !errors.As(err, &npErr) {
		t.Fatalf("expected NotPendingError on the second rejection, got %v", err)
	}
	if npErr.State != StateRejected {
		t.Errorf("NotPendingError.State = %s, want rejected", npErr.State)
	}
	if stored.State != StateRejected {
		t.Errorf("State = %s, want rejected", stored.State)
	}
	if len(f.trail.Appended) != 1 {
		t.Errorf("audit entries = %d, want 1 (no double entry)", len(f.trail.Appended))
	}
}

func TestUpdate_DuplicateCheckExcludesSelf(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		return pendingExpense(id, 1), nil
	}
	f.projects.GetByIDFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}
	f.budgets.GetItemByIDFunc = func(ctx context.Context, id int64) (*budget.Item, error) {
		return &budget.Item{ID: id, Name: "Honorarios", Assigned: decimal.NewFromInt(500_000)}, nil
	}

	var gotExclude string
	f.repo.FindByProviderAndDocumentFunc = func(ctx context.Context, providerID int64, documentNumber, excludeID string) (*Transaction, error) {
		gotExclude = excludeID
		return nil, nil
	}

	amount := decimal.NewFromInt(120_000)
	_, err := f.service.Update(context.Background(), "t1", UpdateParams{Amount: &amount}, 1)
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if gotExclude != "t1" {
		t.Errorf("duplicate check excludeID = %q, want %q", gotExclude, "t1")
	}
	if len(f.trail.Appended) != 1 || f.trail.Appended[0].Action != audit.ActionModified {
		t.Errorf("expected one modified audit entry, got %+v", f.trail.Appended)
	}
}

func TestUpdate_TerminalStateRejected(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		txn := pendingExpense(id, 1)
		txn.State = StateRejected
		return txn, nil
	}

	amount := decimal.NewFromInt(1)
	_, err := f.service.Update(context.Background(), "t1", UpdateParams{Amount: &amount}, 1)

	var npErr *NotPendingError
	if !errors.As(err, &npErr) {
		t.Fatalf("expected NotPendingError, got %v", err)
	}
}

func TestDelete_ApprovedReversesLedger(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		txn := pendingExpense(id, 1)
		txn.State = StateApproved
		return txn, nil
	}
	f.projects.GetForUpdateFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}
	f.budgets.GetItemForUpdateFunc = func(ctx context.Context, id int64) (*budget.Item, error) {
		return &budget.Item{ID: id, Name: "Honorarios", Assigned: decimal.NewFromInt(500_000), Executed: decimal.NewFromInt(100_000)}, nil
	}

	var itemDelta, executedDelta decimal.Decimal
	f.budgets.AddItemExecutedFunc = func(ctx context.Context, id int64, delta decimal.Decimal) error {
		itemDelta = delta
		return nil
	}
	f.projects.ApplyAmountsFunc = func(ctx context.Context, id int64, ed, bd decimal.Decimal) error {
		executedDelta = ed
		return nil
	}

	var order []string
	f.trail.AppendFunc = func(ctx context.Context, params audit.AppendParams) (*audit.Entry, error) {
		order = append(order, "audit")
		return &audit.Entry{}, nil
	}
	f.repo.DeleteFunc = func(ctx context.Context, id string) error {
		order = append(order, "delete")
		return nil
	}

	if err := f.service.Delete(context.Background(), "t1", 9); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if !itemDelta.Equal(decimal.NewFromInt(-100_000)) {
		t.Errorf("item reversal delta = %s, want -100000", itemDelta)
	}
	if !executedDelta.Equal(decimal.NewFromInt(-100_000)) {
		t.Errorf("project reversal delta = %s, want -100000", executedDelta)
	}
	if len(order) != 2 || order[0] != "audit" || order[1] != "delete" {
		t.Errorf("tombstone must be written before the row delete, got order %v", order)
	}

	entry := f.trail.Appended[0]
	if entry.Action != audit.ActionDeleted {
		t.Errorf("audit action = %s, want deleted", entry.Action)
	}
	if entry.TombstoneID == nil || *entry.TombstoneID != "t1" {
		t.Errorf("TombstoneID = %v, want t1", entry.TombstoneID)
	}
	if entry.TombstoneDoc == nil || *entry.TombstoneDoc != "FAC-1" {
		t.Errorf("TombstoneDoc = %v, want FAC-1", entry.TombstoneDoc)
	}
	if entry.TombstoneAmt == nil || !entry.TombstoneAmt.Equal(decimal.NewFromInt(100_000)) {
		t.Errorf("TombstoneAmt = %v, want 100000", entry.TombstoneAmt)
	}
}

func TestDelete_PendingSkipsLedger(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		return pendingExpense(id, 1), nil
	}
	f.projects.GetForUpdateFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		return activeProject(id), nil
	}
	f.budgets.AddItemExecutedFunc = func(ctx context.Context, id int64, delta decimal.Decimal) error {
		t.Error("deleting a pending transaction must not touch the ledger")
		return nil
	}

	if err := f.service.Delete(context.Background(), "t1", 9); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if len(f.trail.Appended) != 1 || f.trail.Appended[0].Action != audit.ActionDeleted {
		t.Errorf("expected one deleted audit entry, got %+v", f.trail.Appended)
	}
}

func TestDelete_LockedProjectBlocked(t *testing.T) {
	f := newFixture()
	f.repo.GetForUpdateFunc = func(ctx context.Context, id string) (*Transaction, error) {
		txn := pendingExpense(id, 1)
		txn.State = StateApproved
		return txn, nil
	}
	f.projects.GetForUpdateFunc = func(ctx context.Context, id int64) (*project.Project, error) {
		p := activeProject(id)
		p.State = project.StateCompleted
		return p, nil
	}
	f.repo.DeleteFunc = func(ctx context.Context, id string) error {
		t.Error("delete must not run under a locked project")
		return nil
	}

	err := f.service.Delete(context.Background(), "t1", 9)

	var lockErr *project.LockedError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected LockedError, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.Get(context.Background(), "missing")
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestPendingForApprover_ExcludesOwn(t *testing.T) {
	f := newFixture()
	var gotExclude int64
	f.repo.ListPendingFunc = func(ctx context.Context, projectID, excludeCreatorID int64) ([]*Transaction, error) {
		gotExclude = excludeCreatorID
		return []*Transaction{pendingExpense("t2", 4)}, nil
	}

	txns, err := f.service.PendingForApprover(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("PendingForApprover() failed: %v", err)
	}
	if gotExclude != 2 {
		t.Errorf("excludeCreatorID = %d, want 2", gotExclude)
	}
	if len(txns) != 1 {
		t.Errorf("len = %d, want 1", len(txns))
	}
}
