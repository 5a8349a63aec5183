package rendition

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sumarte/internal/domain/evidence"
	"sumarte/internal/domain/project"
	"sumarte/internal/domain/transaction"
)

type passTxManager struct{}

func (passTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// mockProjects implements project.Repository over a single project. A
// non-nil err makes every read fail with it.
type mockProjects struct {
	project  *project.Project
	err      error
	setState project.State
}

func (m *mockProjects) Create(ctx context.Context, params project.CreateParams) (*project.Project, error) {
	return nil, nil
}
func (m *mockProjects) GetByID(ctx context.Context, id int64) (*project.Project, error) {
	return m.project, m.err
}
func (m *mockProjects) GetForUpdate(ctx context.Context, id int64) (*project.Project, error) {
	return m.project, m.err
}
func (m *mockProjects) ApplyAmounts(ctx context.Context, id int64, executedDelta, budgetDelta decimal.Decimal) error {
	return nil
}
func (m *mockProjects) SetState(ctx context.Context, id int64, state project.State) error {
	m.setState = state
	return nil
}
func (m *mockProjects) ListByOrganization(ctx context.Context, organizationID int64) ([]*project.Project, error) {
	return nil, nil
}

// mockTxns implements transaction.Repository with canned counts.
type mockTxns struct {
	pending  int64
	rejected int64
	approved decimal.Decimal
}

func (m *mockTxns) Create(ctx context.Context, tx *transaction.Transaction) (*transaction.Transaction, error) {
	return nil, nil
}
func (m *mockTxns) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	return nil, nil
}
func (m *mockTxns) GetForUpdate(ctx context.Context, id string) (*transaction.Transaction, error) {
	return nil, nil
}
func (m *mockTxns) FindByProviderAndDocument(ctx context.Context, providerID int64, documentNumber, excludeID string) (*transaction.Transaction, error) {
	return nil, nil
}
func (m *mockTxns) Update(ctx context.Context, tx *transaction.Transaction) (*transaction.Transaction, error) {
	return nil, nil
}
func (m *mockTxns) MarkApproved(ctx context.Context, id string, approverID int64, approvedAt time.Time) error {
	return nil
}
func (m *mockTxns) MarkRejected(ctx context.Context, id string) error { return nil }
func (m *mockTxns) Delete(ctx context.Context, id string) error       { return nil }
func (m *mockTxns) ListByProject(ctx context.Context, projectID int64, limit, offset int) ([]*transaction.Transaction, error) {
	return nil, nil
}
func (m *mockTxns) ListPending(ctx context.Context, projectID, excludeCreatorID int64) ([]*transaction.Transaction, error) {
	return nil, nil
}
func (m *mockTxns) CountByState(ctx context.Context, projectID int64, state transaction.State) (int64, error) {
	switch state {
	case transaction.StatePending:
		return m.pending, nil
	case transaction.StateRejected:
		return m.rejected, nil
	}
	return 0, nil
}
func (m *mockTxns) SumApprovedExpenses(ctx context.Context, projectID int64) (decimal.Decimal, error) {
	return m.approved, nil
}

// mockEvidences implements evidence.Repository; only the pre-closure
// query matters here.
type mockEvidences struct {
	withoutEvidence []string
}

func (m *mockEvidences) Create(ctx context.Context, params evidence.CreateParams) (*evidence.Evidence, error) {
	return nil, nil
}
func (m *mockEvidences) GetByID(ctx context.Context, id string) (*evidence.Evidence, error) {
	return nil, nil
}
func (m *mockEvidences) Link(ctx context.Context, transactionID, evidenceID string) error   { return nil }
func (m *mockEvidences) Unlink(ctx context.Context, transactionID, evidenceID string) error { return nil }
func (m *mockEvidences) SoftDelete(ctx context.Context, id string, deletedBy int64, deletedAt time.Time) error {
	return nil
}
func (m *mockEvidences) Restore(ctx context.Context, id string) error { return nil }
func (m *mockEvidences) CountActiveByTransaction(ctx context.Context, transactionID string) (int, error) {
	return 0, nil
}
func (m *mockEvidences) TransactionsWithoutActiveEvidence(ctx context.Context, projectID int64) ([]string, error) {
	return m.withoutEvidence, nil
}
func (m *mockEvidences) ListByProject(ctx context.Context, projectID int64, includeDeleted bool) ([]*evidence.Evidence, error) {
	return nil, nil
}

func cleanProject() *project.Project {
	return &project.Project{
		ID:          1,
		TotalBudget: decimal.NewFromInt(5_000_000),
		Executed:    decimal.NewFromInt(1_000_000),
		State:       project.StateActive,
	}
}

func newService(p *project.Project, txns *mockTxns, evs *mockEvidences) (*Service, *mockProjects) {
	projects := &mockProjects{project: p}
	return NewService(passTxManager{}, projects, txns, evs), projects
}

func TestPreClose_Clean(t *testing.T) {
	svc, _ := newService(cleanProject(),
		&mockTxns{approved: decimal.NewFromInt(1_000_000)},
		&mockEvidences{})

	result, err := svc.PreClose(context.Background(), 1)
	if err != nil {
		t.Fatalf("PreClose() failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("Valid = false, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", result.Warnings)
	}
}

func TestPreClose_PendingBlocksClosure(t *testing.T) {
	svc, _ := newService(cleanProject(),
		&mockTxns{pending: 3, approved: decimal.NewFromInt(1_000_000)},
		&mockEvidences{})

	result, err := svc.PreClose(context.Background(), 1)
	if err != nil {
		t.Fatalf("PreClose() failed: %v", err)
	}
	if result.Valid {
		t.Error("pending transactions must block closure")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "pending") {
		t.Errorf("Errors = %v, want one pending-approval error", result.Errors)
	}
}

func TestPreClose_MissingEvidenceBlocksClosure(t *testing.T) {
	svc, _ := newService(cleanProject(),
		&mockTxns{approved: decimal.NewFromInt(1_000_000)},
		&mockEvidences{withoutEvidence: []string{"t1", "t2"}})

	result, err := svc.PreClose(context.Background(), 1)
	if err != nil {
		t.Fatalf("PreClose() failed: %v", err)
	}
	if result.Valid {
		t.Error("approved transactions without evidence must block closure")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "evidence") {
		t.Errorf("Errors = %v, want one missing-evidence error", result.Errors)
	}
}

func TestPreClose_RejectedIsOnlyAWarning(t *testing.T) {
	svc, _ := newService(cleanProject(),
		&mockTxns{rejected: 2, approved: decimal.NewFromInt(1_000_000)},
		&mockEvidences{})

	result, err := svc.PreClose(context.Background(), 1)
	if err != nil {
		t.Fatalf("PreClose() failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("rejected transactions must not block closure, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "rejected") {
		t.Errorf("Warnings = %v, want one rejected warning", result.Warnings)
	}
}

func TestPreClose_ExecutedDriftWarns(t *testing.T) {
	svc, _ := newService(cleanProject(),
		&mockTxns{approved: decimal.NewFromInt(900_000)},
		&mockEvidences{})

	result, err := svc.PreClose(context.Background(), 1)
	if err != nil {
		t.Fatalf("PreClose() failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("a total drift must not block closure, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "does not match") {
		t.Errorf("Warnings = %v, want one drift warning", result.Warnings)
	}
}

func TestClose_SetsCompletedState(t *testing.T) {
	svc, projects := newService(cleanProject(),
		&mockTxns{approved: decimal.NewFromInt(1_000_000)},
		&mockEvidences{})

	closed, err := svc.Close(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if closed.State != project.StateCompleted {
		t.Errorf("State = %s, want completed", closed.State)
	}
	if projects.setState != project.StateCompleted {
		t.Errorf("SetState called with %s, want completed", projects.setState)
	}
}

func TestClose_IncompleteAuditBlocks(t *testing.T) {
	svc, projects := newService(cleanProject(),
		&mockTxns{pending: 1, approved: decimal.NewFromInt(1_000_000)},
		&mockEvidences{})

	_, err := svc.Close(context.Background(), 1, 9)

	var incErr *IncompleteError
	if !errors.As(err, &incErr) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if len(incErr.Errors) == 0 {
		t.Error("IncompleteError must carry the audit errors")
	}
	if projects.setState != "" {
		t.Error("SetState must not run when the audit fails")
	}
}

func TestPreClose_StorageFailureIsWrapped(t *testing.T) {
	projects := &mockProjects{err: errors.New("pq: canceling statement due to lock timeout")}
	svc := NewService(passTxManager{}, projects, &mockTxns{}, &mockEvidences{})

	_, err := svc.PreClose(context.Background(), 1)

	var opErr *transaction.OperationFailedError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationFailedError, got %v", err)
	}
	if transaction.IsBusinessError(err) {
		t.Error("a storage failure must not classify as a business error")
	}
}

func TestClose_StorageFailureIsWrapped(t *testing.T) {
	projects := &mockProjects{err: errors.New("driver: bad connection")}
	svc := NewService(passTxManager{}, projects, &mockTxns{}, &mockEvidences{})

	_, err := svc.Close(context.Background(), 1, 9)

	var opErr *transaction.OperationFailedError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationFailedError, got %v", err)
	}
}

func TestClose_AlreadyLocked(t *testing.T) {
	p := cleanProject()
	p.State = project.StateCompleted
	svc, _ := newService(p,
		&mockTxns{approved: decimal.NewFromInt(1_000_000)},
		&mockEvidences{})

	_, err := svc.Close(context.Background(), 1, 9)

	var lockErr *project.LockedError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected LockedError, got %v", err)
	}
}
