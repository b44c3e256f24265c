package purchase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

type fakeRepo struct {
	orders map[uuid.UUID]Order
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: map[uuid.UUID]Order{}}
}

func (f *fakeRepo) Create(_ context.Context, order Order) (Order, error) {
	for _, existing := range f.orders {
		if existing.PONumber == order.PONumber {
			return Order{}, ErrDuplicateNumber
		}
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return order, nil
}

func (f *fakeRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]Order, error) {
	var orders []Order
	for _, order := range f.orders {
		if order.ProjectID == projectID {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status, approvedBy *int64) error {
	order, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	if approvedBy != nil {
		order.ApprovedBy = approvedBy
	}
	f.orders[id] = order
	return nil
}

type fakeApprovals struct {
	records []shared.ApprovalLog
	submits int
}

func (f *fakeApprovals) Record(_ context.Context, log shared.ApprovalLog) error {
	f.records = append(f.records, log)
	return nil
}

func (f *fakeApprovals) EnsureSubmit(_ context.Context, module string, ref uuid.UUID, actorID int64, note string) error {
	f.submits++
	return nil
}

type fakeIdempotency struct {
	seen    map[string]bool
	deleted []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{seen: map[string]bool{}}
}

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if f.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	f.seen[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, key string) error {
	delete(f.seen, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type allowAllMemberships struct{}

func (allowAllMemberships) IsActiveMember(context.Context, int64, uuid.UUID) (bool, error) {
	return true, nil
}

func newFixture(t *testing.T) (*Service, *fakeRepo, *fakeApprovals, *fakeIdempotency) {
	t.Helper()
	store, err := authz.NewStore(authz.DefaultConfig())
	require.NoError(t, err)
	evaluator := authz.NewEvaluator(store, allowAllMemberships{})
	repo := newFakeRepo()
	approvals := &fakeApprovals{}
	idempotency := newFakeIdempotency()
	return NewService(repo, evaluator, approvals, idempotency), repo, approvals, idempotency
}

func pendingOrder(t *testing.T, svc *Service, total float64) Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateInput{
		ProjectID:    uuid.New(),
		PONumber:     "PO-1001",
		SupplierName: "Acme Steel",
		Lines:        []LineInput{{Description: "rebar", Quantity: 1, UnitPrice: total}},
		CreatedBy:    3,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Submit(context.Background(), 3, order.ID))
	return order
}

func TestCreateSumsLinesIntoTotal(t *testing.T) {
	svc, _, _, _ := newFixture(t)

	order, err := svc.Create(context.Background(), CreateInput{
		ProjectID:    uuid.New(),
		PONumber:     "po-77",
		SupplierName: "Glass Co",
		Lines: []LineInput{
			{Description: "panes", Quantity: 10, UnitPrice: 120},
			{Description: "frames", Quantity: 10, UnitPrice: 80},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "PO-77", order.PONumber)
	require.Equal(t, StatusDraft, order.Status)
	require.InDelta(t, 2000, order.TotalAmount, 0.001)
	require.Equal(t, "USD", order.Currency)
}

func TestCreateRejectsEmptyLines(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	_, err := svc.Create(context.Background(), CreateInput{
		ProjectID:    uuid.New(),
		PONumber:     "PO-1",
		SupplierName: "X",
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSubmitOnlyFromDraft(t *testing.T) {
	svc, _, approvals, _ := newFixture(t)
	order := pendingOrder(t, svc, 100)
	require.Equal(t, 1, approvals.submits)

	err := svc.Submit(context.Background(), 3, order.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApproveWithinLimit(t *testing.T) {
	svc, repo, approvals, _ := newFixture(t)
	order := pendingOrder(t, svc, 60000)

	actor := authz.Principal{UserID: 9, Role: authz.RolePurchaseManager, Seniority: authz.SenioritySenior, Active: true}
	approved, err := svc.Approve(context.Background(), actor, order.ID, "key-1")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, int64(9), *approved.ApprovedBy)

	stored, err := repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, stored.Status)

	require.Len(t, approvals.records, 1)
	require.Equal(t, shared.ApprovalApprove, approvals.records[0].Action)
}

func TestApproveOverLimitEscalates(t *testing.T) {
	svc, repo, approvals, idempotency := newFixture(t)
	order := pendingOrder(t, svc, 60000)

	actor := authz.Principal{UserID: 9, Role: authz.RolePurchaseManager, Seniority: authz.SeniorityRegular, Active: true}
	_, err := svc.Approve(context.Background(), actor, order.ID, "key-1")
	require.ErrorIs(t, err, ErrLimitExceeded)

	stored, err := repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, stored.Status)

	require.Len(t, approvals.records, 1)
	require.Equal(t, shared.ApprovalEscalate, approvals.records[0].Action)
	// Key is released so a higher authority can retry with the same key.
	require.Contains(t, idempotency.deleted, "key-1")
}

func TestApproveWithoutCapabilityFails(t *testing.T) {
	svc, repo, _, _ := newFixture(t)
	order := pendingOrder(t, svc, 100)

	actor := authz.Principal{UserID: 4, Role: authz.RoleClient, Seniority: authz.SeniorityStandard, Active: true}
	_, err := svc.Approve(context.Background(), actor, order.ID, "")
	require.ErrorIs(t, err, ErrForbidden)

	stored, err := repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, stored.Status)
}

func TestApproveReplaySameKeyConflicts(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	order := pendingOrder(t, svc, 100)

	actor := authz.Principal{UserID: 9, Role: authz.RolePurchaseManager, Seniority: authz.SenioritySenior, Active: true}
	_, err := svc.Approve(context.Background(), actor, order.ID, "key-dup")
	require.NoError(t, err)

	second := pendingOrder2(t, svc)
	_, err = svc.Approve(context.Background(), actor, second.ID, "key-dup")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func pendingOrder2(t *testing.T, svc *Service) Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateInput{
		ProjectID:    uuid.New(),
		PONumber:     "PO-1002",
		SupplierName: "Acme Steel",
		Lines:        []LineInput{{Description: "mesh", Quantity: 1, UnitPrice: 50}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Submit(context.Background(), 3, order.ID))
	return order
}

func TestRejectRecordsHistory(t *testing.T) {
	svc, repo, approvals, _ := newFixture(t)
	order := pendingOrder(t, svc, 100)

	actor := authz.Principal{UserID: 9, Role: authz.RolePurchaseManager, Seniority: authz.SenioritySenior, Active: true}
	rejected, err := svc.Reject(context.Background(), actor, order.ID, "wrong supplier")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)

	stored, err := repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, stored.Status)
	require.Len(t, approvals.records, 1)
	require.Equal(t, shared.ApprovalReject, approvals.records[0].Action)
	require.Equal(t, "wrong supplier", approvals.records[0].Note)
}

func TestCancelApprovedOrderFails(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	order := pendingOrder(t, svc, 100)

	actor := authz.Principal{UserID: 9, Role: authz.RolePurchaseManager, Seniority: authz.SenioritySenior, Active: true}
	_, err := svc.Approve(context.Background(), actor, order.ID, "")
	require.NoError(t, err)

	require.ErrorIs(t, svc.Cancel(context.Background(), 3, order.ID), ErrInvalidTransition)
}

func TestRedactionClearsCostFields(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	order, err := svc.Create(context.Background(), CreateInput{
		ProjectID:    uuid.New(),
		PONumber:     "PO-55",
		SupplierName: "Acme",
		Lines:        []LineInput{{Description: "rebar", Quantity: 2, UnitPrice: 400}},
	})
	require.NoError(t, err)

	got, redacted, err := svc.Get(context.Background(), order.ID, CostFields())
	require.NoError(t, err)
	require.ElementsMatch(t, CostFields(), redacted)
	require.Zero(t, got.TotalAmount)
	require.Zero(t, got.Lines[0].UnitPrice)
	require.Zero(t, got.Lines[0].TotalPrice)
	require.Equal(t, "rebar", got.Lines[0].Description)
}
