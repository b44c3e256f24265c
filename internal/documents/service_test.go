package documents

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

type fakeRepo struct {
	docs map[uuid.UUID]Document
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: map[uuid.UUID]Document{}}
}

func (f *fakeRepo) Create(_ context.Context, doc Document) (Document, error) {
	version := 1
	for _, existing := range f.docs {
		if existing.ProjectID == doc.ProjectID && existing.Title == doc.Title && existing.Version >= version {
			version = existing.Version + 1
		}
	}
	doc.Version = version
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (f *fakeRepo) ListByProject(_ context.Context, projectID uuid.UUID, clientVisibleOnly bool) ([]Document, error) {
	var docs []Document
	for _, doc := range f.docs {
		if doc.ProjectID != projectID {
			continue
		}
		if clientVisibleOnly && (!doc.ClientVisible || doc.Status != StatusApproved) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status, reviewedBy *int64) error {
	doc, ok := f.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	if reviewedBy != nil {
		doc.ReviewedBy = reviewedBy
	}
	f.docs[id] = doc
	return nil
}

func (f *fakeRepo) SetClientVisible(_ context.Context, id uuid.UUID, visible bool) error {
	doc, ok := f.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.ClientVisible = visible
	f.docs[id] = doc
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

func (f *fakeApprovals) EnsureSubmit(_ context.Context, _ string, _ uuid.UUID, _ int64, _ string) error {
	f.submits++
	return nil
}

type allowAllMemberships struct{}

func (allowAllMemberships) IsActiveMember(context.Context, int64, uuid.UUID) (bool, error) {
	return true, nil
}

func newFixture(t *testing.T) (*Service, *fakeRepo, *fakeApprovals) {
	t.Helper()
	store, err := authz.NewStore(authz.DefaultConfig())
	require.NoError(t, err)
	repo := newFakeRepo()
	approvals := &fakeApprovals{}
	return NewService(repo, authz.NewEvaluator(store, allowAllMemberships{}), approvals), repo, approvals
}

func uploadedDoc(t *testing.T, svc *Service, projectID uuid.UUID, clientVisible bool) Document {
	t.Helper()
	doc, err := svc.Upload(context.Background(), UploadInput{
		ProjectID:     projectID,
		Title:         "structural drawings",
		Kind:          "drawing",
		StoragePath:   "s3://formulapm/drawings/rev-a.pdf",
		ClientVisible: clientVisible,
		UploadedBy:    3,
	})
	require.NoError(t, err)
	return doc
}

func TestUploadVersionsPerTitle(t *testing.T) {
	svc, _, _ := newFixture(t)
	projectID := uuid.New()

	first := uploadedDoc(t, svc, projectID, false)
	second := uploadedDoc(t, svc, projectID, false)
	require.Equal(t, 1, first.Version)
	require.Equal(t, 2, second.Version)
	require.Equal(t, StatusDraft, second.Status)
}

func TestUploadRejectsBlankInput(t *testing.T) {
	svc, _, _ := newFixture(t)
	_, err := svc.Upload(context.Background(), UploadInput{ProjectID: uuid.New(), Title: " ", StoragePath: "x"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Upload(context.Background(), UploadInput{ProjectID: uuid.New(), Title: "t", StoragePath: "  "})
	require.ErrorIs(t, err, ErrValidation)
}

func TestReviewApprovesSubmittedDocument(t *testing.T) {
	svc, _, approvals := newFixture(t)
	doc := uploadedDoc(t, svc, uuid.New(), false)
	require.NoError(t, svc.Submit(context.Background(), 3, doc.ID))
	require.Equal(t, 1, approvals.submits)

	reviewer := authz.Principal{UserID: 8, Role: authz.RoleTechnicalLead, Seniority: authz.SenioritySenior, Active: true}
	reviewed, err := svc.Review(context.Background(), reviewer, doc.ID, true, "looks good")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	require.Equal(t, int64(8), *reviewed.ReviewedBy)
	require.Len(t, approvals.records, 1)
	require.Equal(t, shared.ApprovalApprove, approvals.records[0].Action)
}

func TestReviewRejectsWithNote(t *testing.T) {
	svc, _, approvals := newFixture(t)
	doc := uploadedDoc(t, svc, uuid.New(), false)
	require.NoError(t, svc.Submit(context.Background(), 3, doc.ID))

	reviewer := authz.Principal{UserID: 8, Role: authz.RoleTechnicalLead, Seniority: authz.SenioritySenior, Active: true}
	reviewed, err := svc.Review(context.Background(), reviewer, doc.ID, false, "missing sections")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, reviewed.Status)
	require.Equal(t, shared.ApprovalReject, approvals.records[0].Action)
	require.Equal(t, "missing sections", approvals.records[0].Note)
}

func TestReviewRequiresSubmittedStatus(t *testing.T) {
	svc, _, _ := newFixture(t)
	doc := uploadedDoc(t, svc, uuid.New(), false)

	reviewer := authz.Principal{UserID: 8, Role: authz.RoleTechnicalLead, Seniority: authz.SenioritySenior, Active: true}
	_, err := svc.Review(context.Background(), reviewer, doc.ID, true, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReviewByClientForbidden(t *testing.T) {
	svc, _, _ := newFixture(t)
	doc := uploadedDoc(t, svc, uuid.New(), false)
	require.NoError(t, svc.Submit(context.Background(), 3, doc.ID))

	client := authz.Principal{UserID: 4, Role: authz.RoleClient, Seniority: authz.SeniorityStandard, Active: true}
	_, err := svc.Review(context.Background(), client, doc.ID, true, "")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestClientOnlySeesApprovedVisibleDocuments(t *testing.T) {
	svc, _, _ := newFixture(t)
	projectID := uuid.New()
	hidden := uploadedDoc(t, svc, projectID, false)
	visible, err := svc.Upload(context.Background(), UploadInput{
		ProjectID:     projectID,
		Title:         "handover pack",
		StoragePath:   "s3://formulapm/docs/handover.pdf",
		ClientVisible: true,
		UploadedBy:    3,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Submit(context.Background(), 3, visible.ID))

	reviewer := authz.Principal{UserID: 8, Role: authz.RoleTechnicalLead, Seniority: authz.SenioritySenior, Active: true}
	_, err = svc.Review(context.Background(), reviewer, visible.ID, true, "")
	require.NoError(t, err)

	client := authz.Principal{UserID: 4, Role: authz.RoleClient, Seniority: authz.SeniorityStandard, Active: true}
	docs, err := svc.ListByProject(context.Background(), client, projectID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, visible.ID, docs[0].ID)

	_, err = svc.Get(context.Background(), client, hidden.ID)
	require.ErrorIs(t, err, ErrNotFound)

	staff := authz.Principal{UserID: 3, Role: authz.RoleProjectManager, Seniority: authz.SeniorityRegular, Active: true}
	docs, err = svc.ListByProject(context.Background(), staff, projectID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
}
