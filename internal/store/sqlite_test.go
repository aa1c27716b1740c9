package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oa "github.com/joelkehle/office-action-response/internal/officeaction"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleApplication() *oa.Application {
	return &oa.Application{
		ID:                "a1b2c3d4e5",
		ApplicationNumber: "16/123,456",
		OwnerID:           "user-1",
		Title:             "Widget",
		Rejections: []oa.Rejection{
			{ID: "rej-1", Type: "35 U.S.C. 103", ClaimsRejected: []int{1, 2}, PriorArt: []oa.PriorArtReference{oa.NewPriorArtReference("US 7250547 B2")}},
		},
		ClaimStatuses: []oa.ClaimStatus{{ClaimNumbers: "1-2", Status: oa.StatusRejected}},
	}
}

func TestApplicationRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s1, err := Open(path)
	require.NoError(t, err)
	app := sampleApplication()
	require.NoError(t, s1.InsertApplication(context.Background(), app))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.Rejections, got.Rejections)
	assert.Equal(t, app.ClaimStatuses, got.ClaimStatuses)
	assert.Equal(t, "user-1", got.OwnerID)
}

func TestInsertApplicationDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertApplication(ctx, sampleApplication()))
	err := s.InsertApplication(ctx, sampleApplication())
	assert.ErrorIs(t, err, ErrDuplicate)

	exists, err := s.ApplicationExists(ctx, "a1b2c3d4e5")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.ApplicationExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReadinessFlagsAreMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app := sampleApplication()
	require.NoError(t, s.InsertApplication(ctx, app))

	app.ClaimsIngested = true
	require.NoError(t, s.UpdateApplication(ctx, app))

	app.ClaimsIngested = false
	app.DescriptionIngested = true
	require.NoError(t, s.UpdateApplication(ctx, app))

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, got.ClaimsIngested, "a raised flag must stay raised")
	assert.True(t, got.DescriptionIngested)
	assert.False(t, got.PriorArtIngested)
}

func TestGetApplicationNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetApplication(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetDocuments(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	docs := &oa.ApplicationDocuments{ApplicationID: "a1", ClaimText: "1. A widget."}
	require.NoError(t, s.SaveDocuments(ctx, docs))
	docs.ClaimTree = []oa.ClaimGroup{{IndependentClaim: 1, DependentClaims: []int{}}}
	docs.PriorArt = []oa.PriorArtDocument{{ReferenceID: "US7250547B2", Description: "A lever."}}
	require.NoError(t, s.SaveDocuments(ctx, docs))

	got, err := s.GetDocuments(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, docs.ClaimTree, got.ClaimTree)
	desc, ok := got.PriorArtDescription("US7250547B2")
	assert.True(t, ok)
	assert.Equal(t, "A lever.", desc)
}

func TestDocketCreatedOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := &oa.Docket{RejectionID: "rej-1", ApplicationID: "a1", ClaimsRejected: []int{1}, Basis: oa.Basis103}
	require.NoError(t, s.CreateDocket(ctx, d))

	dup := &oa.Docket{RejectionID: "rej-1", ApplicationID: "a1", ClaimsRejected: []int{9}, Basis: oa.Basis102}
	err := s.CreateDocket(ctx, dup)
	require.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

	list, err := s.ListDockets(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []int{1}, list[0].ClaimsRejected)
	assert.Equal(t, oa.Basis103, list[0].Basis)
}

func TestDocketFinalizationFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDocket(ctx, &oa.Docket{RejectionID: "rej-1", ApplicationID: "a1", Basis: oa.Basis102}))
	require.NoError(t, s.SetDocketFinalization(ctx, "rej-1", oa.StrategyNovelFeatures, true))
	require.NoError(t, s.SetDocketFinalization(ctx, "rej-1", "", false))

	d, err := s.GetDocket(ctx, "rej-1")
	require.NoError(t, err)
	assert.Equal(t, oa.StrategyNovelFeatures, d.FinalizedStrategy)
	assert.False(t, d.ShowFinalizedType)

	assert.ErrorIs(t, s.SetDocketFinalization(ctx, "missing", "", false), ErrNotFound)
}

func TestStrategyResultUpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := &oa.StrategyResult{RejectionID: "rej-1", ApplicationID: "a1", Kind: oa.StrategyOneFeatures,
		StrategyOutput: oa.StrategyOutput{AmendmentStrategy: "first"}}
	require.NoError(t, s.UpsertStrategyResult(ctx, r))
	r.AmendmentStrategy = "second"
	r.AmendedClaim = oa.AmendedClaim{Preamble: "A widget", Elements: []oa.ClaimElement{{ElementID: "a", Text: "a lever"}}}
	require.NoError(t, s.UpsertStrategyResult(ctx, r))

	got, err := s.GetStrategyResult(ctx, "rej-1", oa.StrategyOneFeatures)
	require.NoError(t, err)
	assert.Equal(t, "second", got.AmendmentStrategy)
	assert.Equal(t, "a lever", got.AmendedClaim.Elements[0].Text)

	all, err := s.ListStrategyResults(ctx, "rej-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFinalizedAmendmentNeverRevertsToDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f := &oa.FinalizedAmendment{RejectionID: "rej-1", ApplicationID: "a1", Kind: oa.StrategyNovelFeatures,
		StrategyOutput: oa.StrategyOutput{AmendmentStrategy: "final"}, Status: oa.StatusFinalized, FinalizedAt: &at}
	require.NoError(t, s.UpsertFinalizedAmendment(ctx, f))

	draft := &oa.FinalizedAmendment{RejectionID: "rej-1", ApplicationID: "a1", Kind: oa.StrategyOneFeatures,
		StrategyOutput: oa.StrategyOutput{AmendmentStrategy: "draft"}, Status: oa.StatusDraft}
	assert.ErrorIs(t, s.UpsertFinalizedAmendment(ctx, draft), ErrFinalized)

	got, err := s.GetFinalizedAmendment(ctx, "rej-1")
	require.NoError(t, err)
	assert.Equal(t, oa.StatusFinalized, got.Status)
	assert.Equal(t, "final", got.AmendmentStrategy)
	require.NotNil(t, got.FinalizedAt)
	assert.True(t, at.Equal(*got.FinalizedAt))

	later := at.Add(time.Hour)
	f.FinalizedAt = &later
	require.NoError(t, s.UpsertFinalizedAmendment(ctx, f), "re-finalizing is allowed")
	got, err = s.GetFinalizedAmendment(ctx, "rej-1")
	require.NoError(t, err)
	assert.True(t, later.Equal(*got.FinalizedAt))
}

func TestOtherResponseLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := &oa.OtherRejectionResponse{RejectionID: "rej-2", ApplicationID: "a1", Response: "draft text", Status: oa.StatusDraft}
	require.NoError(t, s.UpsertOtherResponse(ctx, r))
	r.Response = "edited text"
	require.NoError(t, s.UpsertOtherResponse(ctx, r))

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r.Status, r.FinalizedAt = oa.StatusFinalized, &at
	require.NoError(t, s.UpsertOtherResponse(ctx, r))

	r.Status, r.FinalizedAt, r.Response = oa.StatusDraft, nil, "late edit"
	assert.ErrorIs(t, s.UpsertOtherResponse(ctx, r), ErrFinalized)

	got, err := s.GetOtherResponse(ctx, "rej-2")
	require.NoError(t, err)
	assert.Equal(t, "edited text", got.Response)
	assert.Equal(t, oa.StatusFinalized, got.Status)
}
