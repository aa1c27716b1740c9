package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/joelkehle/office-action-response/internal/apperr"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/search"
	"github.com/joelkehle/office-action-response/internal/store"
	"github.com/joelkehle/office-action-response/internal/store/storetest"
)

type fakeExtractor struct {
	out   oa.Extraction
	err   error
	texts []string
}

func (f *fakeExtractor) Extract(_ context.Context, text string) (oa.Extraction, error) {
	f.texts = append(f.texts, text)
	return f.out, f.err
}

type fakeResolver struct {
	tree []oa.ClaimGroup
	err  error
}

func (f *fakeResolver) Resolve(context.Context, string) ([]oa.ClaimGroup, error) {
	return f.tree, f.err
}

type fakeFetcher struct {
	err  error
	refs []oa.PriorArtReference
}

func (f *fakeFetcher) FetchAll(_ context.Context, refs []oa.PriorArtReference) ([]oa.PriorArtDocument, error) {
	f.refs = refs
	if f.err != nil {
		return nil, f.err
	}
	out := make([]oa.PriorArtDocument, len(refs))
	for i, r := range refs {
		out[i] = oa.PriorArtDocument{ReferenceID: r.ReferenceID, Description: "text of " + r.ReferenceID}
	}
	return out, nil
}

type fakeSearcher struct {
	docs []search.Document
	blob []byte
}

func (f *fakeSearcher) Documents(context.Context, string) ([]search.Document, error) {
	return f.docs, nil
}

func (f *fakeSearcher) Download(context.Context, search.Document) ([]byte, error) {
	return f.blob, nil
}

type fakeProbe struct{ n int }

func (f fakeProbe) Count(context.Context, string) (int, error) { return f.n, nil }

// existsCounter counts uniqueness checks.
type existsCounter struct {
	store.API
	checks int
	hide   bool
}

func (e *existsCounter) ApplicationExists(ctx context.Context, id string) (bool, error) {
	e.checks++
	if e.hide {
		return false, nil
	}
	return e.API.ApplicationExists(ctx, id)
}

func sequence(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i]
		if i < len(ids)-1 {
			i++
		}
		return id
	}
}

func TestNewShortID(t *testing.T) {
	id := NewShortID()
	assert.Regexp(t, `^[0-9a-f]{10}$`, id)
	assert.NotEqual(t, id, NewShortID())
}

func TestCreateApplicationRetriesCollisions(t *testing.T) {
	s := storetest.New(t)
	taken := &oa.Application{ID: "aaaaaaaaaa", OwnerID: "other", ApplicationNumber: "1"}
	require.NoError(t, s.InsertApplication(context.Background(), taken))

	counter := &existsCounter{API: s}
	svc := New(Deps{Store: counter, Log: zaptest.NewLogger(t), NewID: sequence("aaaaaaaaaa", "aaaaaaaaaa", "aaaaaaaaaa", "bbbbbbbbbb")})
	app, err := svc.CreateApplication(context.Background(), storetest.Owner, ApplicationMeta{ApplicationNumber: "16/123,456", Title: " Widget "})
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbbbb", app.ID)
	assert.Equal(t, "Widget", app.Title)
	assert.Equal(t, 4, counter.checks)

	got, err := svc.GetApplication(context.Background(), storetest.Owner, "bbbbbbbbbb")
	require.NoError(t, err)
	assert.Equal(t, "16/123,456", got.ApplicationNumber)
}

func TestCreateApplicationRetriesInsertRace(t *testing.T) {
	s := storetest.New(t)
	require.NoError(t, s.InsertApplication(context.Background(), &oa.Application{ID: "aaaaaaaaaa", OwnerID: "other", ApplicationNumber: "1"}))

	svc := New(Deps{Store: &existsCounter{API: s, hide: true}, NewID: sequence("aaaaaaaaaa", "cccccccccc")})
	app, err := svc.CreateApplication(context.Background(), storetest.Owner, ApplicationMeta{ApplicationNumber: "2"})
	require.NoError(t, err)
	assert.Equal(t, "cccccccccc", app.ID)
}

func TestCreateApplicationExhaustsAttempts(t *testing.T) {
	s := storetest.New(t)
	require.NoError(t, s.InsertApplication(context.Background(), &oa.Application{ID: "aaaaaaaaaa", OwnerID: "other", ApplicationNumber: "1"}))

	counter := &existsCounter{API: s}
	svc := New(Deps{Store: counter, NewID: sequence("aaaaaaaaaa")})
	_, err := svc.CreateApplication(context.Background(), storetest.Owner, ApplicationMeta{ApplicationNumber: "2"})
	require.ErrorIs(t, err, apperr.ErrIDExhausted)
	assert.Equal(t, DefaultMaxIDAttempts, counter.checks)
}

func TestCreateApplicationValidates(t *testing.T) {
	svc := New(Deps{Store: storetest.New(t)})
	_, err := svc.CreateApplication(context.Background(), "", ApplicationMeta{ApplicationNumber: "1"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUnauthorized, ae.Code)

	_, err = svc.CreateApplication(context.Background(), storetest.Owner, ApplicationMeta{})
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
}

func TestIngestionMakesMatterReady(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	ext := &fakeExtractor{out: oa.Extraction{
		Rejections: []oa.Rejection{{
			ID: "r1", Type: "35 U.S.C. 103", ClaimsRejected: []int{1, 2},
			PriorArt: []oa.PriorArtReference{oa.NewPriorArtReference("US 7250547 B2")},
		}},
		ClaimStatuses: []oa.ClaimStatus{{ClaimNumbers: "1-2", Status: oa.StatusRejected}},
	}}
	fetcher := &fakeFetcher{}
	svc := New(Deps{
		Store:     s,
		Extractor: ext,
		Resolver:  &fakeResolver{tree: []oa.ClaimGroup{{IndependentClaim: 1, DependentClaims: []int{2}}}},
		PriorArt:  fetcher,
		Probe:     fakeProbe{n: 3},
		Log:       zaptest.NewLogger(t),
	})

	app, err := svc.CreateApplication(ctx, storetest.Owner, ApplicationMeta{ApplicationNumber: "16/123,456", PublicationNumber: "US20200123456A1"})
	require.NoError(t, err)

	app, err = svc.IngestOfficeAction(ctx, storetest.Owner, app.ID, "office action text")
	require.NoError(t, err)
	require.Len(t, app.Rejections, 1)
	assert.False(t, app.Rejections[0].Analyzable, "no claim tree yet")

	app, err = svc.IngestClaims(ctx, storetest.Owner, app.ID, "1. A widget.\n2. The widget of claim 1.")
	require.NoError(t, err)
	assert.True(t, app.Rejections[0].Analyzable)
	assert.Equal(t, 3, app.ClaimCount, "mismatch is recorded, not fatal")

	_, err = svc.IngestDescription(ctx, storetest.Owner, app.ID, "The widget has a lever.")
	require.NoError(t, err)
	app, err = svc.IngestPriorArt(ctx, storetest.Owner, app.ID)
	require.NoError(t, err)
	assert.True(t, app.Ready())
	require.Len(t, fetcher.refs, 1)

	docs, err := s.GetDocuments(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "The widget has a lever.", docs.DescriptionText)
	assert.Len(t, docs.ClaimTree, 1)
	desc, ok := docs.PriorArtDescription("US7250547B2")
	assert.True(t, ok)
	assert.Equal(t, "text of US7250547B2", desc)

	stored, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, stored.Rejections[0].Analyzable)
}

func TestIngestPriorArtFailureIsUpstream(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	m := storetest.SeedMatter(t, s)
	svc := New(Deps{Store: s, PriorArt: &fakeFetcher{err: errors.New("US7250547B2: no description")}})

	_, err := svc.IngestPriorArt(ctx, storetest.Owner, m.Application.ID)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUpstream, ae.Code)
	assert.Equal(t, "failed to fetch prior art", ae.Message)
}

func TestIngestRejectsOtherOwner(t *testing.T) {
	s := storetest.New(t)
	m := storetest.SeedMatter(t, s)
	svc := New(Deps{Store: s, Extractor: &fakeExtractor{}})
	_, err := svc.IngestOfficeAction(context.Background(), "intruder", m.Application.ID, "text")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeNotFound, ae.Code)
}

func TestIngestOfficeActionPropagatesGenerationFailure(t *testing.T) {
	s := storetest.New(t)
	m := storetest.SeedMatter(t, s)
	svc := New(Deps{Store: s, Extractor: &fakeExtractor{err: apperr.ErrGenerationFailed}})
	_, err := svc.IngestOfficeAction(context.Background(), storetest.Owner, m.Application.ID, "text")
	assert.ErrorIs(t, err, apperr.ErrGenerationFailed)

	app, err := s.GetApplication(context.Background(), m.Application.ID)
	require.NoError(t, err)
	assert.Len(t, app.Rejections, 3)
}

func TestImportOfficeActionSetsFirstAction(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	m := storetest.SeedMatter(t, s)
	ext := &fakeExtractor{out: oa.Extraction{Rejections: []oa.Rejection{{ID: "r-new", Type: "35 U.S.C. 102", ClaimsRejected: []int{10}}}}}
	svc := New(Deps{
		Store:     s,
		Extractor: ext,
		Search: &fakeSearcher{
			docs: []search.Document{{Code: search.CodeNonFinalRejection, DownloadURL: "https://example.test/ctnf.pdf"}},
			blob: []byte("Claims 10 is rejected under 35 U.S.C. 102."),
		},
	})
	app, err := svc.ImportOfficeAction(ctx, storetest.Owner, m.Application.ID)
	require.NoError(t, err)
	assert.True(t, app.FirstAction)
	assert.Len(t, app.Rejections, 4)
	assert.True(t, app.Rejections[3].Analyzable)
	assert.Equal(t, []string{"Claims 10 is rejected under 35 U.S.C. 102."}, ext.texts)
}

func TestImportOfficeActionNeedsSearch(t *testing.T) {
	s := storetest.New(t)
	m := storetest.SeedMatter(t, s)
	_, err := New(Deps{Store: s}).ImportOfficeAction(context.Background(), storetest.Owner, m.Application.ID)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
}

func TestMergePriorArtReplacesByReference(t *testing.T) {
	got := mergePriorArt(
		[]oa.PriorArtDocument{{ReferenceID: "A", Description: "old"}, {ReferenceID: "B", Description: "b"}},
		[]oa.PriorArtDocument{{ReferenceID: "A", Description: "new"}, {ReferenceID: "C", Description: "c"}},
	)
	assert.Equal(t, []oa.PriorArtDocument{{ReferenceID: "A", Description: "new"}, {ReferenceID: "B", Description: "b"}, {ReferenceID: "C", Description: "c"}}, got)
}
