package finalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/office-action-response/internal/apperr"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/store"
	"github.com/joelkehle/office-action-response/internal/store/storetest"
	"github.com/joelkehle/office-action-response/internal/validator"
)

const (
	owner = storetest.Owner
	appID = storetest.ApplicationID
)

func newController(t *testing.T) (*Controller, *store.SQLiteStore) {
	t.Helper()
	s := storetest.New(t)
	m := storetest.SeedMatter(t, s)
	ctx := context.Background()
	for _, r := range m.Application.Rejections {
		if !r.Analyzable {
			continue
		}
		require.NoError(t, s.CreateDocket(ctx, &oa.Docket{RejectionID: r.ID, ApplicationID: appID, ClaimsRejected: r.ClaimsRejected, PriorArt: r.PriorArt, Basis: r.Basis()}))
		for _, k := range []oa.StrategyKind{oa.StrategyNovelFeatures, oa.StrategyOneFeatures} {
			require.NoError(t, s.UpsertStrategyResult(ctx, &oa.StrategyResult{
				RejectionID: r.ID, ApplicationID: appID, Kind: k,
				StrategyOutput: oa.StrategyOutput{AmendmentStrategy: string(k) + " for " + r.ID.String()},
			}))
		}
	}
	c := NewController(s, validator.New(s), nil)
	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	return c, s
}

func TestFinalizeAmendmentUpdatesDocket(t *testing.T) {
	c, s := newController(t)
	ctx := context.Background()
	f, err := c.FinalizeAmendment(ctx, owner, appID, "rej-103", oa.StrategyNovelFeatures)
	require.NoError(t, err)
	assert.Equal(t, oa.StatusFinalized, f.Status)
	require.NotNil(t, f.FinalizedAt)

	d, err := s.GetDocket(ctx, "rej-103")
	require.NoError(t, err)
	assert.Equal(t, oa.StrategyNovelFeatures, d.FinalizedStrategy)
	assert.True(t, d.ShowFinalizedType)

	again, err := c.FinalizeAmendment(ctx, owner, appID, "rej-103", oa.StrategyNovelFeatures)
	require.NoError(t, err)
	assert.True(t, again.FinalizedAt.After(*f.FinalizedAt), "re-finalizing refreshes the timestamp")

	switched, err := c.FinalizeAmendment(ctx, owner, appID, "rej-103", oa.StrategyOneFeatures)
	require.NoError(t, err)
	assert.Equal(t, "oneFeatures for rej-103", switched.AmendmentStrategy)
}

func TestSaveDraftRefusedAfterFinalize(t *testing.T) {
	c, s := newController(t)
	ctx := context.Background()
	draft, err := c.SaveDraft(ctx, owner, appID, "rej-103", oa.StrategyOneFeatures)
	require.NoError(t, err)
	assert.Equal(t, oa.StatusDraft, draft.Status)

	_, err = c.FinalizeAmendment(ctx, owner, appID, "rej-103", oa.StrategyNovelFeatures)
	require.NoError(t, err)

	_, err = c.SaveDraft(ctx, owner, appID, "rej-103", oa.StrategyOneFeatures)
	require.True(t, errors.Is(err, apperr.ErrAlreadyFinalized), "got %v", err)

	f, err := s.GetFinalizedAmendment(ctx, "rej-103")
	require.NoError(t, err)
	assert.Equal(t, oa.StatusFinalized, f.Status)
	assert.Equal(t, oa.StrategyNovelFeatures, f.Kind)
}

func TestFinalizeAmendmentWithoutResult(t *testing.T) {
	c, _ := newController(t)
	_, err := c.FinalizeAmendment(context.Background(), owner, appID, "rej-103", oa.StrategyCompositeAmendment)
	assert.True(t, errors.Is(err, apperr.ErrDraftMissing), "got %v", err)
}

func TestFinalizeOtherResponse(t *testing.T) {
	c, s := newController(t)
	ctx := context.Background()
	_, err := c.FinalizeOtherResponse(ctx, owner, appID, "rej-112")
	require.True(t, errors.Is(err, apperr.ErrDraftMissing), "got %v", err)

	require.NoError(t, s.UpsertOtherResponse(ctx, &oa.OtherRejectionResponse{RejectionID: "rej-112", ApplicationID: appID, Response: "Remarks.", Status: oa.StatusDraft}))
	r, err := c.FinalizeOtherResponse(ctx, owner, appID, "rej-112")
	require.NoError(t, err)
	assert.Equal(t, oa.StatusFinalized, r.Status)

	_, err = c.FinalizeOtherResponse(ctx, owner, appID, "rej-103")
	assert.True(t, errors.Is(err, apperr.ErrAnalyzable), "got %v", err)
}

func TestPreviewGate(t *testing.T) {
	c, s := newController(t)
	ctx := context.Background()
	_, err := c.FinalizeAmendment(ctx, owner, appID, "rej-103", oa.StrategyNovelFeatures)
	require.NoError(t, err)
	_, err = c.SaveDraft(ctx, owner, appID, "rej-102", oa.StrategyOneFeatures)
	require.NoError(t, err)
	require.NoError(t, s.UpsertOtherResponse(ctx, &oa.OtherRejectionResponse{RejectionID: "rej-112", ApplicationID: appID, Response: "Remarks.", Status: oa.StatusDraft}))
	_, err = c.FinalizeOtherResponse(ctx, owner, appID, "rej-112")
	require.NoError(t, err)

	p, err := c.Preview(ctx, owner, appID)
	require.NoError(t, err)
	assert.False(t, p.Ready)
	require.Len(t, p.MissingItems, 1)
	assert.Equal(t, oa.RejectionID("rej-102"), p.MissingItems[0].RejectionID)
	assert.Contains(t, p.MissingItems[0].Message, "not finalized")
	require.Len(t, p.Rejections, 3)
	assert.Equal(t, TrackResponse, p.Rejections[2].Track)

	before, err := s.GetFinalizedAmendment(ctx, "rej-102")
	require.NoError(t, err)
	assert.Equal(t, oa.StatusDraft, before.Status, "preview must not mutate")

	_, err = c.FinalizeAmendment(ctx, owner, appID, "rej-102", oa.StrategyOneFeatures)
	require.NoError(t, err)
	p, err = c.Preview(ctx, owner, appID)
	require.NoError(t, err)
	assert.True(t, p.Ready)
	assert.Empty(t, p.MissingItems)
}

func TestPreviewReportsStaleFinalization(t *testing.T) {
	c, s := newController(t)
	ctx := context.Background()
	_, err := c.FinalizeAmendment(ctx, owner, appID, "rej-103", oa.StrategyNovelFeatures)
	require.NoError(t, err)
	require.NoError(t, s.SetDocketFinalization(ctx, "rej-103", "", false))

	p, err := c.Preview(ctx, owner, appID)
	require.NoError(t, err)
	assert.True(t, p.Rejections[0].Satisfied)
	assert.True(t, p.Rejections[0].Stale)
}
