package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/llm"
	"github.com/joelkehle/office-action-response/internal/llm/llmtest"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/store"
	"github.com/joelkehle/office-action-response/internal/store/storetest"
	"github.com/joelkehle/office-action-response/internal/validator"
)

const strategyReply = "```json\n" + `{"comparisonTable": [{"featureNumber": 1, "subjectApplication": "lever", "priorArt": "none", "differentiatingFeature": "locking hinge"}]}` +
	"\n```\n```json\n" + `{"amendedClaim": {"preamble": "A widget comprising", "elements": [{"elementId": "a", "text": "a lever"}, {"elementId": "b", "text": "a locking hinge"}]}, "amendmentStrategy": "Add the hinge."}` + "\n```"

func newEngine(t *testing.T, gen llm.Generator) (*Engine, *store.SQLiteStore) {
	t.Helper()
	s := storetest.New(t)
	storetest.SeedMatter(t, s)
	exec := llm.NewExecutor(gen, llm.DefaultRetryPolicy(), nil, zaptest.NewLogger(t))
	return NewEngine(s, validator.New(s), exec, zaptest.NewLogger(t)), s
}

func TestCreateDocketOnce(t *testing.T) {
	e, s := newEngine(t, llmtest.New())
	ctx := context.Background()

	d, err := e.CreateDocket(ctx, storetest.Owner, storetest.ApplicationID, "rej-103")
	require.NoError(t, err)
	assert.Equal(t, oa.Basis103, d.Basis)
	assert.Len(t, d.PriorArt, 2)

	_, err = e.CreateDocket(ctx, storetest.Owner, storetest.ApplicationID, "rej-103")
	require.True(t, errors.Is(err, apperr.ErrDocketExists), "got %v", err)

	list, err := s.ListDockets(ctx, storetest.ApplicationID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateDocketRefusesFreeformRejection(t *testing.T) {
	e, _ := newEngine(t, llmtest.New())
	_, err := e.CreateDocket(context.Background(), storetest.Owner, storetest.ApplicationID, "rej-112")
	assert.True(t, errors.Is(err, apperr.ErrNotAnalyzable), "got %v", err)
}

func TestRunMergesBlocksAndUpserts(t *testing.T) {
	gen := llmtest.New(strategyReply)
	e, s := newEngine(t, gen)
	ctx := context.Background()
	_, err := e.CreateDocket(ctx, storetest.Owner, storetest.ApplicationID, "rej-103")
	require.NoError(t, err)

	res, err := e.Run(ctx, storetest.Owner, storetest.ApplicationID, "rej-103", oa.StrategyDependentClaims)
	require.NoError(t, err)
	require.Len(t, res.ComparisonTable, 1)
	assert.Equal(t, "locking hinge", res.ComparisonTable[0].DifferentiatingFeature)
	assert.Len(t, res.AmendedClaim.Elements, 2)
	assert.Equal(t, "Add the hinge.", res.AmendmentStrategy)

	prompt := gen.Last().Prompt
	assert.Contains(t, prompt, "Dependent claims:")
	assert.Contains(t, prompt, "Jones describes a lever.")
	assert.Contains(t, prompt, "A widget comprising a lever.")

	stored, err := s.GetStrategyResult(ctx, "rej-103", oa.StrategyDependentClaims)
	require.NoError(t, err)
	assert.Equal(t, res.StrategyOutput, stored.StrategyOutput)
}

func TestRunWithoutDocketNeverCallsGenerator(t *testing.T) {
	gen := llmtest.New(strategyReply)
	e, _ := newEngine(t, gen)
	_, err := e.Run(context.Background(), storetest.Owner, storetest.ApplicationID, "rej-103", oa.StrategyNovelFeatures)
	assert.True(t, errors.Is(err, apperr.ErrNotDocketed), "got %v", err)
	assert.Zero(t, gen.Calls())
}

func TestRunUnknownStrategy(t *testing.T) {
	e, _ := newEngine(t, llmtest.New())
	_, err := e.Run(context.Background(), storetest.Owner, storetest.ApplicationID, "rej-103", "bogus")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
}

func TestRunFailsAfterTwoEmptyOutputs(t *testing.T) {
	gen := llmtest.New(`{"comparisonTable": []}`, "")
	e, _ := newEngine(t, gen)
	ctx := context.Background()
	_, err := e.CreateDocket(ctx, storetest.Owner, storetest.ApplicationID, "rej-102")
	require.NoError(t, err)

	_, err = e.Run(ctx, storetest.Owner, storetest.ApplicationID, "rej-102", oa.StrategyTechnicalComparison)
	assert.True(t, errors.Is(err, apperr.ErrGenerationFailed), "got %v", err)
	assert.Equal(t, 2, gen.Calls())
}

func TestRunOtherStrategyMarksFinalizationStale(t *testing.T) {
	gen := llmtest.New()
	gen.Fallback = llmtest.Reply{Text: strategyReply}
	e, s := newEngine(t, gen)
	ctx := context.Background()
	_, err := e.CreateDocket(ctx, storetest.Owner, storetest.ApplicationID, "rej-103")
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	final := &oa.FinalizedAmendment{RejectionID: "rej-103", ApplicationID: storetest.ApplicationID, Kind: oa.StrategyNovelFeatures,
		StrategyOutput: oa.StrategyOutput{AmendmentStrategy: "novel"}, Status: oa.StatusFinalized, FinalizedAt: &at}
	require.NoError(t, s.UpsertFinalizedAmendment(ctx, final))
	require.NoError(t, s.SetDocketFinalization(ctx, "rej-103", oa.StrategyNovelFeatures, true))

	_, err = e.Run(ctx, storetest.Owner, storetest.ApplicationID, "rej-103", oa.StrategyNovelFeatures)
	require.NoError(t, err)
	d, err := s.GetDocket(ctx, "rej-103")
	require.NoError(t, err)
	assert.True(t, d.ShowFinalizedType, "re-running the finalized strategy keeps the flag")

	_, err = e.Run(ctx, storetest.Owner, storetest.ApplicationID, "rej-103", oa.StrategyOneFeatures)
	require.NoError(t, err)
	d, err = s.GetDocket(ctx, "rej-103")
	require.NoError(t, err)
	assert.False(t, d.ShowFinalizedType)
	assert.Equal(t, oa.StrategyNovelFeatures, d.FinalizedStrategy)

	kept, err := s.GetFinalizedAmendment(ctx, "rej-103")
	require.NoError(t, err)
	assert.Equal(t, oa.StrategyNovelFeatures, kept.Kind)
	assert.Equal(t, "novel", kept.AmendmentStrategy)
	assert.Equal(t, oa.StatusFinalized, kept.Status)
}

func TestRespondOther(t *testing.T) {
	gen := llmtest.New("  The term \"substantially\" is defined in paragraph 12.  ")
	e, s := newEngine(t, gen)
	ctx := context.Background()

	r, err := e.RespondOther(ctx, storetest.Owner, storetest.ApplicationID, "rej-112")
	require.NoError(t, err)
	assert.Equal(t, oa.StatusDraft, r.Status)
	assert.Equal(t, `The term "substantially" is defined in paragraph 12.`, r.Response)

	_, err = e.RespondOther(ctx, storetest.Owner, storetest.ApplicationID, "rej-103")
	assert.True(t, errors.Is(err, apperr.ErrAnalyzable), "got %v", err)

	edited, err := e.SaveOtherResponse(ctx, storetest.Owner, storetest.ApplicationID, "rej-112", "Edited remarks.")
	require.NoError(t, err)
	assert.Equal(t, "Edited remarks.", edited.Response)
	got, err := s.GetOtherResponse(ctx, "rej-112")
	require.NoError(t, err)
	assert.Equal(t, "Edited remarks.", got.Response)

	_, err = e.SaveOtherResponse(ctx, storetest.Owner, storetest.ApplicationID, "rej-112", "   ")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
}

func TestHeading(t *testing.T) {
	for _, k := range oa.StrategyKinds {
		assert.NotEqual(t, string(k), Heading(k), "every strategy needs a heading")
	}
}
