package claims

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/llm"
	"github.com/joelkehle/office-action-response/internal/llm/llmtest"
	"github.com/joelkehle/office-action-response/internal/officeaction"
)

func intp(n int) *int { return &n }

func TestBodyStripsStatusMarker(t *testing.T) {
	listing := "13. (Canceled)\n14. (Previously Presented) A widget comprising a\n  frame and a lever.\n15. (New) The widget of claim 14, wherein the lever pivots."
	body, ok := Body(14, nil, listing)
	require.True(t, ok)
	assert.Equal(t, "A widget comprising a frame and a lever.", body)

	body, ok = Body(15, nil, listing)
	require.True(t, ok)
	assert.Equal(t, "The widget of claim 14, wherein the lever pivots.", body)

	_, ok = Body(13, nil, listing)
	assert.False(t, ok, "a canceled claim has no body")
	_, ok = Body(99, nil, listing)
	assert.False(t, ok)
}

func TestBodyPrefersTreeText(t *testing.T) {
	tree := []officeaction.ClaimGroup{{IndependentClaim: 1, IndependentClaimText: "A method of stacking blocks."}}
	body, ok := Body(1, tree, "1. Something else entirely.")
	require.True(t, ok)
	assert.Equal(t, "A method of stacking blocks.", body)
}

func TestBuildTreeCollapsesChains(t *testing.T) {
	r := NewResolver(nil, zaptest.NewLogger(t))
	tree := r.BuildTree([]claimWire{
		{ClaimNumber: 1, Text: "A widget."},
		{ClaimNumber: 2, DependsOn: intp(1)},
		{ClaimNumber: 3, DependsOn: intp(2)},
		{ClaimNumber: 4, DependsOn: intp(3), Canceled: true},
		{ClaimNumber: 5, DependsOn: intp(4)},
		{ClaimNumber: 10, Text: "A method."},
		{ClaimNumber: 11, DependsOn: intp(10)},
		{ClaimNumber: 12, DependsOn: intp(40)},
		{ClaimNumber: 20, Canceled: true},
		{ClaimNumber: 21, DependsOn: intp(20)},
	})

	want := []officeaction.ClaimGroup{
		{IndependentClaim: 1, IndependentClaimText: "A widget.", DependentClaims: []int{2, 3, 5}},
		{IndependentClaim: 10, IndependentClaimText: "A method.", DependentClaims: []int{11}},
		{IndependentClaim: 12, DependentClaims: []int{}},
		{IndependentClaim: 21, DependentClaims: []int{}},
	}
	assert.Equal(t, want, tree)
}

func TestBuildTreeBreaksCycles(t *testing.T) {
	r := NewResolver(nil, nil)
	tree := r.BuildTree([]claimWire{
		{ClaimNumber: 1},
		{ClaimNumber: 2, DependsOn: intp(3)},
		{ClaimNumber: 3, DependsOn: intp(2)},
	})
	require.Len(t, tree, 3)
	for _, g := range tree {
		assert.Empty(t, g.DependentClaims)
	}
}

func TestResolveAcceptsEmptySet(t *testing.T) {
	gen := llmtest.New(`{"claims": []}`)
	r := NewResolver(llm.NewExecutor(gen, llm.DefaultRetryPolicy(), nil, nil), nil)
	tree, err := r.Resolve(context.Background(), "1. (Canceled)")
	require.NoError(t, err)
	assert.Empty(t, tree)
	assert.Equal(t, 1, gen.Calls())
}

func TestResolveRetriesOnParseFailure(t *testing.T) {
	gen := llmtest.New("not json", "still not json")
	r := NewResolver(llm.NewExecutor(gen, llm.DefaultRetryPolicy(), nil, nil), nil)
	_, err := r.Resolve(context.Background(), "1. A widget.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrGenerationFailed))
	assert.Equal(t, 2, gen.Calls())
}

func TestResolveParsesFencedResponse(t *testing.T) {
	gen := llmtest.New("Here you go:\n```json\n" + `{"claims": [
		{"claimNumber": 1, "dependsOn": null, "canceled": false, "text": "A widget."},
		{"claimNumber": 2, "dependsOn": 1, "canceled": false, "text": "The widget of claim 1."}
	]}` + "\n```")
	r := NewResolver(llm.NewExecutor(gen, llm.DefaultRetryPolicy(), nil, nil), nil)
	tree, err := r.Resolve(context.Background(), "1. A widget.\n2. The widget of claim 1.")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, []int{2}, tree[0].DependentClaims)
}
