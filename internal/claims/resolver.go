// Package claims resolves claim dependencies and locates claim bodies.
package claims

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/llm"
	"github.com/joelkehle/office-action-response/internal/officeaction"
)

const MaxClaimListingChars = 200000

const resolverSystemPrompt = "You read patent claim listings and report, for every claim, the single claim it directly refers back to. Return strict JSON only."

const resolverSchemaPrompt = `Required JSON schema:
{
  "claims": [
    {
      "claimNumber": integer,
      "dependsOn": integer claim number referenced by this claim, or null when it stands alone,
      "canceled": true when the claim is marked canceled,
      "text": "claim body without the number or status marker"
    }
  ]
}`

type claimWire struct {
	ClaimNumber int    `json:"claimNumber"`
	DependsOn   *int   `json:"dependsOn"`
	Canceled    bool   `json:"canceled"`
	Text        string `json:"text"`
}

type resolution struct {
	Claims []claimWire `json:"claims"`
}

type Resolver struct {
	exec *llm.Executor
	log  *zap.Logger
}

func NewResolver(exec *llm.Executor, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{exec: exec, log: log}
}

// Resolve builds the claim tree for listing. An empty tree is a valid result.
func (r *Resolver) Resolve(ctx context.Context, listing string) ([]officeaction.ClaimGroup, error) {
	ctx, span := otel.Tracer("claims").Start(ctx, "claims.Resolve")
	defer span.End()

	listing = strings.TrimSpace(listing)
	if listing == "" {
		return nil, apperr.Validation("claim text is required")
	}
	if len(listing) > MaxClaimListingChars {
		listing = listing[:MaxClaimListingChars]
	}

	prompt := fmt.Sprintf("List every claim below with its direct back-reference.\n\n%s\n\nClaims:\n%s", resolverSchemaPrompt, listing)
	res, m, err := llm.RunJSON[resolution](ctx, r.exec, "resolve_claims", llm.Request{System: resolverSystemPrompt, Prompt: prompt}, nil)
	span.SetAttributes(attribute.Int("attempts", m.Attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim resolution failed")
		return nil, apperr.ErrGenerationFailed.WithMessage("failed to process claims, please try again").Wrap(err)
	}

	tree := r.BuildTree(res.Claims)
	span.SetAttributes(attribute.Int("groups", len(tree)))
	r.log.Info("claims_resolved", zap.Int("claims", len(res.Claims)), zap.Int("groups", len(tree)), zap.Int("attempts", m.Attempts))
	return tree, nil
}

// BuildTree collapses each claim's chain of back-references into the group of
// its ultimate independent ancestor. Canceled claims are followed but never
// listed. A live claim whose chain dangles, loops or ends on a canceled root
// becomes its own group.
func (r *Resolver) BuildTree(entries []claimWire) []officeaction.ClaimGroup {
	byNum := make(map[int]claimWire, len(entries))
	for _, c := range entries {
		if c.ClaimNumber <= 0 {
			continue
		}
		if prev, ok := byNum[c.ClaimNumber]; ok && prev.Text != "" && c.Text == "" {
			continue
		}
		byNum[c.ClaimNumber] = c
	}

	groups := map[int]*officeaction.ClaimGroup{}
	group := func(n int) *officeaction.ClaimGroup {
		g, ok := groups[n]
		if !ok {
			g = &officeaction.ClaimGroup{IndependentClaim: n, IndependentClaimText: strings.TrimSpace(byNum[n].Text), DependentClaims: []int{}}
			groups[n] = g
		}
		return g
	}

	for n, c := range byNum {
		if c.Canceled {
			continue
		}
		if c.DependsOn == nil || *c.DependsOn == n {
			group(n)
			continue
		}
		root, ok := ancestor(n, byNum)
		if !ok {
			r.log.Warn("claim_chain_unresolved", zap.Int("claim", n))
			group(n)
			continue
		}
		g := group(root)
		g.DependentClaims = append(g.DependentClaims, n)
	}

	out := make([]officeaction.ClaimGroup, 0, len(groups))
	for _, g := range groups {
		sort.Ints(g.DependentClaims)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IndependentClaim < out[j].IndependentClaim })
	return out
}

// ancestor follows back-references from n to the first claim with none. It
// fails on a missing link, a cycle, or a canceled root.
func ancestor(n int, byNum map[int]claimWire) (int, bool) {
	seen := map[int]bool{n: true}
	cur := n
	for {
		c, ok := byNum[cur]
		if !ok {
			return 0, false
		}
		if c.DependsOn == nil || *c.DependsOn == cur {
			if c.Canceled {
				return 0, false
			}
			return cur, true
		}
		next := *c.DependsOn
		if seen[next] {
			return 0, false
		}
		seen[next] = true
		cur = next
	}
}
