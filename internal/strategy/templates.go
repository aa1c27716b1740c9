package strategy

import (
	"fmt"
	"strings"

	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/validator"
)

const maxInputChars = 60000

const systemPrompt = "You are a US patent prosecution assistant drafting claim amendments in response to an office action. Return strict JSON only."

const outputSchema = `Required JSON schema:
{
  "comparisonTable": [
    {"featureNumber": integer, "subjectApplication": "string", "priorArt": "string", "differentiatingFeature": "string"}
  ],
  "amendedClaim": {
    "preamble": "string",
    "elements": [{"elementId": "string", "text": "string"}],
    "additionalElements": [{"elementId": "string", "text": "string"}]
  },
  "amendmentStrategy": "string"
}`

type template struct {
	heading     string
	instruction string
}

var templates = map[oa.StrategyKind]template{
	oa.StrategyTechnicalComparison: {
		heading:     "Technical Comparison",
		instruction: "Compare each element of the rejected claim against the prior art, feature by feature, and identify where the prior art fails to disclose or suggest the claimed subject matter. Amend the claim only as far as the comparison requires.",
	},
	oa.StrategyNovelFeatures: {
		heading:     "Novel Features",
		instruction: "Search the description for a single feature that none of the cited references reaches. Amend the claim to recite that feature and explain why the references cannot be combined to reach it.",
	},
	oa.StrategyDependentClaims: {
		heading:     "Dependent Claims",
		instruction: "Use the existing dependent claims as the source of the amendment. Fold the narrowest dependent limitation that distinguishes the prior art into the independent claim.",
	},
	oa.StrategyCompositeAmendment: {
		heading:     "Composite Amendment",
		instruction: "Combine several features from the description whose interaction produces a result the prior art does not suggest. Amend the claim to recite the combination and explain the synergy.",
	},
	oa.StrategyOneFeatures: {
		heading:     "One Feature",
		instruction: "Isolate the one minimal differentiator that removes the rejection with the least narrowing. Amend the claim with that feature only.",
	},
}

// Heading is the section title used for a finalized amendment of kind k.
func Heading(k oa.StrategyKind) string {
	if t, ok := templates[k]; ok {
		return t.heading
	}
	return string(k)
}

func buildPrompt(k oa.StrategyKind, a *validator.Analysis) string {
	t := templates[k]
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n\n", t.instruction, outputSchema)
	fmt.Fprintf(&b, "Rejection: %s against claims %s\n\n", a.Rejection.Type, joinInts(a.Docket.ClaimsRejected))
	b.WriteString("Rejected independent claims:\n")
	for _, c := range a.Claims {
		fmt.Fprintf(&b, "%d. %s\n", c.Number, truncate(c.Text))
	}
	if k == oa.StrategyDependentClaims && len(a.Dependents) > 0 {
		b.WriteString("\nDependent claims:\n")
		for _, c := range a.Dependents {
			fmt.Fprintf(&b, "%d. %s\n", c.Number, truncate(c.Text))
		}
	}
	fmt.Fprintf(&b, "\nExaminer reasoning:\n%s\n", truncate(a.Rejection.ExaminerReasoning))
	for i, p := range a.PriorArt {
		fmt.Fprintf(&b, "\nPrior art %d (%s):\n%s\n", i+1, p.Reference.Citation, truncate(p.Description))
	}
	fmt.Fprintf(&b, "\nApplicant description:\n%s\n", truncate(a.Documents.DescriptionText))
	return b.String()
}

const freeformSystemPrompt = "You are a US patent prosecution assistant. Write the applicant's remarks responding to one rejection. Plain text only, no JSON, no headings."

func buildFreeformPrompt(r oa.Rejection, docs *oa.ApplicationDocuments) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a response to the following %s rejection of claims %s.\n\n", r.Type, joinInts(r.ClaimsRejected))
	fmt.Fprintf(&b, "Examiner reasoning:\n%s\n\n", truncate(r.ExaminerReasoning))
	fmt.Fprintf(&b, "Claims:\n%s\n\n", truncate(docs.ClaimText))
	fmt.Fprintf(&b, "Applicant description:\n%s\n", truncate(docs.DescriptionText))
	return b.String()
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxInputChars {
		return s[:maxInputChars]
	}
	return s
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
