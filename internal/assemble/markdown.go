package assemble

import (
	"fmt"
	"strconv"
	"strings"

	oa "github.com/joelkehle/office-action-response/internal/officeaction"
)

// RenderMarkdown renders doc as GitHub-flavored Markdown.
func RenderMarkdown(doc *Document) string {
	var b strings.Builder
	t := doc.TitleBlock
	fmt.Fprintf(&b, "# Response to Office Action\n\n")
	fmt.Fprintf(&b, "- Application No.: %s\n", safe(t.ApplicationNumber))
	fmt.Fprintf(&b, "- Publication No.: %s\n", safe(t.PublicationNumber))
	if t.Title != "" {
		fmt.Fprintf(&b, "- Title: %s\n", t.Title)
	}
	if t.FilingDate != "" {
		fmt.Fprintf(&b, "- Filing Date: %s\n", t.FilingDate)
	}
	fmt.Fprintf(&b, "- Date: %s\n\n", t.Date)

	fmt.Fprintf(&b, "## Summary of Rejections\n\n")
	for i, s := range doc.Summary {
		fmt.Fprintf(&b, "%d. %s: claims %s\n", i+1, s.Type, joinClaims(s.Claims))
	}
	b.WriteString("\n")

	for i, sec := range doc.Sections {
		writeSection(&b, i+1, sec)
	}

	fmt.Fprintf(&b, "## Conclusion\n\n%s\n", doc.Conclusion)
	return b.String()
}

func writeSection(b *strings.Builder, n int, sec Section) {
	fmt.Fprintf(b, "## Rejection %d: %s\n\n", n, sec.Type)
	fmt.Fprintf(b, "**Rejected claims:** %s\n\n", joinClaims(sec.Claims))
	if len(sec.Citations) > 0 {
		b.WriteString("**Cited references:**\n\n")
		writeReferences(b, sec.Citations)
	}
	if sec.Amendment == nil {
		fmt.Fprintf(b, "### Response\n\n%s\n\n", strings.TrimSpace(sec.Response))
		return
	}

	am := sec.Amendment
	fmt.Fprintf(b, "### %s\n\n", am.Heading)
	if len(am.PriorArt) > 0 {
		b.WriteString("**Prior art considered:**\n\n")
		writeReferences(b, am.PriorArt)
	}
	if len(am.ComparisonTable) > 0 {
		b.WriteString("#### Comparison Table\n\n")
		b.WriteString("| # | Subject Application | Prior Art | Differentiating Feature |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, row := range am.ComparisonTable {
			fmt.Fprintf(b, "| %d | %s | %s | %s |\n", row.FeatureNumber, cell(row.SubjectApplication), cell(row.PriorArt), cell(row.DifferentiatingFeature))
		}
		b.WriteString("\n")
	}
	if am.AmendedClaim != nil {
		b.WriteString("#### Amended Claim\n\n")
		writeClaim(b, *am.AmendedClaim)
	}
	if s := strings.TrimSpace(am.Strategy); s != "" {
		fmt.Fprintf(b, "#### Amendment Strategy\n\n%s\n\n", s)
	}
}

func writeReferences(b *strings.Builder, refs []oa.PriorArtReference) {
	for _, r := range refs {
		if r.URL == "" || r.URL == oa.PlaceholderURL {
			fmt.Fprintf(b, "- %s\n", safe(r.Citation))
			continue
		}
		fmt.Fprintf(b, "- [%s](%s)\n", safe(r.Citation), r.URL)
	}
	b.WriteString("\n")
}

func writeClaim(b *strings.Builder, c oa.AmendedClaim) {
	if p := strings.TrimSpace(c.Preamble); p != "" {
		fmt.Fprintf(b, "%s\n\n", p)
	}
	for _, el := range c.Elements {
		fmt.Fprintf(b, "- %s\n", elementLine(el))
	}
	for _, el := range c.AdditionalElements {
		fmt.Fprintf(b, "- <u>%s</u>\n", elementLine(el))
	}
	b.WriteString("\n")
}

func elementLine(el oa.ClaimElement) string {
	text := strings.TrimSpace(el.Text)
	if id := strings.TrimSpace(el.ElementID); id != "" {
		return "(" + id + ") " + text
	}
	return text
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func joinClaims(ns []int) string {
	if len(ns) == 0 {
		return "none"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func safe(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
