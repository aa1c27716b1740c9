package officeaction

import (
	"regexp"
	"strings"
)

const (
	PatentLookupBaseURL = "https://patents.google.com/patent/"
	PlaceholderURL      = "https://patents.google.com/"
)

var citationRe = regexp.MustCompile(`^(US|EP|JP|CN|WO)(\d+)([A-Z]\d?)?$`)

// NewPriorArtReference normalizes a citation and derives its lookup URL. An
// unmatched or empty citation keeps its text and gets the placeholder URL.
func NewPriorArtReference(citation string) PriorArtReference {
	trimmed := strings.Join(strings.Fields(citation), " ")
	compact := strings.ToUpper(strings.NewReplacer(" ", "", "\t", "", "/", "", "\\", "", ",", "").Replace(trimmed))
	m := citationRe.FindStringSubmatch(compact)
	if m == nil {
		return PriorArtReference{Citation: trimmed, ReferenceID: compact, URL: PlaceholderURL}
	}
	country, number, kind := m[1], strings.TrimLeft(m[2], "0"), m[3]
	if number == "" {
		return PriorArtReference{Citation: trimmed, ReferenceID: compact, URL: PlaceholderURL}
	}
	parts := []string{country, number}
	if kind != "" {
		parts = append(parts, kind)
	}
	id := country + number + kind
	return PriorArtReference{
		Citation:    strings.Join(parts, " "),
		ReferenceID: id,
		URL:         PatentLookupBaseURL + id + "/en",
	}
}

// CitedReferences returns the distinct references across rejections in
// first-seen order.
func CitedReferences(rejections []Rejection) []PriorArtReference {
	seen := map[string]bool{}
	var out []PriorArtReference
	for _, r := range rejections {
		for _, p := range r.PriorArt {
			if p.ReferenceID == "" || seen[p.ReferenceID] {
				continue
			}
			seen[p.ReferenceID] = true
			out = append(out, p)
		}
	}
	return out
}
