package claims

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joelkehle/office-action-response/internal/officeaction"
)

var (
	claimStartRe   = regexp.MustCompile(`(?m)^\s*(\d+)\s*\.`)
	statusPrefixRe = regexp.MustCompile(`^\s*\([^)]*\)\s*`)
)

// Body returns the text of claim n. The tree's recorded text is used first;
// otherwise the raw listing is split on leading "<number>." markers and any
// status parenthetical is stripped.
func Body(n int, tree []officeaction.ClaimGroup, listing string) (string, bool) {
	for _, g := range tree {
		if g.IndependentClaim == n && strings.TrimSpace(g.IndependentClaimText) != "" {
			return strings.TrimSpace(g.IndependentClaimText), true
		}
	}
	body, ok := Split(listing)[n]
	if !ok || body == "" {
		return "", false
	}
	return body, true
}

// Split parses a claim listing into claim bodies keyed by number. When a
// number repeats, the first occurrence wins.
func Split(listing string) map[int]string {
	out := map[int]string{}
	locs := claimStartRe.FindAllStringSubmatchIndex(listing, -1)
	for i, loc := range locs {
		n, err := strconv.Atoi(listing[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		end := len(listing)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, dup := out[n]; dup {
			continue
		}
		body := statusPrefixRe.ReplaceAllString(listing[loc[1]:end], "")
		out[n] = strings.Join(strings.Fields(body), " ")
	}
	return out
}
