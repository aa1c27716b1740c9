package officeaction

import "sort"

// IndependentClaims returns the independent claim numbers in tree.
func IndependentClaims(tree []ClaimGroup) map[int]bool {
	out := make(map[int]bool, len(tree))
	for _, g := range tree {
		out[g.IndependentClaim] = true
	}
	return out
}

// IsAnalyzable reports whether r is an anticipation or obviousness rejection
// whose claims overlap the independent claims of tree.
func IsAnalyzable(r Rejection, tree []ClaimGroup) bool {
	if r.Basis() == BasisNone {
		return false
	}
	independent := IndependentClaims(tree)
	for _, c := range r.ClaimsRejected {
		if independent[c] {
			return true
		}
	}
	return false
}

// RecomputeAnalyzable refreshes every rejection's flag against tree and
// reports whether any flag changed.
func (a *Application) RecomputeAnalyzable(tree []ClaimGroup) bool {
	changed := false
	for i := range a.Rejections {
		next := IsAnalyzable(a.Rejections[i], tree)
		if a.Rejections[i].Analyzable != next {
			a.Rejections[i].Analyzable = next
			changed = true
		}
	}
	return changed
}

// RejectedIndependentClaims returns the rejected claims that are independent
// in tree, ascending.
func RejectedIndependentClaims(claims []int, tree []ClaimGroup) []int {
	independent := IndependentClaims(tree)
	var out []int
	for _, c := range claims {
		if independent[c] {
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}

// DependentsOf returns the dependent claims grouped under independent claim n.
func DependentsOf(n int, tree []ClaimGroup) []int {
	for _, g := range tree {
		if g.IndependentClaim == n {
			return append([]int(nil), g.DependentClaims...)
		}
	}
	return nil
}

func normalizeClaimNumbers(in []int) []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(in))
	for _, c := range in {
		if c <= 0 || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}
