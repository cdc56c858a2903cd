package credit

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Ladder is the ascending set of installment counts a plan can be offered with
var Ladder = []int{3, 6, 9, 12, 15, 18, 24, 30, 36}

// OnLadder reports whether n is one of the offered installment counts
func OnLadder(n int) bool {
	return slices.Contains(Ladder, n)
}

var (
	smallPrincipal  = decimal.NewFromInt(200)
	mediumPrincipal = decimal.NewFromInt(300)
)

// DisabledFor returns the installment counts not offered for principal
func DisabledFor(principal decimal.Decimal) map[int]bool {
	switch {
	case principal.LessThanOrEqual(smallPrincipal):
		return map[int]bool{15: true, 18: true, 24: true, 30: true, 36: true}
	case principal.LessThanOrEqual(mediumPrincipal):
		return map[int]bool{30: true, 36: true}
	default:
		return map[int]bool{}
	}
}

// Allowed returns the ladder members offered for principal, ascending
func Allowed(principal decimal.Decimal) []int {
	disabled := DisabledFor(principal)

	allowed := make([]int, 0, len(Ladder))
	for _, n := range Ladder {
		if !disabled[n] {
			allowed = append(allowed, n)
		}
	}

	return allowed
}

// ResolveAllowed keeps requested unless it is disabled for principal, in which
// case the smallest allowed ladder member is returned (not the nearest one).
// Counts outside the ladder that are not explicitly disabled pass through.
func ResolveAllowed(principal decimal.Decimal, requested int) int {
	if !DisabledFor(principal)[requested] {
		return requested
	}

	allowed := Allowed(principal)
	if len(allowed) == 0 {
		return requested
	}

	return allowed[0]
}
