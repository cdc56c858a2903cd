// Package credit derives installment plans: the monthly payment quoted to the
// buyer, the installment counts a principal is eligible for, and the rates
// disclosed to the lender.
package credit

import (
	"math"

	"github.com/shopspring/decimal"
)

// ShortPlanInstallments is proposed when the principal is below the
// merchant's minimum for its default plan.
const ShortPlanInstallments = 9

const (
	maxSolverIterations = 128
	solverPrecision     = 1e-8
	solverInitialGuess  = 0.1
)

var hundred = decimal.NewFromInt(100)

func ResolveInstallmentCount(principal, minPriceForDefaultPlan decimal.Decimal, defaultCount int) int {
	if principal.LessThan(minPriceForDefaultPlan) {
		return ShortPlanInstallments
	}
	return defaultCount
}

// MonthlyPayment returns (principal / n) * (1 + n*markup/100) rounded half
// away from zero to the minor currency unit.
func MonthlyPayment(principal decimal.Decimal, installments int, markupPercent decimal.Decimal) decimal.Decimal {
	if installments <= 0 {
		return decimal.Zero
	}

	n := decimal.NewFromInt(int64(installments))
	factor := decimal.NewFromInt(1).Add(n.Mul(markupPercent).Div(hundred))

	// Multiply before dividing so the only inexact step is the final division
	return principal.Mul(factor).Div(n).Round(2)
}

type RateSolution struct {
	// Rate per installment period, e.g. 0.0366 for 3.66%
	Rate       float64
	Iterations int
	// Converged is false when the iteration ceiling was hit; Rate is then
	// the last estimate.
	Converged bool
}

// SolvePeriodicRate finds the rate r for which a loan of principal is repaid
// by installments end-of-period payments of payment, i.e. the root of
// pv*(1+r)^n + payment*(1/r)*((1+r)^n - 1) with pv = -principal, using the
// secant method seeded from the zero-rate line and a guess of 0.1.
func SolvePeriodicRate(installments int, payment, principal float64) RateSolution {
	nper := float64(installments)
	pv := -principal

	rate := solverInitialGuess
	y0 := pv + payment*nper
	y1 := annuityResidual(nper, payment, pv, rate)
	x0, x1 := 0.0, rate

	i := 0
	for math.Abs(y0-y1) > solverPrecision && i < maxSolverIterations {
		rate = (y1*x0 - y0*x1) / (y1 - y0)
		x0, x1 = x1, rate
		y0, y1 = y1, annuityResidual(nper, payment, pv, rate)
		i++
	}

	return RateSolution{
		Rate:       rate,
		Iterations: i,
		Converged:  math.Abs(y0-y1) <= solverPrecision,
	}
}

func annuityResidual(nper, pmt, pv, rate float64) float64 {
	if math.Abs(rate) < solverPrecision {
		return pv*(1+nper*rate) + pmt*nper
	}

	f := math.Exp(nper * math.Log(1+rate))
	return pv*f + pmt*(1/rate)*(f-1)
}

// NominalAnnualRate converts a monthly periodic rate to a percentage
func NominalAnnualRate(periodicRate float64) float64 {
	return periodicRate * 12 * 100
}

// AnnualPercentageRate compounds a monthly periodic rate over a year, in percent
func AnnualPercentageRate(periodicRate float64) float64 {
	return (math.Pow(1+periodicRate, 12) - 1) * 100
}
