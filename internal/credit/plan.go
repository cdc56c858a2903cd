package credit

import (
	"math"

	"github.com/shopspring/decimal"
)

// Plan is derived per request and never stored
type Plan struct {
	Price                decimal.Decimal `json:"price"`
	DownPayment          decimal.Decimal `json:"down_payment"`
	Principal            decimal.Decimal `json:"principal"`
	InstallmentCount     int             `json:"installment_count"`
	MonthlyPayment       decimal.Decimal `json:"monthly_payment"`
	TotalPayments        decimal.Decimal `json:"total_payments"`
	PeriodicRate         float64         `json:"periodic_rate"`
	NominalAnnualRate    float64         `json:"nominal_annual_rate"`
	AnnualPercentageRate float64         `json:"annual_percentage_rate"`
	RateConverged        bool            `json:"rate_converged"`
	SolverIterations     int             `json:"-"`
}

type Item struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

// Terms are the merchant-level settings a plan is quoted under
type Terms struct {
	MinPriceForDefaultPlan decimal.Decimal
	DefaultInstallments    int
	// Smallest principal that may be financed; the down payment is capped at
	// price - MinPrice.
	MinPrice decimal.Decimal
}

func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}

// ClampDownPayment bounds down to [0, max(0, price-minPrice)]
func ClampDownPayment(price, down, minPrice decimal.Decimal) decimal.Decimal {
	ceiling := price.Sub(minPrice)
	if ceiling.IsNegative() {
		ceiling = decimal.Zero
	}

	if down.IsNegative() {
		return decimal.Zero
	}
	if down.GreaterThan(ceiling) {
		return ceiling
	}

	return down
}

// Quote computes the plan for a cart. A requested count <= 0 means the buyer
// has not picked one yet and the merchant default applies.
func (t Terms) Quote(price, down decimal.Decimal, requested int, markupPercent decimal.Decimal) Plan {
	down = ClampDownPayment(price, down, t.MinPrice)
	principal := price.Sub(down)

	if requested <= 0 {
		requested = ResolveInstallmentCount(principal, t.MinPriceForDefaultPlan, t.DefaultInstallments)
	}

	plan := BuildPlan(principal, requested, markupPercent)
	plan.Price = price
	plan.DownPayment = down

	return plan
}

// BuildPlan applies the eligibility policy to requested and derives the
// payment and disclosed rates for principal.
func BuildPlan(principal decimal.Decimal, requested int, markupPercent decimal.Decimal) Plan {
	if principal.IsNegative() {
		principal = decimal.Zero
	}

	count := ResolveAllowed(principal, requested)
	monthly := MonthlyPayment(principal, count, markupPercent)

	plan := Plan{
		Price:            principal,
		DownPayment:      decimal.Zero,
		Principal:        principal,
		InstallmentCount: count,
		MonthlyPayment:   monthly,
		TotalPayments:    monthly.Mul(decimal.NewFromInt(int64(count))),
		RateConverged:    true,
	}

	// Nothing is financed, there is no rate to disclose
	if !principal.IsPositive() || !monthly.IsPositive() {
		return plan
	}

	solution := SolvePeriodicRate(count, monthly.InexactFloat64(), principal.InexactFloat64())
	plan.RateConverged = solution.Converged
	plan.SolverIterations = solution.Iterations
	if math.IsNaN(solution.Rate) || math.IsInf(solution.Rate, 0) {
		plan.RateConverged = false
		return plan
	}

	plan.PeriodicRate = solution.Rate
	plan.NominalAnnualRate = NominalAnnualRate(solution.Rate)
	plan.AnnualPercentageRate = AnnualPercentageRate(solution.Rate)

	return plan
}
