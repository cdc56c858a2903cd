package credit

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampDownPayment(t *testing.T) {
	assert.True(t, d("100").Equal(ClampDownPayment(d("500"), d("100"), d("150"))))
	assert.True(t, d("350").Equal(ClampDownPayment(d("500"), d("400"), d("150"))))
	assert.True(t, decimal.Zero.Equal(ClampDownPayment(d("100"), d("50"), d("150"))))
	assert.True(t, decimal.Zero.Equal(ClampDownPayment(d("500"), d("-5"), d("0"))))
}

func TestQuote(t *testing.T) {
	terms := Terms{
		MinPriceForDefaultPlan: d("125"),
		DefaultInstallments:    12,
		MinPrice:               d("0"),
	}

	t.Run("default plan", func(t *testing.T) {
		plan := terms.Quote(d("1100"), d("100"), 0, d("2"))

		assert.True(t, d("1000").Equal(plan.Principal))
		assert.Equal(t, 12, plan.InstallmentCount)
		assert.True(t, d("103.33").Equal(plan.MonthlyPayment))
		assert.True(t, d("1239.96").Equal(plan.TotalPayments))
		assert.True(t, plan.RateConverged)
		assert.InDelta(t, 50.6644, plan.AnnualPercentageRate, 1e-3)
	})

	t.Run("short plan below minimum", func(t *testing.T) {
		plan := terms.Quote(d("120"), d("0"), 0, d("1"))
		assert.Equal(t, 9, plan.InstallmentCount)
	})

	t.Run("disabled selection falls back to smallest", func(t *testing.T) {
		plan := terms.Quote(d("150"), d("0"), 30, d("1"))
		assert.Equal(t, 3, plan.InstallmentCount)
	})

	t.Run("nothing financed", func(t *testing.T) {
		plan := terms.Quote(d("0"), d("0"), 12, d("2"))
		assert.True(t, plan.Principal.IsZero())
		assert.Zero(t, plan.AnnualPercentageRate)
	})

	t.Run("identical inputs give identical plans", func(t *testing.T) {
		a := terms.Quote(d("640.50"), d("40.50"), 18, d("1.2"))
		b := terms.Quote(d("640.50"), d("40.50"), 18, d("1.2"))

		ja, err := json.Marshal(a)
		require.NoError(t, err)
		jb, err := json.Marshal(b)
		require.NoError(t, err)
		assert.JSONEq(t, string(ja), string(jb))
	})
}

func TestTotal(t *testing.T) {
	total := Total([]Item{
		{UnitPrice: d("19.99"), Quantity: 3},
		{UnitPrice: d("100"), Quantity: 1},
	})
	assert.True(t, d("159.97").Equal(total))
}
