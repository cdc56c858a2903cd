package admission

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexStringDecoding(t *testing.T) {
	var v struct {
		Text   FlexString `json:"text"`
		Number FlexString `json:"number"`
		True   FlexString `json:"true"`
		False  FlexString `json:"false"`
		Null   FlexString `json:"null"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"text":"  a b ","number":12.50,"true":true,"false":false,"null":null}`), &v))

	assert.Equal(t, FlexString("a b"), v.Text)
	assert.Equal(t, FlexString("12.50"), v.Number)
	assert.Equal(t, FlexString("1"), v.True)
	assert.Equal(t, FlexString(""), v.False)
	assert.Equal(t, FlexString(""), v.Null)

	assert.Error(t, json.Unmarshal([]byte(`{"text":{"nested":1}}`), &v))
}

func TestFlexBoolPresence(t *testing.T) {
	tests := []struct {
		payload string
		present bool
		value   bool
	}{
		{`{}`, false, false},
		{`{"jet_card": null}`, true, false},
		{`{"jet_card": false}`, true, false},
		{`{"jet_card": "0"}`, true, false},
		{`{"jet_card": true}`, true, true},
		{`{"jet_card": "1"}`, true, true},
		{`{"jet_card": 1}`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			var v struct {
				Card FlexBool `json:"jet_card"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &v))
			assert.Equal(t, tt.present, v.Card.Present)
			assert.Equal(t, tt.value, v.Card.Value)
		})
	}
}

func TestMerchantKeyPrefersPermanentDomain(t *testing.T) {
	sub := &Submission{ShopDomain: "shop.example.com", ShopPermanentDomain: "shop.myshopify.com"}
	assert.Equal(t, "shop.myshopify.com", sub.MerchantKey())

	sub.ShopPermanentDomain = ""
	assert.Equal(t, "shop.example.com", sub.MerchantKey())
}

func TestOrderParsesAmounts(t *testing.T) {
	sub := &Submission{
		Items: []Item{
			{UnitPrice: "19,99", Quantity: "2"},
			{UnitPrice: "100", Quantity: "1"},
		},
		DownPayment:    "20.00",
		Installments:   "6",
		MonthlyPayment: "23.33",
		MarkupPercent:  "1.5",
	}

	order, invalid := sub.Order()
	require.Empty(t, invalid)

	assert.True(t, decimal.RequireFromString("19.99").Equal(order.Items[0].UnitPrice))
	assert.Equal(t, int64(2), order.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("20").Equal(order.DownPayment))
	assert.Equal(t, 6, order.Installments)
	assert.True(t, decimal.RequireFromString("23.33").Equal(order.QuotedPayment))
	require.NotNil(t, order.Markup)
	assert.True(t, decimal.RequireFromString("1.5").Equal(*order.Markup))
}

func TestOrderWithoutMarkup(t *testing.T) {
	sub := &Submission{
		Items:          []Item{{UnitPrice: "10", Quantity: "1"}},
		DownPayment:    "0",
		Installments:   "3",
		MonthlyPayment: "3.33",
	}

	order, invalid := sub.Order()
	assert.Empty(t, invalid)
	assert.Nil(t, order.Markup)
}

func TestOrderRejectsInstallmentsOffTheLadder(t *testing.T) {
	for _, n := range []string{"1", "0", "-3", "10", "1000"} {
		sub := &Submission{
			Items:          []Item{{UnitPrice: "1000", Quantity: "1"}},
			DownPayment:    "0",
			Installments:   FlexString(n),
			MonthlyPayment: "21",
		}

		_, invalid := sub.Order()
		assert.Equal(t, []string{"jet_vnoski"}, invalid, n)
	}
}

func TestIsBot(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		bot  bool
	}{
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"chrome", browserUA, false},
		{"firefox", "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0", false},
		{"curl", "curl/8.4.0", true},
		{"python", "python-requests/2.31", true},
		{"go client", "Go-http-client/1.1", true},
		{"sqlmap", "sqlmap/1.7", true},
		{"unlisted agent", "MyIntegration/1.0", true},
		{"browser token wins", "Mozilla/5.0 (compatible; Googlebot/2.1)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.bot, IsBot(tt.ua))
		})
	}
}
