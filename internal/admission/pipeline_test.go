package admission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/geo"
	"github.com/aman-churiwal/credit-gateway/internal/keylock"
	"github.com/aman-churiwal/credit-gateway/internal/kv"
	"github.com/aman-churiwal/credit-gateway/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

const validPayload = `{
	"jet_id": "12345",
	"shop_domain": "shop.example.com",
	"shop_permanent_domain": "shop-example.myshopify.com",
	"jet-step2-firstname": " Ivan ",
	"jet-step2-lastname": "Petrov",
	"jet-step2-egn": "8001010000",
	"jet-step2-phone": "0888123456",
	"jet-step2-email": "ivan@example.com",
	"items": [
		{"jet_product_id": 77, "product_c_txt": "Laptop", "product_p_txt": "999.90", "jet_quantity": "1", "att_name": "16GB"}
	],
	"jet_card": false,
	"jet_parva": "0",
	"jet_vnoski": "12",
	"jet_vnoska": "83.33",
	"jet_email_pbpf": "lender@example.com",
	"jet_email_shop": "orders@example.com"
}`

type fixedCountry string

func (f fixedCountry) Country(context.Context, string) string { return string(f) }

type countingCountry struct {
	country string
	calls   int
}

func (c *countingCountry) Country(context.Context, string) string {
	c.calls++
	return c.country
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk full")
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("disk full")
}
func (brokenStore) Lock(context.Context, string) (func(), error) {
	return nil, keylock.ErrUnavailable
}

func testConfig() Config {
	return Config{
		AllowedCountry: "BG",
		SecurePort:     443,
		IPLimit:        60,
		IPWindow:       time.Minute,
		MerchantLimit:  120,
		MerchantWindow: time.Minute,
	}
}

func newPipeline(t *testing.T, cfg Config, resolver geo.Resolver) *Pipeline {
	windows := ratelimit.NewWindowStore(kv.NewMemory(time.Second), zaptest.NewLogger(t))
	return NewPipeline(cfg, resolver, windows, zaptest.NewLogger(t))
}

func decode(t *testing.T, payload string) *Submission {
	var sub Submission
	require.NoError(t, json.Unmarshal([]byte(payload), &sub))
	return &sub
}

func browserMeta(ip string) Meta {
	h := http.Header{}
	h.Set("Origin", "https://shop.example.com")
	h.Set("User-Agent", browserUA)
	return Meta{TLS: true, ClientIP: ip, Header: h}
}

func reasonOf(t *testing.T, err error) string {
	var trustErr *TrustError
	require.True(t, errors.As(err, &trustErr), "expected TrustError, got %v", err)
	return trustErr.Reason
}

func TestEvaluateAdmitsBrowserSubmission(t *testing.T) {
	p := newPipeline(t, testConfig(), fixedCountry("BG"))
	assert.NoError(t, p.Evaluate(context.Background(), browserMeta("1.2.3.4"), decode(t, validPayload)))
}

func TestEvaluateReportsFirstFailingCheck(t *testing.T) {
	p := newPipeline(t, testConfig(), fixedCountry("US"))
	ctx := context.Background()

	// Everything is wrong: plain HTTP, no origin, curl, foreign, empty payload
	meta := Meta{ClientIP: "9.9.9.9", Header: http.Header{"User-Agent": {"curl/8.4.0"}}}
	empty := &Submission{}

	assert.Equal(t, ReasonTransportInsecure, reasonOf(t, p.Evaluate(ctx, meta, empty)))

	meta.TLS = true
	assert.Equal(t, ReasonProvenanceMissing, reasonOf(t, p.Evaluate(ctx, meta, empty)))

	meta.Header.Set("Referer", "https://shop.example.com/cart")
	assert.Equal(t, ReasonBotAgent, reasonOf(t, p.Evaluate(ctx, meta, empty)))

	meta.Header.Set("User-Agent", browserUA)
	assert.Equal(t, ReasonGeoRestricted, reasonOf(t, p.Evaluate(ctx, meta, empty)))
}

func TestEvaluateTransportSignals(t *testing.T) {
	p := newPipeline(t, testConfig(), fixedCountry("BG"))
	ctx := context.Background()
	sub := decode(t, validPayload)

	forwarded := browserMeta("1.2.3.4")
	forwarded.TLS = false
	forwarded.Header.Set("X-Forwarded-Proto", "HTTPS")
	assert.NoError(t, p.Evaluate(ctx, forwarded, sub))

	securePort := browserMeta("1.2.3.5")
	securePort.TLS = false
	securePort.LocalPort = 443
	assert.NoError(t, p.Evaluate(ctx, securePort, sub))

	plain := browserMeta("1.2.3.6")
	plain.TLS = false
	plain.LocalPort = 8080
	assert.Equal(t, ReasonTransportInsecure, reasonOf(t, p.Evaluate(ctx, plain, sub)))
}

func TestEvaluateTrustedCountryHeader(t *testing.T) {
	cfg := testConfig()
	cfg.TrustedCountryHeader = "CF-IPCountry"
	resolver := &countingCountry{country: "BG"}
	p := newPipeline(t, cfg, resolver)
	ctx := context.Background()
	sub := decode(t, validPayload)

	meta := browserMeta("1.2.3.4")
	meta.FromTrustedProxy = true
	meta.Header.Set("CF-IPCountry", "bg")
	assert.NoError(t, p.Evaluate(ctx, meta, sub))
	assert.Zero(t, resolver.calls)

	meta.Header.Set("CF-IPCountry", "DE")
	assert.Equal(t, ReasonGeoRestricted, reasonOf(t, p.Evaluate(ctx, meta, sub)))

	// "no data" falls through to the resolver
	meta.Header.Set("CF-IPCountry", "XX")
	assert.NoError(t, p.Evaluate(ctx, meta, sub))
	assert.Equal(t, 1, resolver.calls)
}

func TestEvaluateIgnoresCountryHeaderFromDirectClient(t *testing.T) {
	cfg := testConfig()
	cfg.TrustedCountryHeader = "CF-IPCountry"
	resolver := &countingCountry{country: "US"}
	p := newPipeline(t, cfg, resolver)

	meta := browserMeta("8.8.8.8")
	meta.Header.Set("CF-IPCountry", "BG")

	err := p.Evaluate(context.Background(), meta, decode(t, validPayload))
	assert.Equal(t, ReasonGeoRestricted, reasonOf(t, err))
	assert.Equal(t, 1, resolver.calls)
}

func TestMetaFromRequestTrustsOnlyConfiguredProxies(t *testing.T) {
	proxies, err := ParseProxySet([]string{"10.0.0.0/8", "192.168.1.7"})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.1.2.3:40000"
	assert.True(t, MetaFromRequest(r, "8.8.8.8", proxies).FromTrustedProxy)

	r.RemoteAddr = "192.168.1.7:40000"
	assert.True(t, MetaFromRequest(r, "8.8.8.8", proxies).FromTrustedProxy)

	r.RemoteAddr = "8.8.8.8:40000"
	assert.False(t, MetaFromRequest(r, "8.8.8.8", proxies).FromTrustedProxy)

	assert.False(t, MetaFromRequest(r, "8.8.8.8", nil).FromTrustedProxy)

	_, err = ParseProxySet([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestEvaluateUnknownCountryIsRejected(t *testing.T) {
	p := newPipeline(t, testConfig(), fixedCountry("unknown"))
	err := p.Evaluate(context.Background(), browserMeta("1.2.3.4"), decode(t, validPayload))
	assert.Equal(t, ReasonGeoRestricted, reasonOf(t, err))
}

func TestEvaluateIPRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.IPLimit = 3
	p := newPipeline(t, cfg, fixedCountry("BG"))
	ctx := context.Background()
	sub := decode(t, validPayload)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Evaluate(ctx, browserMeta("1.2.3.4"), sub))
	}

	err := p.Evaluate(ctx, browserMeta("1.2.3.4"), sub)
	var trustErr *TrustError
	require.ErrorAs(t, err, &trustErr)
	assert.Equal(t, ReasonRateLimitedIP, trustErr.Reason)
	assert.Equal(t, http.StatusTooManyRequests, trustErr.Status)
	assert.Equal(t, time.Minute, trustErr.RetryAfter)

	// Other addresses have their own window
	assert.NoError(t, p.Evaluate(ctx, browserMeta("5.6.7.8"), sub))
}

func TestEvaluateChargesRejectedAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.IPLimit = 2
	p := newPipeline(t, cfg, fixedCountry("BG"))
	ctx := context.Background()
	incomplete := decode(t, `{"jet_id": "12345"}`)

	var validationErr *ValidationError
	for i := 0; i < 2; i++ {
		require.ErrorAs(t, p.Evaluate(ctx, browserMeta("1.2.3.4"), incomplete), &validationErr)
	}

	// The complete submission is now over the limit
	err := p.Evaluate(ctx, browserMeta("1.2.3.4"), decode(t, validPayload))
	assert.Equal(t, ReasonRateLimitedIP, reasonOf(t, err))
}

func TestEvaluateMerchantRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MerchantLimit = 1
	p := newPipeline(t, cfg, fixedCountry("BG"))
	ctx := context.Background()

	require.NoError(t, p.Evaluate(ctx, browserMeta("1.1.1.1"), decode(t, validPayload)))
	err := p.Evaluate(ctx, browserMeta("2.2.2.2"), decode(t, validPayload))
	assert.Equal(t, ReasonRateLimitedMerchant, reasonOf(t, err))
}

func TestEvaluateSkipsMerchantLimitWithoutJetID(t *testing.T) {
	cfg := testConfig()
	cfg.MerchantLimit = 1
	p := newPipeline(t, cfg, fixedCountry("BG"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := p.Evaluate(ctx, browserMeta("1.1.1.1"), &Submission{})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Missing, "jet_id")
	}
}

func TestEvaluateFailsOpenWhenWindowsUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.IPLimit = 1
	cfg.MerchantLimit = 1
	windows := ratelimit.NewWindowStore(brokenStore{}, zaptest.NewLogger(t))
	p := NewPipeline(cfg, fixedCountry("BG"), windows, zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		assert.NoError(t, p.Evaluate(context.Background(), browserMeta("1.2.3.4"), decode(t, validPayload)))
	}
}

func TestEvaluateAccumulatesMissingFields(t *testing.T) {
	p := newPipeline(t, testConfig(), fixedCountry("BG"))

	sub := decode(t, `{
		"jet_id": "12345",
		"shop_domain": "shop.example.com",
		"shop_permanent_domain": "",
		"jet-step2-firstname": "Ivan",
		"jet-step2-lastname": "Petrov",
		"jet-step2-egn": "8001010000",
		"jet-step2-phone": "   ",
		"jet-step2-email": "ivan@example.com",
		"items": [
			{"jet_product_id": "1", "product_c_txt": "Laptop", "product_p_txt": "10", "jet_quantity": "1"},
			{"jet_product_id": "2", "product_c_txt": "", "product_p_txt": "10"}
		],
		"jet_parva": "0",
		"jet_vnoski": "12",
		"jet_vnoska": "1",
		"jet_email_pbpf": "lender@example.com",
		"jet_email_shop": "orders@example.com"
	}`)

	err := p.Evaluate(context.Background(), browserMeta("1.2.3.4"), sub)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{
		"shop_permanent_domain",
		"jet-step2-phone",
		"items[1].product_c_txt",
		"items[1].jet_quantity",
		"jet_card",
	}, validationErr.Missing)
	assert.Equal(t, ReasonMissingFields, validationErr.Reason())
}

func TestEvaluateRequiresItems(t *testing.T) {
	p := newPipeline(t, testConfig(), fixedCountry("BG"))
	ctx := context.Background()

	var full map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(validPayload), &full))

	full["items"] = []interface{}{}
	data, err := json.Marshal(full)
	require.NoError(t, err)

	err = p.Evaluate(ctx, browserMeta("1.2.3.4"), decode(t, string(data)))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"items"}, validationErr.Missing)
}

func TestEvaluateReportsMalformedAmounts(t *testing.T) {
	p := newPipeline(t, testConfig(), fixedCountry("BG"))

	sub := decode(t, validPayload)
	sub.Installments = "twelve"
	sub.Items[0].Quantity = "0"

	err := p.Evaluate(context.Background(), browserMeta("1.2.3.4"), sub)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, validationErr.Missing)
	assert.Equal(t, []string{"items[0].jet_quantity", "jet_vnoski"}, validationErr.Invalid)
	assert.Equal(t, ReasonInvalidFields, validationErr.Reason())
}
