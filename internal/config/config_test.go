package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "BG", cfg.Admission.AllowedCountry)
	assert.Equal(t, 443, cfg.Admission.SecurePort)
	assert.Equal(t, time.Minute, cfg.Admission.IPWindow)
	assert.Equal(t, "memory", cfg.Store.RateWindows)
	assert.Equal(t, "memory", cfg.Store.Sequences)
	assert.Equal(t, 12, cfg.Credit.DefaultInstallments)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, "125", cfg.Credit.Terms().MinPriceForDefaultPlan.String())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"admission": {"allowed_country": "RO", "ip_limit": 5},
		"store": {"sequences": "redis"},
		"credit": {"markup_percent": 1.5, "card_markup_percent": 2.25}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "RO", cfg.Admission.AllowedCountry)
	assert.Equal(t, 5, cfg.Admission.IPLimit)
	assert.Equal(t, 120, cfg.Admission.MerchantLimit)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, "1.5", cfg.Credit.Markup().String())
	assert.Equal(t, "2.25", cfg.Credit.CardMarkup().String())
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, `{"admission": {"ip_limit": 5}}`)
	t.Setenv("JET_ADMISSION_IP_LIMIT", "9")
	t.Setenv("JET_ADMISSION_IP_WINDOW", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Admission.IPLimit)
	assert.Equal(t, 30*time.Second, cfg.Admission.IPWindow)
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	path := writeConfig(t, `{"store": {"sequences": "mongo"}}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sequence store")
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, `{"server": `)

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	cfg.Admission.IPWindow = 500 * time.Millisecond
	assert.Error(t, cfg.Validate())

	cfg.Admission.IPWindow = time.Minute
	cfg.Admission.MerchantLimit = 0
	assert.Error(t, cfg.Validate())

	cfg.Admission.MerchantLimit = 1
	cfg.Credit.DefaultInstallments = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.json"))
	require.NoError(t, err)

	ranges := cfg.Geo.Ranges()
	assert.Equal(t, "BG", ranges["127.0.0.0/8"])
	assert.Equal(t, "BG", ranges["2001:db8::/32"])
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.Server.TrustedProxies)
	assert.Equal(t, "CF-IPCountry", cfg.Admission.TrustedCountryHeader)
	assert.Equal(t, 60*time.Second, cfg.Admission.IPWindow)
	assert.Equal(t, []string{"smtp1.example.bg", "smtp2.example.bg"}, cfg.Mail.Relays)
	assert.Equal(t, "postgres", cfg.Store.Sequences)
}

func TestLoad_StaticRangesKeepDottedCIDRs(t *testing.T) {
	path := writeConfig(t, `{"geo": {"static_ranges": [{"cidr": "192.168.0.0/16", "country": "bg"}]}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Geo.StaticRanges, 1)
	assert.Equal(t, "192.168.0.0/16", cfg.Geo.StaticRanges[0].CIDR)
	assert.Equal(t, map[string]string{"192.168.0.0/16": "bg"}, cfg.Geo.Ranges())
}
