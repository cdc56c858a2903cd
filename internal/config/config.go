package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/credit"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Geo       GeoConfig       `mapstructure:"geo"`
	Mail      MailConfig      `mapstructure:"mail"`
	Credit    CreditConfig    `mapstructure:"credit"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	// Debug echoes the decoded payload and raw delivery errors back to the caller
	Debug bool `mapstructure:"debug"`
	// Proxies allowed to set X-Forwarded-For; none by default
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "postgres" or "sqlite"
	DSN    string `mapstructure:"dsn"`
}

// Selects the backing store for rate windows and sequence counters
type StoreConfig struct {
	RateWindows string        `mapstructure:"rate_windows"` // "memory" "redis"
	Sequences   string        `mapstructure:"sequences"`    // "memory" "redis" "postgres"
	LockWait    time.Duration `mapstructure:"lock_wait"`
}

type AdmissionConfig struct {
	AllowedCountry       string        `mapstructure:"allowed_country"`
	TrustedCountryHeader string        `mapstructure:"trusted_country_header"`
	SecurePort           int           `mapstructure:"secure_port"`
	IPLimit              int           `mapstructure:"ip_limit"`
	IPWindow             time.Duration `mapstructure:"ip_window"`
	MerchantLimit        int           `mapstructure:"merchant_limit"`
	MerchantWindow       time.Duration `mapstructure:"merchant_window"`
}

type GeoConfig struct {
	// Consulted before the remote lookup. A list rather than a map because
	// viper would split CIDR keys on their dots.
	StaticRanges  []StaticRange `mapstructure:"static_ranges"`
	LookupURL     string        `mapstructure:"lookup_url"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

type StaticRange struct {
	CIDR    string `mapstructure:"cidr"`
	Country string `mapstructure:"country"` // ISO 3166-1 alpha-2
}

// Ranges returns the static table keyed by CIDR
func (g GeoConfig) Ranges() map[string]string {
	ranges := make(map[string]string, len(g.StaticRanges))
	for _, r := range g.StaticRanges {
		ranges[r.CIDR] = r.Country
	}
	return ranges
}

type MailConfig struct {
	Relays             []string      `mapstructure:"relays"`
	Port               int           `mapstructure:"port"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	Strategy           string        `mapstructure:"strategy"`
	Timeout            time.Duration `mapstructure:"timeout"`
	BreakerMaxFailures int           `mapstructure:"breaker_max_failures"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
}

type CreditConfig struct {
	// Principal below which the short 9-installment plan is proposed
	MinPriceForDefaultPlan float64 `mapstructure:"min_price_for_default_plan"`
	DefaultInstallments    int     `mapstructure:"default_installments"`
	MarkupPercent          float64 `mapstructure:"markup_percent"`
	CardMarkupPercent      float64 `mapstructure:"card_markup_percent"`
	// Smallest principal a plan may be quoted for; caps the down payment
	MinPrice float64 `mapstructure:"min_price"`
}

func (c CreditConfig) Terms() credit.Terms {
	return credit.Terms{
		MinPriceForDefaultPlan: decimal.NewFromFloat(c.MinPriceForDefaultPlan),
		DefaultInstallments:    c.DefaultInstallments,
		MinPrice:               decimal.NewFromFloat(c.MinPrice),
	}
}

func (c CreditConfig) Markup() decimal.Decimal {
	return decimal.NewFromFloat(c.MarkupPercent)
}

func (c CreditConfig) CardMarkup() decimal.Decimal {
	return decimal.NewFromFloat(c.CardMarkupPercent)
}

type AdminConfig struct {
	Username     string        `mapstructure:"username"`
	PasswordHash string        `mapstructure:"password_hash"` // bcrypt
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("log.level", "info")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")

	v.SetDefault("store.rate_windows", "memory")
	v.SetDefault("store.sequences", "memory")
	v.SetDefault("store.lock_wait", 2*time.Second)

	v.SetDefault("admission.allowed_country", "BG")
	v.SetDefault("admission.trusted_country_header", "")
	v.SetDefault("admission.secure_port", 443)
	v.SetDefault("admission.ip_limit", 60)
	v.SetDefault("admission.ip_window", time.Minute)
	v.SetDefault("admission.merchant_limit", 120)
	v.SetDefault("admission.merchant_window", time.Minute)

	v.SetDefault("geo.lookup_url", "")
	v.SetDefault("geo.lookup_timeout", 3*time.Second)
	v.SetDefault("geo.cache_ttl", 24*time.Hour)

	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.strategy", "round_robin")
	v.SetDefault("mail.timeout", 15*time.Second)
	v.SetDefault("mail.breaker_max_failures", 5)
	v.SetDefault("mail.breaker_timeout", 30*time.Second)

	v.SetDefault("credit.min_price_for_default_plan", 125.0)
	v.SetDefault("credit.default_installments", 12)
	v.SetDefault("credit.markup_percent", 0.0)
	v.SetDefault("credit.card_markup_percent", 0.0)
	v.SetDefault("credit.min_price", 0.0)

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_ttl", 12*time.Hour)
}

// Load reads the JSON config at path; JET_* environment variables override it.
// A missing file is not an error, defaults and environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("JET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Admission.IPLimit <= 0 || c.Admission.MerchantLimit <= 0 {
		return errors.New("admission limits must be positive")
	}
	if c.Admission.IPWindow < time.Second || c.Admission.MerchantWindow < time.Second {
		return errors.New("admission windows must be at least one second")
	}
	if c.Credit.DefaultInstallments <= 0 {
		return errors.New("credit.default_installments must be positive")
	}

	switch c.Store.RateWindows {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown rate window store: %s", c.Store.RateWindows)
	}

	switch c.Store.Sequences {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unknown sequence store: %s", c.Store.Sequences)
	}

	return nil
}

// UsesRedis reports whether any store needs a redis connection
func (c *Config) UsesRedis() bool {
	return c.Store.RateWindows == "redis" || c.Store.Sequences == "redis"
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
