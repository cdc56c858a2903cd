package admission

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/geo"
	"github.com/aman-churiwal/credit-gateway/internal/metrics"
	"github.com/aman-churiwal/credit-gateway/internal/ratelimit"
	"go.uber.org/zap"
)

// Meta is the transport-level view of a request
type Meta struct {
	TLS       bool
	LocalPort int
	ClientIP  string
	Header    http.Header
	// The direct peer is a trusted proxy, so its edge headers may be believed
	FromTrustedProxy bool
}

// MetaFromRequest captures what the checks need from r. clientIP is resolved
// by the router from the same trusted proxies.
func MetaFromRequest(r *http.Request, clientIP string, proxies ProxySet) Meta {
	meta := Meta{
		TLS:              r.TLS != nil,
		ClientIP:         clientIP,
		Header:           r.Header,
		FromTrustedProxy: proxies.Contains(r.RemoteAddr),
	}

	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		if _, port, err := net.SplitHostPort(addr.String()); err == nil {
			meta.LocalPort, _ = strconv.Atoi(port)
		}
	}

	return meta
}

type Config struct {
	// Empty disables the geography check
	AllowedCountry string
	// Edge header carrying a country code the proxy already resolved. Only
	// read when the request arrived through a trusted proxy.
	TrustedCountryHeader string
	SecurePort           int
	IPLimit              int
	IPWindow             time.Duration
	MerchantLimit        int
	MerchantWindow       time.Duration
}

type check struct {
	name string
	run  func(ctx context.Context, meta Meta, sub *Submission) error
}

// Pipeline runs the admission checks in their fixed order and stops at the
// first rejection. Only the field check accumulates violations.
type Pipeline struct {
	cfg             Config
	resolver        geo.Resolver
	ipLimiter       ratelimit.Limiter
	merchantLimiter ratelimit.Limiter
	logger          *zap.Logger
	checks          []check
}

func NewPipeline(cfg Config, resolver geo.Resolver, windows *ratelimit.WindowStore, logger *zap.Logger) *Pipeline {
	p := &Pipeline{
		cfg:             cfg,
		resolver:        resolver,
		ipLimiter:       ratelimit.NewFixedWindow(windows, "ip_", cfg.IPLimit, cfg.IPWindow),
		merchantLimiter: ratelimit.NewFixedWindow(windows, "jet_", cfg.MerchantLimit, cfg.MerchantWindow),
		logger:          logger,
	}

	p.checks = []check{
		{"transport", p.checkTransport},
		{"provenance", p.checkProvenance},
		{"user_agent", p.checkUserAgent},
		{"geo", p.checkCountry},
		{"ip_rate", p.checkIPRate},
		{"merchant_rate", p.checkMerchantRate},
		{"fields", p.checkFields},
	}

	return p
}

// Evaluate returns nil to admit the submission, otherwise a *TrustError or a
// *ValidationError.
func (p *Pipeline) Evaluate(ctx context.Context, meta Meta, sub *Submission) error {
	for _, c := range p.checks {
		if err := c.run(ctx, meta, sub); err != nil {
			p.record(c.name, meta, err)
			return err
		}
	}

	metrics.AdmissionDecisions.WithLabelValues("admitted").Inc()
	return nil
}

func (p *Pipeline) record(check string, meta Meta, err error) {
	reason := "error"
	var trustErr *TrustError
	var validationErr *ValidationError
	switch {
	case errors.As(err, &trustErr):
		reason = trustErr.Reason
	case errors.As(err, &validationErr):
		reason = validationErr.Reason()
	}

	metrics.AdmissionDecisions.WithLabelValues(reason).Inc()
	p.logger.Info("Submission rejected",
		zap.String("check", check),
		zap.String("reason", reason),
		zap.String("client_ip", meta.ClientIP),
	)
}

func (p *Pipeline) checkTransport(_ context.Context, meta Meta, _ *Submission) error {
	if meta.TLS {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(meta.Header.Get("X-Forwarded-Proto")), "https") {
		return nil
	}
	if p.cfg.SecurePort > 0 && meta.LocalPort == p.cfg.SecurePort {
		return nil
	}
	return forbidden(ReasonTransportInsecure)
}

func (p *Pipeline) checkProvenance(_ context.Context, meta Meta, _ *Submission) error {
	if meta.Header.Get("Origin") == "" && meta.Header.Get("Referer") == "" {
		return forbidden(ReasonProvenanceMissing)
	}
	return nil
}

func (p *Pipeline) checkUserAgent(_ context.Context, meta Meta, _ *Submission) error {
	ua := meta.Header.Get("User-Agent")
	if bot, token := classifyAgent(ua); bot {
		p.logger.Debug("Automation user agent", zap.String("user_agent", ua), zap.String("token", token))
		return forbidden(ReasonBotAgent)
	}
	return nil
}

func (p *Pipeline) checkCountry(ctx context.Context, meta Meta, _ *Submission) error {
	if p.cfg.AllowedCountry == "" {
		return nil
	}

	country := geo.Unknown
	if p.cfg.TrustedCountryHeader != "" && meta.FromTrustedProxy {
		country = geo.Normalize(meta.Header.Get(p.cfg.TrustedCountryHeader))
	}
	if country == geo.Unknown && p.resolver != nil {
		country = p.resolver.Country(ctx, meta.ClientIP)
	}

	// An address that cannot be placed is rejected
	if !strings.EqualFold(country, p.cfg.AllowedCountry) {
		p.logger.Debug("Country not allowed", zap.String("client_ip", meta.ClientIP), zap.String("country", country))
		return forbidden(ReasonGeoRestricted)
	}
	return nil
}

func (p *Pipeline) checkIPRate(ctx context.Context, meta Meta, _ *Submission) error {
	return p.limit(ctx, p.ipLimiter, "ip", meta.ClientIP, ReasonRateLimitedIP)
}

func (p *Pipeline) checkMerchantRate(ctx context.Context, _ Meta, sub *Submission) error {
	if sub.JetID == "" {
		return nil
	}
	return p.limit(ctx, p.merchantLimiter, "merchant", string(sub.JetID), ReasonRateLimitedMerchant)
}

func (p *Pipeline) limit(ctx context.Context, limiter ratelimit.Limiter, scope, key, reason string) error {
	allowed, err := limiter.Allow(ctx, key)
	if err != nil {
		// The window store already logged the cause; the attempt is admitted
		metrics.RateLimitFailOpen.WithLabelValues(scope).Inc()
	}
	if !allowed {
		return tooManyRequests(reason, limiter.Window())
	}
	return nil
}

func (p *Pipeline) checkFields(_ context.Context, _ Meta, sub *Submission) error {
	if len(sub.malformed) > 0 {
		return &ValidationError{
			Missing: withoutCovered(MissingFields(sub), sub.malformed),
			Invalid: sub.malformed,
		}
	}
	if missing := MissingFields(sub); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if _, invalid := sub.Order(); len(invalid) > 0 {
		return &ValidationError{Invalid: invalid}
	}
	return nil
}
