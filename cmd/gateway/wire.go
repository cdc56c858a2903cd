package main

import (
	"github.com/aman-churiwal/credit-gateway/internal/admission"
	"github.com/aman-churiwal/credit-gateway/internal/circuitbreaker"
	"github.com/aman-churiwal/credit-gateway/internal/config"
	"github.com/aman-churiwal/credit-gateway/internal/geo"
	"github.com/aman-churiwal/credit-gateway/internal/kv"
	"github.com/aman-churiwal/credit-gateway/internal/notify"
	"github.com/aman-churiwal/credit-gateway/internal/ratelimit"
	"github.com/aman-churiwal/credit-gateway/internal/sequence"
	"github.com/aman-churiwal/credit-gateway/internal/server"
	"github.com/aman-churiwal/credit-gateway/internal/storage"
	"go.uber.org/zap"
)

// wire connects the configured stores and builds every collaborator of the
// server. cleanup closes whatever was opened.
func wire(cfg *config.Config, log *zap.Logger) (server.Dependencies, func(), error) {
	var (
		deps    server.Dependencies
		closers []func() error
	)

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.UsesRedis() {
		redis, err := storage.NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, redis.Close)
		deps.Redis = redis
		log.Info("Connected to redis", zap.String("addr", cfg.Redis.GetRedisAddr()))
	}

	if cfg.Store.Sequences == "postgres" {
		db, err := storage.OpenDatabase(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, db.Close)
		if err := db.Migrate(); err != nil {
			return deps, cleanup, err
		}
		deps.Database = db
		log.Info("Connected to database", zap.String("driver", db.Driver()))
	}

	memory := kv.NewMemory(cfg.Store.LockWait)
	var shared kv.Store = memory
	if deps.Redis != nil {
		shared = kv.NewRedis(deps.Redis, cfg.Store.LockWait)
	}

	windowStore := kv.Store(memory)
	if cfg.Store.RateWindows == "redis" {
		windowStore = shared
	}
	deps.Windows = ratelimit.NewWindowStore(windowStore, log)

	switch cfg.Store.Sequences {
	case "postgres":
		deps.Sequences = sequence.NewGormStore(deps.Database, cfg.Store.LockWait, log)
	case "redis":
		deps.Sequences = sequence.NewKVStore(shared, log)
	default:
		deps.Sequences = sequence.NewKVStore(memory, log)
	}

	resolver, err := buildResolver(cfg.Geo, deps.Redis, log)
	if err != nil {
		return deps, cleanup, err
	}

	deps.Admitter = admission.NewPipeline(admission.Config{
		AllowedCountry:       cfg.Admission.AllowedCountry,
		TrustedCountryHeader: cfg.Admission.TrustedCountryHeader,
		SecurePort:           cfg.Admission.SecurePort,
		IPLimit:              cfg.Admission.IPLimit,
		IPWindow:             cfg.Admission.IPWindow,
		MerchantLimit:        cfg.Admission.MerchantLimit,
		MerchantWindow:       cfg.Admission.MerchantWindow,
	}, resolver, deps.Windows, log)

	mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Relays:             cfg.Mail.Relays,
		Port:               cfg.Mail.Port,
		Username:           cfg.Mail.Username,
		Password:           cfg.Mail.Password,
		Strategy:           cfg.Mail.Strategy,
		Timeout:            cfg.Mail.Timeout,
		BreakerMaxFailures: cfg.Mail.BreakerMaxFailures,
		BreakerTimeout:     cfg.Mail.BreakerTimeout,
	}, log)
	if err != nil {
		return deps, cleanup, err
	}
	deps.Mailer = mailer
	deps.Relays = mailer

	return deps, cleanup, nil
}

// Static ranges answer first; the remote lookup is cached in redis when
// redis is connected.
func buildResolver(cfg config.GeoConfig, redis *storage.RedisClient, log *zap.Logger) (geo.Resolver, error) {
	var chain geo.Chain

	if len(cfg.StaticRanges) > 0 {
		static, err := geo.NewStatic(cfg.Ranges())
		if err != nil {
			return nil, err
		}
		chain = append(chain, static)
	}

	if cfg.LookupURL != "" {
		breaker := circuitbreaker.New(circuitbreaker.Config{Name: "geo"}, log)
		var remote geo.Resolver = geo.NewHTTPResolver(cfg.LookupURL, cfg.LookupTimeout, breaker, log)
		if redis != nil && cfg.CacheTTL > 0 {
			remote = geo.NewCached(remote, redis, cfg.CacheTTL, log)
		}
		chain = append(chain, remote)
	}

	if len(chain) == 0 {
		log.Warn("No geo resolver configured, every address resolves to unknown")
	}

	return chain, nil
}
