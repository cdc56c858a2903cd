package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/circuitbreaker"
	"github.com/aman-churiwal/credit-gateway/internal/loadbalancer"
	"github.com/aman-churiwal/credit-gateway/internal/metrics"
	"go.uber.org/zap"
)

// Sender delivers one message. Failures are returned as *DeliveryError.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError reports a message the mail transport did not accept
type DeliveryError struct {
	Relay string
	Err   error
}

func (e *DeliveryError) Error() string {
	if e.Relay == "" {
		return fmt.Sprintf("mail delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("mail delivery via %s failed: %v", e.Relay, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ErrNoRelay is returned when every relay's breaker is open
var ErrNoRelay = errors.New("no mail relay available")

type SMTPConfig struct {
	Relays             []string
	Port               int
	Username           string
	Password           string
	Strategy           string
	Timeout            time.Duration
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

// transport hands a rendered message to one relay
type transport interface {
	deliver(ctx context.Context, relay string, from string, rcpts []string, data []byte) error
}

// SMTPMailer sends through a pool of relays. A relay whose breaker is open is
// skipped; a relay that fails mid-delivery is not retried elsewhere so the
// lender never receives the same request twice.
type SMTPMailer struct {
	pool      *loadbalancer.Pool
	breakers  map[string]*circuitbreaker.CircuitBreaker
	transport transport
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewSMTPMailer(cfg SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	pool, err := loadbalancer.NewPool(cfg.Relays, cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("mail relays: %w", err)
	}

	breakers := make(map[string]*circuitbreaker.CircuitBreaker, len(cfg.Relays))
	for _, relay := range pool.Targets() {
		breakers[relay] = circuitbreaker.New(circuitbreaker.Config{
			Name:        "smtp:" + relay,
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerTimeout,
		}, logger)
	}

	port := cfg.Port
	if port <= 0 {
		port = 587
	}

	return &SMTPMailer{
		pool:     pool,
		breakers: breakers,
		transport: &smtpTransport{
			port:     port,
			username: cfg.Username,
			password: cfg.Password,
		},
		timeout: cfg.Timeout,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		metrics.MailDeliveries.WithLabelValues("failed").Inc()
		return &DeliveryError{Err: err}
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	data := msg.Bytes(m.now())
	rcpts := msg.Recipients()
	skip := make(map[string]bool)

	for {
		relay := m.pool.Next(skip)
		if relay == "" {
			metrics.MailDeliveries.WithLabelValues("failed").Inc()
			return &DeliveryError{Err: ErrNoRelay}
		}

		release := m.pool.Acquire(relay)
		err := m.breakers[relay].Call(ctx, func(ctx context.Context) error {
			return m.transport.deliver(ctx, relay, msg.From, rcpts, data)
		})
		release()

		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			skip[relay] = true
			continue
		}

		if err != nil {
			metrics.MailDeliveries.WithLabelValues("failed").Inc()
			m.logger.Error("Mail delivery failed",
				zap.String("relay", relay),
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return &DeliveryError{Relay: relay, Err: err}
		}

		metrics.MailDeliveries.WithLabelValues("sent").Inc()
		m.logger.Info("Mail delivered",
			zap.String("relay", relay),
			zap.String("subject", msg.Subject),
			zap.Int("recipients", len(rcpts)),
		)
		return nil
	}
}

// Breakers exposes per-relay breaker state for the admin status page
func (m *SMTPMailer) Breakers() map[string]circuitbreaker.Metrics {
	out := make(map[string]circuitbreaker.Metrics, len(m.breakers))
	for relay, cb := range m.breakers {
		out[relay] = cb.Metrics()
	}
	return out
}

// ResetBreaker closes the breaker of relay, false when relay is unknown
func (m *SMTPMailer) ResetBreaker(relay string) bool {
	cb, ok := m.breakers[relay]
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

type smtpTransport struct {
	port     int
	username string
	password string
}

func (t *smtpTransport) deliver(ctx context.Context, relay, from string, rcpts []string, data []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(relay, strconv.Itoa(t.port)))
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, relay)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: relay, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	} else if t.username != "" {
		return errors.New("relay does not offer STARTTLS, refusing to send credentials")
	}

	if t.username != "" {
		if err := c.Auth(smtp.PlainAuth("", t.username, t.password, relay)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data: %w", err)
	}

	return c.Quit()
}
