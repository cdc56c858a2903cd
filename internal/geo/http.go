package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/circuitbreaker"
	"go.uber.org/zap"
)

// HTTPResolver queries a plain-text lookup service: GET {base}/{ip}/country/
type HTTPResolver struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewHTTPResolver(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *HTTPResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

func (h *HTTPResolver) Country(ctx context.Context, ip string) string {
	var country string
	err := h.breaker.Call(ctx, func(ctx context.Context) error {
		c, err := h.lookup(ctx, ip)
		if err != nil {
			return err
		}
		country = c
		return nil
	})
	if err != nil {
		h.logger.Warn("Geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return Unknown
	}
	return country
}

func (h *HTTPResolver) lookup(ctx context.Context, ip string) (string, error) {
	endpoint := h.baseURL + "/" + url.PathEscape(ip) + "/country/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}

	return Normalize(string(body)), nil
}
