package admission

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Reason codes are part of the public contract, storefront integrations
// match on them.
const (
	ReasonTransportInsecure   = "transport_insecure"
	ReasonProvenanceMissing   = "provenance_missing"
	ReasonBotAgent            = "bot_agent"
	ReasonGeoRestricted       = "geo_restricted"
	ReasonRateLimitedIP       = "rate_limited_ip"
	ReasonRateLimitedMerchant = "rate_limited_merchant"
	ReasonMissingFields       = "missing_fields"
	ReasonInvalidFields       = "invalid_fields"
)

// TrustError is a failed admission check. Status is 403 or 429.
type TrustError struct {
	Reason     string
	Status     int
	RetryAfter time.Duration
}

func (e *TrustError) Error() string {
	return fmt.Sprintf("request rejected: %s", e.Reason)
}

func forbidden(reason string) *TrustError {
	return &TrustError{Reason: reason, Status: http.StatusForbidden}
}

func tooManyRequests(reason string, retryAfter time.Duration) *TrustError {
	return &TrustError{Reason: reason, Status: http.StatusTooManyRequests, RetryAfter: retryAfter}
}

// ValidationError lists every missing or malformed field of a submission
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required fields: " + strings.Join(e.Missing, ", ")
	}
	return "invalid fields: " + strings.Join(e.Invalid, ", ")
}

func (e *ValidationError) Reason() string {
	if len(e.Missing) > 0 {
		return ReasonMissingFields
	}
	return ReasonInvalidFields
}
