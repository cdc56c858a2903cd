// Package sequence issues per-merchant order numbers. The numbers are an
// ordering hint shown to humans in the notification subject; they are not
// a unique business key. When the backing store cannot be locked or opened
// NextValue returns FallbackValue together with ErrDegraded.
package sequence

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

const (
	FallbackValue int64 = 1
	defaultBucket       = "default"
)

var ErrDegraded = errors.New("sequence store degraded")

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type Store interface {
	NextValue(ctx context.Context, merchant string) (int64, error)

	// Peek returns the last issued value without incrementing it
	Peek(ctx context.Context, merchant string) (int64, error)
}

// SanitizeKey folds a merchant identifier into a safe storage key. Domains
// are normalized to their lowercase ASCII (punycode) form first so a unicode
// domain and its punycode spelling share one counter.
func SanitizeKey(merchant string) string {
	key := strings.TrimSpace(merchant)

	if ascii, err := idna.Lookup.ToASCII(key); err == nil {
		key = ascii
	}

	key = unsafeKeyChars.ReplaceAllString(key, "_")
	if key == "" {
		return defaultBucket
	}

	return key
}
