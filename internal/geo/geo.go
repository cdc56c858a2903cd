package geo

import (
	"context"
	"strings"
)

// Unknown is reported when an address cannot be placed in any country
const Unknown = "unknown"

type Resolver interface {
	// Returns the ISO 3166 alpha-2 code for ip, or Unknown
	Country(ctx context.Context, ip string) string
}

// Chain asks each resolver in turn and returns the first known country
type Chain []Resolver

func (c Chain) Country(ctx context.Context, ip string) string {
	for _, r := range c {
		if r == nil {
			continue
		}
		if country := r.Country(ctx, ip); country != Unknown {
			return country
		}
	}
	return Unknown
}

// Normalize upper-cases a two letter code and maps anything else to Unknown
func Normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return Unknown
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return Unknown
		}
	}
	// XX is the edge proxy marker for "no data"
	if code == "XX" {
		return Unknown
	}
	return code
}
