package geo

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
)

type staticRange struct {
	prefix  netip.Prefix
	country string
}

// StaticResolver maps addresses through a fixed CIDR table.
// The most specific matching prefix wins.
type StaticResolver struct {
	ranges []staticRange
}

func NewStatic(table map[string]string) (*StaticResolver, error) {
	ranges := make([]staticRange, 0, len(table))
	for cidr, country := range table {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid geo range %q: %w", cidr, err)
		}
		code := Normalize(country)
		if code == Unknown {
			return nil, fmt.Errorf("invalid country %q for range %s", country, cidr)
		}
		ranges = append(ranges, staticRange{prefix: prefix.Masked(), country: code})
	}

	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].prefix.Bits() > ranges[j].prefix.Bits()
	})

	return &StaticResolver{ranges: ranges}, nil
}

func (s *StaticResolver) Country(_ context.Context, ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Unknown
	}
	addr = addr.Unmap()

	for _, r := range s.ranges {
		if r.prefix.Contains(addr) {
			return r.country
		}
	}
	return Unknown
}
