package admission

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ProxySet holds the peers allowed to vouch for the client, in the same
// "IP or CIDR" form the router accepts for trusted proxies.
type ProxySet []netip.Prefix

func ParseProxySet(entries []string) (ProxySet, error) {
	set := make(ProxySet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			set = append(set, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		set = append(set, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return set, nil
}

// Contains reports whether the direct peer, given as "host:port" or a bare
// host, is one of the trusted proxies.
func (s ProxySet) Contains(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range s {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
