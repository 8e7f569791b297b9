// Package ipclass decides whether an address belongs to a local network.
package ipclass

import (
	"errors"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"mikrotik-geo-visualizer/internal/domain"
)

// Special-purpose ranges that are not covered by the netip predicates.
var reserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("192.0.0.0/29"),
	netip.MustParsePrefix("192.0.0.170/31"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("100::/64"),
	netip.MustParsePrefix("2001::/23"),
	netip.MustParsePrefix("2001:db8::/32"),
}

// IsPrivate reports whether address is a private, loopback, link-local,
// unique-local or otherwise reserved address. address must be a bare IP
// literal; anything else yields an *domain.AddressParseError.
func IsPrivate(address string) (bool, error) {
	if address == "" {
		return false, &domain.AddressParseError{Address: address, Err: errors.New("empty address")}
	}
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return false, &domain.AddressParseError{Address: address, Err: err}
	}
	ip = ip.Unmap().WithZone("")

	if ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true, nil
	}
	if ip.Is4() && ip == netip.AddrFrom4([4]byte{255, 255, 255, 255}) {
		return true, nil
	}
	for _, p := range reserved {
		if p.Contains(ip) {
			return true, nil
		}
	}
	return false, nil
}

// StripPort removes a ":port" suffix left by NAT from a router address.
// "[v6]:port" is unwrapped; bare IPv6 literals are returned as they are.
func StripPort(address string) string {
	s := strings.TrimSpace(address)
	if strings.HasPrefix(s, "[") {
		if host, _, err := net.SplitHostPort(s); err == nil {
			return host
		}
		return strings.Trim(s, "[]")
	}
	if strings.Count(s, ":") == 1 {
		i := strings.LastIndex(s, ":")
		if i > 0 {
			if _, err := strconv.Atoi(s[i+1:]); err == nil {
				return s[:i]
			}
		}
	}
	return s
}
