package httpx

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies lists the address ranges whose X-Forwarded-For and
// X-Real-IP headers are believed. The zero value trusts nobody.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts CIDR ranges ("10.0.0.0/8") and bare
// addresses ("192.0.2.7").
func ParseTrustedProxies(specs []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if strings.Contains(spec, "/") {
			p, err := netip.ParsePrefix(spec)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", spec, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(spec)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", spec, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// Contains reports whether addr is inside one of the trusted ranges.
func (t TrustedProxies) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address of the caller. Forwarding headers are only
// consulted when the connection itself comes from a trusted proxy; the
// X-Forwarded-For chain is then walked from the right and the first hop
// outside the trusted ranges is the client.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	peer = peer.Unmap()
	if !t.Contains(peer) {
		return peer.String()
	}

	if hops := forwardedHops(r); len(hops) > 0 {
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			a, err := netip.ParseAddr(hops[i])
			if err != nil {
				break
			}
			a = a.Unmap()
			if !t.Contains(a) {
				return a.String()
			}
			client = a
		}
		return client.String()
	}

	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return a.Unmap().String()
	}
	return peer.String()
}

// forwardedHops flattens every X-Forwarded-For header, in order.
func forwardedHops(r *http.Request) []string {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hops = append(hops, h)
			}
		}
	}
	return hops
}

// IPKeyExtractor keys requests by the connection's remote address and
// ignores forwarding headers. Use Limiters.ClientIP behind a proxy.
func IPKeyExtractor(r *http.Request) string {
	return TrustedProxies(nil).ClientIP(r)
}
