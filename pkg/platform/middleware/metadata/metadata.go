package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"idcheck/pkg/requestcontext"
)

// Resolver determines the client IP of a request. Forwarding headers are only
// honoured when the TCP peer is inside one of the trusted proxy prefixes.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver returns a resolver trusting the given proxy prefixes. With no
// prefixes the TCP peer is always the client.
func NewResolver(trusted []netip.Prefix) *Resolver {
	return &Resolver{trusted: append([]netip.Prefix(nil), trusted...)}
}

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers, rate limiting and services.
// It trusts no proxies; use NewResolver(...).Middleware behind a load balancer.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return NewResolver(nil).Middleware(next)
}

// ClientIPFromRequest returns the TCP peer address of the request.
func ClientIPFromRequest(r *http.Request) string {
	return NewResolver(nil).ClientIP(r)
}

// Middleware stores the resolved client IP and User-Agent in the request context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), res.ClientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP resolves the client address. X-Forwarded-For is walked from the
// right, skipping trusted hops, and the first untrusted address wins. A
// malformed entry stops the walk at the last trusted hop, so a client cannot
// inject a value past the proxy that appended its own address.
func (res *Resolver) ClientIP(r *http.Request) string {
	host := peerHost(r.RemoteAddr)
	peer, err := netip.ParseAddr(host)
	if err != nil {
		if host == "" {
			return "unknown"
		}
		return host
	}
	peer = peer.Unmap()
	if !res.isTrusted(peer) {
		return peer.String()
	}

	if hops := forwardedFor(r); len(hops) > 0 {
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			addr, ok := parseHop(hops[i])
			if !ok {
				break
			}
			client = addr
			if !res.isTrusted(addr) {
				break
			}
		}
		return client.String()
	}

	if addr, ok := parseHop(r.Header.Get("X-Real-IP")); ok {
		return addr.String()
	}
	return peer.String()
}

func (res *Resolver) isTrusted(addr netip.Addr) bool {
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(remoteAddr)
}

// forwardedFor joins repeated X-Forwarded-For headers in arrival order.
func forwardedFor(r *http.Request) []string {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			hops = append(hops, strings.TrimSpace(hop))
		}
	}
	return hops
}

func parseHop(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap(), true
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap(), true
	}
	return netip.Addr{}, false
}
