// Package metadata records the caller's address and user agent on the request
// context. Rate limiting, IP blocking and device labels all read from there.
package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"grievance/pkg/requestcontext"
)

// maxUserAgent bounds what is kept from the User-Agent header.
const maxUserAgent = 512

// ClientMetadata stores the client IP and a truncated User-Agent in the request context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		if len(ua) > maxUserAgent {
			ua = ua[:maxUserAgent]
		}
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest trusts the proxy headers first: the leftmost
// X-Forwarded-For hop, then X-Real-IP, then the socket peer. Values that do
// not parse as an address are ignored.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, ok := parseIP(first); ok {
			return ip
		}
	}
	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if ip, ok := parseIP(host); ok {
		return ip
	}
	return "unknown"
}

func parseIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
