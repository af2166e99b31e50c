package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders = "Authorization, Content-Type, X-Request-ID"
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsMaxAge       = "600"
)

// corsPolicy decides which Origin values may read responses. Entries are
// exact origins, "*" for any caller, or "https://*.firm.example" for every
// subdomain of a host.
type corsPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string // "scheme://" + "." + host
}

func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{exact: map[string]struct{}{}}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case origin == "*":
			p.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*.")
			p.suffixes = append(p.suffixes, scheme+"://."+strings.ToLower(host))
		default:
			p.exact[strings.ToLower(origin)] = struct{}{}
		}
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, if any.
func (p corsPolicy) allowOrigin(origin string) (string, bool) {
	if p.any {
		return "*", true
	}
	if origin == "" {
		return "", false
	}
	key := strings.ToLower(origin)
	if _, ok := p.exact[key]; ok {
		return origin, true
	}
	scheme, host, ok := strings.Cut(key, "://")
	if !ok {
		return "", false
	}
	for _, suffix := range p.suffixes {
		wantScheme, domain, _ := strings.Cut(suffix, "://")
		if scheme == wantScheme && len(host) > len(domain) && strings.HasSuffix(host, domain) {
			return origin, true
		}
	}
	return "", false
}

// CORS answers browsers from allowed origins. A "*" entry replies with a
// literal wildcard and no credentials, which server-to-server webhook callers
// without an Origin header also receive. Preflights from allowed origins stop
// here with 204.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, ok := policy.allowOrigin(strings.TrimSpace(r.Header.Get("Origin")))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Max-Age", corsMaxAge)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
