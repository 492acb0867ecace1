package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// corsMethods are the methods the cart API routes accept.
const corsMethods = "GET, POST, PUT, DELETE, OPTIONS"

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows any origin.
	AllowOrigins []string
	// AllowHeaders is echoed from Access-Control-Request-Headers when empty.
	AllowHeaders  []string
	ExposeHeaders []string
	// AllowCredentials turns the "*" origin into an echo of the request
	// origin.
	AllowCredentials bool
	// MaxAge in seconds. Zero omits the header, negative sends 0.
	MaxAge int
}

// corsPolicy holds the header values computed once from CORSConfig.
type corsPolicy struct {
	origins map[string]string // lowercased origin to configured spelling
	echo    bool              // any origin, reflected back
	any     bool              // any origin, answered with "*"

	// Static headers set on every allowed response of each kind.
	onPreflight http.Header
	onActual    http.Header
	echoHeaders bool
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		onPreflight: http.Header{"Access-Control-Allow-Methods": {corsMethods}},
		onActual:    http.Header{},
		echoHeaders: len(cfg.AllowHeaders) == 0,
	}

	wildcard := len(cfg.AllowOrigins) == 0
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		p.origins[strings.ToLower(o)] = o
	}
	p.echo = wildcard && cfg.AllowCredentials
	p.any = wildcard && !cfg.AllowCredentials

	if !p.echoHeaders {
		p.onPreflight.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
	}
	if len(cfg.ExposeHeaders) > 0 {
		p.onActual.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", "))
	}
	if cfg.AllowCredentials {
		p.onPreflight.Set("Access-Control-Allow-Credentials", "true")
		p.onActual.Set("Access-Control-Allow-Credentials", "true")
	}
	if cfg.MaxAge != 0 {
		p.onPreflight.Set("Access-Control-Max-Age", strconv.Itoa(max(cfg.MaxAge, 0)))
	}
	return p
}

// match returns the Access-Control-Allow-Origin value for origin, or "" when
// the origin is not allowed.
func (p *corsPolicy) match(origin string) string {
	switch {
	case p.any:
		return "*"
	case p.echo:
		return origin
	default:
		return p.origins[strings.ToLower(origin)]
	}
}

func copyHeaders(dst, src http.Header) {
	for k, v := range src {
		dst[k] = v
	}
}

// CORS answers preflight requests and decorates cross-origin responses.
// Preflights never reach next.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")

			if origin != "" && r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Origin")
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allowed := p.match(origin); allowed != "" {
					h.Set("Access-Control-Allow-Origin", allowed)
					copyHeaders(h, p.onPreflight)
					if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); p.echoHeaders && reqHeaders != "" {
						h.Set("Access-Control-Allow-Headers", reqHeaders)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if !p.any {
				h.Add("Vary", "Origin")
			}
			if origin != "" {
				if allowed := p.match(origin); allowed != "" {
					h.Set("Access-Control-Allow-Origin", allowed)
					copyHeaders(h, p.onActual)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
