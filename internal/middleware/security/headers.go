package security

import (
	"fmt"
	"net/http"
)

type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
	CrossOriginResource string
	CacheControl        string
}

// DefaultHeadersConfig suits a JSON API that serves no documents.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
	}
}

// Headers returns middleware that sets cfg on every response.
func Headers(cfg HeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			set := func(k, v string) {
				if v != "" {
					h.Set(k, v)
				}
			}
			set("Content-Security-Policy", cfg.CSP)
			set("X-Frame-Options", cfg.XFrameOptions)
			set("X-Content-Type-Options", cfg.XContentTypeOptions)
			set("Referrer-Policy", cfg.ReferrerPolicy)
			set("Permissions-Policy", cfg.PermissionsPolicy)
			set("Cross-Origin-Resource-Policy", cfg.CrossOriginResource)
			set("Cache-Control", cfg.CacheControl)

			if r.TLS != nil && cfg.HSTSMaxAge > 0 {
				v := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
				if cfg.HSTSIncludeSubdomains {
					v += "; includeSubDomains"
				}
				h.Set("Strict-Transport-Security", v)
			}
			next.ServeHTTP(w, r)
		})
	}
}
