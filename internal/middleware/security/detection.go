package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"

	"ahorro/internal/log"
)

var (
	probePatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"<script", "union select", "etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
	}
	unusualMethods = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

const maxURLLength = 2048

// Detector flags probing requests and resolves the client address behind
// trusted proxies.
type Detector struct {
	suspicious     atomic.Int64
	trustedProxies []netip.Prefix
	logger         *log.Logger
}

func NewDetector(logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentSecurity)
	}
	return &Detector{
		logger: logger,
		trustedProxies: []netip.Prefix{
			netip.MustParsePrefix("127.0.0.0/8"),
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("172.16.0.0/12"),
			netip.MustParsePrefix("192.168.0.0/16"),
			netip.MustParsePrefix("::1/128"),
		},
	}
}

// Reason returns why r looks like a probe, or "" when it does not.
func (d *Detector) Reason(r *http.Request) string {
	if unusualMethods[r.Method] {
		return "method"
	}
	if len(r.URL.String()) > maxURLLength {
		return "url_length"
	}
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, p := range probePatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			return "pattern"
		}
	}
	ua := strings.ToLower(r.UserAgent())
	for _, a := range scannerAgents {
		if strings.Contains(ua, a) {
			return "user_agent"
		}
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return "forward_chain"
	}
	return ""
}

// Middleware logs suspicious requests and refuses unusual methods.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := d.Reason(r); reason != "" {
			d.suspicious.Add(1)
			d.logger.WarnContext(r.Context(), "Suspicious request",
				"reason", reason,
				log.FieldClientIP, d.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
			if reason == "method" {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP honours X-Forwarded-For and X-Real-IP only when the
// direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	direct, err := netip.ParseAddrPort(r.RemoteAddr)
	var addr netip.Addr
	if err == nil {
		addr = direct.Addr()
	} else if a, perr := netip.ParseAddr(r.RemoteAddr); perr == nil {
		addr = a
	} else {
		return r.RemoteAddr
	}

	if d.isTrustedProxy(addr) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return ip.String()
			}
		}
		if ip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
			return ip.String()
		}
	}
	return addr.String()
}

func (d *Detector) isTrustedProxy(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range d.trustedProxies {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func (d *Detector) SuspiciousCount() int64 {
	return d.suspicious.Load()
}

func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, p)
	return nil
}
