// Package devserver holds the frontend dev server surface: the Host
// allow-list and the proxy to the frontend dev server.
package devserver

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/sirupsen/logrus"
)

// HostPolicy decides which Host headers the dev server answers.
// localhost, its subdomains and IP literals are always accepted. An entry
// starting with "." matches the domain and every subdomain; "*" accepts
// any host.
type HostPolicy struct {
	exact    map[string]struct{}
	suffixes []string
	any      bool
}

func NewHostPolicy(allowed []string) *HostPolicy {
	p := &HostPolicy{exact: make(map[string]struct{})}
	for _, h := range allowed {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
		case h == "*":
			p.any = true
		case strings.HasPrefix(h, "."):
			p.suffixes = append(p.suffixes, h)
		default:
			p.exact[h] = struct{}{}
		}
	}
	return p
}

// Allowed reports whether hostport (a Host header value) may be served.
func (p *HostPolicy) Allowed(hostport string) bool {
	if p.any {
		return true
	}
	host := hostOnly(hostport)
	if host == "" {
		return false
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if net.ParseIP(host) != nil {
		return true
	}
	if _, ok := p.exact[host]; ok {
		return true
	}
	for _, s := range p.suffixes {
		if host == s[1:] || strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// AllowedHosts refuses requests for hosts outside the policy. When enabled
// is false every request passes through.
func AllowedHosts(enabled bool, p *HostPolicy, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !p.Allowed(r.Host) {
				logger.WithField("host", r.Host).Warn("blocked request for disallowed host")
				logging.WriteMessage(w, logger, http.StatusForbidden,
					fmt.Sprintf("Blocked request. This host (%q) is not allowed.", hostOnly(r.Host)), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostOnly(hostport string) string {
	hostport = strings.ToLower(strings.TrimSpace(hostport))
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
}
