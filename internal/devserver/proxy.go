package devserver

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/sirupsen/logrus"
)

// Proxy forwards requests to the frontend dev server so hot module
// replacement keeps working behind the Go server.
type Proxy struct {
	proxy *httputil.ReverseProxy
}

// NewProxy creates a reverse proxy to target (e.g. "http://localhost:5173").
func NewProxy(target string, logger logrus.FieldLogger) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("dev proxy: invalid target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("dev proxy: target %q is not an absolute URL", target)
	}

	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.WithError(err).WithFields(logrus.Fields{
			"path":   r.URL.Path,
			"target": u.Host,
		}).Warn("frontend dev server unreachable")
		w.WriteHeader(http.StatusBadGateway)
	}
	return &Proxy{proxy: rp}, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}
