package page

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// localHost is the Host same-origin requests carry when served in process.
const localHost = "localhost"

// Fetcher issues HTTP requests on behalf of a loader. *http.Client
// satisfies it; tests substitute their own.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(req *http.Request) (*http.Response, error)

func (f FetcherFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// OriginFetcher resolves relative request URLs against Origin before
// delegating, so loaders can address same-origin paths like "/vote".
type OriginFetcher struct {
	Origin *url.URL
	Client Fetcher
}

// NewOriginFetcher parses origin and wraps client (http.DefaultClient when nil).
func NewOriginFetcher(origin string, client Fetcher) (*OriginFetcher, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin %q must be absolute", origin)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OriginFetcher{Origin: u, Client: client}, nil
}

func (f *OriginFetcher) Do(req *http.Request) (*http.Response, error) {
	if !req.URL.IsAbs() {
		resolved := f.Origin.ResolveReference(req.URL)
		req = req.Clone(req.Context())
		req.URL = resolved
		req.Host = resolved.Host
	}
	return f.Client.Do(req)
}

// HandlerFetcher serves relative requests through Handler in process, so
// same-origin loads never depend on the Host header a client sent.
type HandlerFetcher struct {
	Handler http.Handler
}

func NewHandlerFetcher(h http.Handler) *HandlerFetcher {
	return &HandlerFetcher{Handler: h}
}

func (f *HandlerFetcher) Do(req *http.Request) (*http.Response, error) {
	if req.URL.IsAbs() {
		return nil, fmt.Errorf("in-process fetch of absolute URL %q", req.URL.Redacted())
	}
	// A fresh chi routing context; the caller's belongs to the outer request.
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, nil)
	req = req.Clone(ctx)
	req.URL = &url.URL{Scheme: "http", Host: localHost, Path: req.URL.Path, RawPath: req.URL.RawPath, RawQuery: req.URL.RawQuery}
	req.Host = localHost
	req.RequestURI = req.URL.RequestURI()
	if req.RemoteAddr == "" {
		req.RemoteAddr = "127.0.0.1:0"
	}

	rec := httptest.NewRecorder()
	f.Handler.ServeHTTP(rec, req)
	return rec.Result(), nil
}
