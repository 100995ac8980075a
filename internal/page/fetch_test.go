package page

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOriginFetcher_RejectsRelativeOrigin(t *testing.T) {
	_, err := NewOriginFetcher("/api", nil)
	assert.Error(t, err)

	_, err = NewOriginFetcher("://bad", nil)
	assert.Error(t, err)
}

func TestOriginFetcher_Resolves(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		target string
		want   string
	}{
		{name: "relative path", origin: "http://localhost:8080", target: "/vote", want: "http://localhost:8080/vote"},
		{name: "origin with path", origin: "https://votes.example/app/", target: "/vote", want: "https://votes.example/vote"},
		{name: "absolute target untouched", origin: "http://localhost:8080", target: "http://other.example/vote", want: "http://other.example/vote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *http.Request
			f, err := NewOriginFetcher(tt.origin, FetcherFunc(func(req *http.Request) (*http.Response, error) {
				got = req
				return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
			}))
			require.NoError(t, err)

			req, err := http.NewRequest(http.MethodGet, tt.target, nil)
			require.NoError(t, err)

			resp, err := f.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()

			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.URL.String())
		})
	}
}

func TestHandlerFetcher_ServesInProcess(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/vote/{id}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, req.Host+" "+chi.URLParam(req, "id")+" "+req.URL.Query().Get("q"))
	})
	f := NewHandlerFetcher(r)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "/vote/3?q=x", nil)
	require.NoError(t, err)
	resp, err := f.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "localhost 3 x", string(body))
}

func TestHandlerFetcher_RefusesAbsoluteURL(t *testing.T) {
	f := NewHandlerFetcher(http.NotFoundHandler())
	req, err := http.NewRequest(http.MethodGet, "http://169.254.169.254/latest", nil)
	require.NoError(t, err)

	_, err = f.Do(req)
	assert.Error(t, err)
}
