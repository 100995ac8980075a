package page

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// votesServer serves body with status on /vote and counts the requests.
func votesServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, VotesPath, r.URL.Path)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func loadFrom(t *testing.T, srv *httptest.Server) (*VotingData, error) {
	t.Helper()
	fetch, err := NewOriginFetcher(srv.URL, srv.Client())
	require.NoError(t, err)
	return LoadVoting(context.Background(), LoadEvent{Fetch: fetch})
}

func TestLoadVoting_PassesJSONThrough(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "array", body: `[{"id":1,"count":3}]`, want: `{"votes":[{"id":1,"count":3}]}`},
		{name: "empty object", body: `{}`, want: `{"votes":{}}`},
		{name: "scalar", body: `42`, want: `{"votes":42}`},
		{name: "null", body: `null`, want: `{"votes":null}`},
		{name: "surrounding whitespace", body: "\n  [1, 2]\n", want: `{"votes":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := votesServer(t, http.StatusOK, tt.body)

			data, err := loadFrom(t, srv)
			require.NoError(t, err)

			out, err := json.Marshal(data)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(out))
		})
	}
}

func TestLoadVoting_DoesNotInspectStatus(t *testing.T) {
	srv, _ := votesServer(t, http.StatusInternalServerError, `{"message":"database is down"}`)

	data, err := loadFrom(t, srv)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"database is down"}`, string(data.Votes))
}

func TestLoadVoting_InvalidJSONFails(t *testing.T) {
	for _, body := range []string{"<html>oops</html>", "", `{"votes": [1,2}`, `[] trailing`} {
		t.Run(body, func(t *testing.T) {
			srv, _ := votesServer(t, http.StatusOK, body)

			data, err := loadFrom(t, srv)
			require.Error(t, err)
			assert.Nil(t, data)
			assert.Contains(t, err.Error(), "parse /vote body")
		})
	}
}

func TestLoadVoting_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0
	fetch := FetcherFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return nil, boom
	})

	data, err := LoadVoting(context.Background(), LoadEvent{Fetch: fetch})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, data)
	assert.Equal(t, 1, calls, "no retry")
}

func TestLoadVoting_IssuesExactlyOneBodylessGET(t *testing.T) {
	var seen []*http.Request
	fetch := FetcherFunc(func(req *http.Request) (*http.Response, error) {
		seen = append(seen, req)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`[]`)),
		}, nil
	})

	_, err := LoadVoting(context.Background(), LoadEvent{Fetch: fetch, Data: map[string]any{"user": "ignored"}})
	require.NoError(t, err)

	require.Len(t, seen, 1)
	req := seen[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, VotesPath, req.URL.String())
	assert.Nil(t, req.Body)
	assert.Empty(t, req.Header)
}

func TestLoadVoting_OneRequestPerInvocation(t *testing.T) {
	srv, hits := votesServer(t, http.StatusOK, `[]`)

	for i := 0; i < 3; i++ {
		_, err := loadFrom(t, srv)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestLoadVoting_ResultsAreIndependent(t *testing.T) {
	srv, _ := votesServer(t, http.StatusOK, `[{"id":1}]`)

	first, err := loadFrom(t, srv)
	require.NoError(t, err)
	second, err := loadFrom(t, srv)
	require.NoError(t, err)

	require.NotSame(t, first, second)
	first.Votes[2] = 'X'
	assert.JSONEq(t, `[{"id":1}]`, string(second.Votes))
}

func TestLoadVoting_ContextCancellation(t *testing.T) {
	srv, _ := votesServer(t, http.StatusOK, `[]`)
	fetch, err := NewOriginFetcher(srv.URL, srv.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = LoadVoting(ctx, LoadEvent{Fetch: fetch})
	assert.ErrorIs(t, err, context.Canceled)
}
