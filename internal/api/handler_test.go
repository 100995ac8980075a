package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/Guizzs26/community_voting_system/internal/metrics"
	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/Guizzs26/community_voting_system/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.VoteEvent
	keys   []string
	err    error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, ev model.VoteEvent, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	srv     *httptest.Server
	pub     *recordingPublisher
	metrics *metrics.APIMetrics
}

func newFixture(t *testing.T, rps float64, burst int) *fixture {
	t.Helper()
	votes, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = votes.Close() })

	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		_, err := votes.CreateUser(ctx, "Name of "+u, u, "hash")
		require.NoError(t, err)
	}
	for _, title := range []string{"Garden", "Park Cleanup"} {
		budget := 100.0
		_, err := votes.CreateProject(ctx, model.ProjectInput{Title: title, Description: "d", Budget: &budget, CreatedBy: "alice"})
		require.NoError(t, err)
	}
	bcryptCost = bcrypt.MinCost

	pub := &recordingPublisher{}
	m := metrics.NewAPIMetrics(prometheus.NewRegistry(), "test")
	h := NewHandler(votes, pub, m, rps, burst, logging.Discard())

	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, pub: pub, metrics: m}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestCreateVote(t *testing.T) {
	f := newFixture(t, 0, 0)

	status, body := f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Park Cleanup","vote_type":"upvote","comment":"yes!"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"message":"Vote created successfully","id":1}`, body)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, model.VoteCreated, f.pub.events[0].Action)
	assert.Equal(t, "Park Cleanup", f.pub.keys[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.VoteMutations.WithLabelValues("created")))
}

func TestCreateVote_Validation(t *testing.T) {
	f := newFixture(t, 0, 0)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "malformed", body: `{"user_username":`, message: "Invalid JSON body"},
		{name: "missing fields", body: `{"user_username":"alice"}`, message: "Missing required fields: project_title, vote_type"},
		{name: "blank fields", body: `{"user_username":" ","project_title":"P","vote_type":"upvote"}`, message: "Missing required fields: user_username"},
		{name: "vote type too long", body: `{"user_username":"a","project_title":"P","vote_type":"enthusiastic"}`, message: "Vote_type must be at most 10 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, "/vote", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)

			var resp map[string]string
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.Equal(t, tt.message, resp["message"])
		})
	}
	assert.Empty(t, f.pub.events)
}

func TestCreateVote_UnknownUserOrProject(t *testing.T) {
	f := newFixture(t, 0, 0)

	status, body := f.do(t, http.MethodPost, "/vote", `{"user_username":"mallory","project_title":"Garden","vote_type":"upvote"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"message":"User not found"}`, body)

	status, body = f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Moon Base","vote_type":"upvote"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"message":"Project not found"}`, body)

	assert.Empty(t, f.pub.events)
	status, body = f.do(t, http.MethodGet, "/vote", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)
}

func TestListVotes(t *testing.T) {
	f := newFixture(t, 0, 0)

	status, body := f.do(t, http.MethodGet, "/vote", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)

	f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Garden","vote_type":"upvote"}`)
	f.do(t, http.MethodPost, "/vote", `{"user_username":"bob","project_title":"Garden","vote_type":"downvote","comment":"too costly"}`)

	status, body = f.do(t, http.MethodGet, "/vote", "")
	assert.Equal(t, http.StatusOK, status)

	var votes []model.Vote
	require.NoError(t, json.Unmarshal([]byte(body), &votes))
	require.Len(t, votes, 2)
	assert.Equal(t, "alice", votes[0].UserUsername)
	assert.Nil(t, votes[0].Comment)
	require.NotNil(t, votes[1].Comment)
	assert.Equal(t, "too costly", *votes[1].Comment)
	assert.Contains(t, body, `"comment":null`)
}

func TestGetVote(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Garden","vote_type":"upvote"}`)

	status, body := f.do(t, http.MethodGet, "/vote/1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"user_username":"alice"`)

	for _, path := range []string{"/vote/2", "/vote/abc", "/vote/0"} {
		status, body = f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, status, path)
		assert.JSONEq(t, `{"message":"Vote not found"}`, body)
	}
}

func TestUpdateVote(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Garden","vote_type":"upvote","comment":"first"}`)

	status, body := f.do(t, http.MethodPut, "/vote/1", `{"vote_type":"downvote","comment":null}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Vote updated successfully"}`, body)

	_, body = f.do(t, http.MethodGet, "/vote/1", "")
	var v model.Vote
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	assert.Equal(t, "downvote", v.VoteType)
	assert.Nil(t, v.Comment)

	require.Len(t, f.pub.events, 2)
	ev := f.pub.events[1]
	assert.Equal(t, model.VoteUpdated, ev.Action)
	assert.Equal(t, "upvote", ev.PreviousVoteType)
	assert.Equal(t, "downvote", ev.Vote.VoteType)
}

func TestUpdateVote_EmptyPatchIsNoop(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Garden","vote_type":"upvote"}`)

	status, _ := f.do(t, http.MethodPut, "/vote/1", `{}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, f.pub.events, 1, "no event for a no-op")

	status, _ = f.do(t, http.MethodPut, "/vote/9", `{}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateVote_Errors(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Garden","vote_type":"upvote"}`)

	status, _ := f.do(t, http.MethodPut, "/vote/1", `{"vote_type":""}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPut, "/vote/1", `[`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPut, "/vote/42", `{"vote_type":"downvote"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeleteVote(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Garden","vote_type":"upvote"}`)

	status, body := f.do(t, http.MethodDelete, "/vote/1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Vote deleted successfully"}`, body)

	status, _ = f.do(t, http.MethodDelete, "/vote/1", "")
	assert.Equal(t, http.StatusNotFound, status)

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, model.VoteDeleted, f.pub.events[1].Action)
	assert.Equal(t, "upvote", f.pub.events[1].Vote.VoteType)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.pub.err = errors.New("broker unavailable")

	status, _ := f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Garden","vote_type":"upvote"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PublishErrors))

	status, body := f.do(t, http.MethodGet, "/vote", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "alice")
}

func TestRateLimitAppliesToWritesOnly(t *testing.T) {
	f := newFixture(t, 0.001, 1)

	status, _ := f.do(t, http.MethodPost, "/vote", `{"user_username":"alice","project_title":"Garden","vote_type":"upvote"}`)
	assert.Equal(t, http.StatusCreated, status)

	status, body := f.do(t, http.MethodPost, "/vote", `{"user_username":"bob","project_title":"Garden","vote_type":"upvote"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.JSONEq(t, `{"message":"Too many requests"}`, body)

	status, _ = f.do(t, http.MethodGet, "/vote", "")
	assert.Equal(t, http.StatusOK, status)
}
