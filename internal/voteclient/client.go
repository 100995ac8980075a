// Package voteclient talks to the /vote, /user and /project HTTP API.
package voteclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/model"
)

const (
	defaultTimeout = 10 * time.Second
	votesEndpoint    = "/vote"
	usersEndpoint    = "/user"
	projectsEndpoint = "/project"
)

// ErrNotFound is matched by APIError values for 404 answers.
var ErrNotFound = errors.New("resource not found")

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vote api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("vote api: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a client for the API at baseURL. A nil httpClient gets a
// default one with a timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API URL %q is not absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

// CreateVote stores a vote and returns its ID.
func (c *Client) CreateVote(ctx context.Context, in model.VoteInput) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, votesEndpoint, in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) ListVotes(ctx context.Context) ([]model.Vote, error) {
	var out []model.Vote
	if err := c.do(ctx, http.MethodGet, votesEndpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetVote(ctx context.Context, id int64) (model.Vote, error) {
	var out model.Vote
	if err := c.do(ctx, http.MethodGet, votePath(id), nil, &out); err != nil {
		return model.Vote{}, err
	}
	return out, nil
}

func (c *Client) UpdateVote(ctx context.Context, id int64, patch model.VotePatch) error {
	return c.do(ctx, http.MethodPut, votePath(id), patch, nil)
}

func (c *Client) DeleteVote(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, votePath(id), nil, nil)
}

// CreateUser registers a user and returns its ID.
func (c *Client) CreateUser(ctx context.Context, in model.UserInput) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, usersEndpoint, in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) GetUser(ctx context.Context, username string) (model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodGet, usersEndpoint+"/"+url.PathEscape(username), nil, &out); err != nil {
		return model.User{}, err
	}
	return out, nil
}

// CreateProject proposes a project and returns its ID.
func (c *Client) CreateProject(ctx context.Context, in model.ProjectInput) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, projectsEndpoint, in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) GetProject(ctx context.Context, title string) (model.Project, error) {
	var out model.Project
	if err := c.do(ctx, http.MethodGet, projectsEndpoint+"/"+url.PathEscape(title), nil, &out); err != nil {
		return model.Project{}, err
	}
	return out, nil
}

func votePath(id int64) string {
	return votesEndpoint + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&msg)
		return &APIError{StatusCode: resp.StatusCode, Message: msg.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
