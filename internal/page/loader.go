// Package page holds the server-rendered voting view and the loader that
// feeds it.
package page

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// VotesPath is the same-origin endpoint the voting loader reads.
const VotesPath = "/vote"

// LoadEvent is what the router hands a loader: the fetch capability to use
// and whatever a parent layout loaded.
type LoadEvent struct {
	Fetch Fetcher
	Data  map[string]any
}

// VotingData is the voting view's input. Votes is the /vote body exactly
// as received; its shape is not checked.
type VotingData struct {
	Votes json.RawMessage `json:"votes"`
}

// LoadVoting issues a single GET /vote through ev.Fetch and returns the
// parsed body under Votes.
//
// The response status is not inspected: an error status with a JSON body
// resolves like a success. Transport and parse failures are returned as is,
// without retry.
func LoadVoting(ctx context.Context, ev LoadEvent) (*VotingData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, VotesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build vote request: %w", err)
	}

	resp, err := ev.Fetch.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", VotesPath, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", VotesPath, err)
	}

	// Unmarshal rejects trailing data and copies the bytes, so the result
	// never aliases a previous load.
	var votes json.RawMessage
	if err := json.Unmarshal(body, &votes); err != nil {
		return nil, fmt.Errorf("parse %s body: %w", VotesPath, err)
	}

	return &VotingData{Votes: votes}, nil
}
