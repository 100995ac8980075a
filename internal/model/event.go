package model

import "time"

type VoteAction string

const (
	VoteCreated VoteAction = "created"
	VoteUpdated VoteAction = "updated"
	VoteDeleted VoteAction = "deleted"
)

// VoteEvent describes one committed change to a vote. PreviousVoteType is
// only set for updates.
type VoteEvent struct {
	EventID          string     `json:"event_id"`
	Action           VoteAction `json:"action"`
	Vote             Vote       `json:"vote"`
	PreviousVoteType string     `json:"previous_vote_type,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
}

// TallyDeltas returns the per-vote-type count changes the event implies for
// its project.
func (e VoteEvent) TallyDeltas() map[string]int64 {
	deltas := make(map[string]int64, 2)
	switch e.Action {
	case VoteCreated:
		deltas[e.Vote.VoteType]++
	case VoteDeleted:
		deltas[e.Vote.VoteType]--
	case VoteUpdated:
		if e.PreviousVoteType != "" && e.PreviousVoteType != e.Vote.VoteType {
			deltas[e.PreviousVoteType]--
			deltas[e.Vote.VoteType]++
		}
	}
	return deltas
}

// Tally is the live score of a single project, keyed by vote type.
type Tally struct {
	ProjectTitle string         `json:"project_title"`
	Counts       map[string]int `json:"counts"`
}
