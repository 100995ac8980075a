package event

import (
	"time"

	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/google/uuid"
)

// NewVoteEvent stamps a change to v with a fresh event ID.
func NewVoteEvent(action model.VoteAction, v model.Vote, previousVoteType string) model.VoteEvent {
	return model.VoteEvent{
		EventID:          uuid.NewString(),
		Action:           action,
		Vote:             v,
		PreviousVoteType: previousVoteType,
		Timestamp:        time.Now().UTC(),
	}
}
