package event

import (
	"context"

	"github.com/Guizzs26/community_voting_system/internal/model"
)

type VotePublisher interface {
	PublishMessage(ctx context.Context, ev model.VoteEvent, key string) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishMessage(context.Context, model.VoteEvent, string) error { return nil }

func (NopPublisher) Close() error { return nil }
