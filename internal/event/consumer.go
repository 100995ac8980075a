package event

import (
	"context"

	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/segmentio/kafka-go"
)

// Delivery is a fetched vote event. Its offset is only committed through
// CommitMessage, so an event that was never acknowledged is redelivered.
type Delivery struct {
	Event model.VoteEvent
	msg   kafka.Message
}

// NewDelivery wraps an event that did not come from Kafka.
func NewDelivery(ev model.VoteEvent) Delivery {
	return Delivery{Event: ev}
}

type VoteConsumer interface {
	FetchMessage(ctx context.Context) (Delivery, error)
	CommitMessage(ctx context.Context, d Delivery) error
	Close() error
}
