package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type KafkaConsumer struct {
	reader *kafka.Reader
	logger logrus.FieldLogger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, logger logrus.FieldLogger) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	rCfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10kb
		MaxBytes: 10e6, // 10mb
		MaxWait:  1 * time.Second,
		// A new group replays the topic from the start so tallies are rebuilt
		// from every recorded change.
		StartOffset: kafka.FirstOffset,
	}
	r := kafka.NewReader(rCfg)

	return &KafkaConsumer{reader: r, logger: logger}, nil
}

// FetchMessage returns the next decodable vote event without committing
// it. Undecodable messages are committed and skipped.
func (kc *KafkaConsumer) FetchMessage(ctx context.Context) (Delivery, error) {
	for {
		msg, err := kc.reader.FetchMessage(ctx)
		if err != nil {
			// Canceled and EOF mean shutdown; the caller's loop stops on them.
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return Delivery{}, err
			}
			kc.logger.WithError(err).Error("error fetching message from kafka")
			return Delivery{}, err
		}

		ev, err := decodeVoteEvent(msg.Value)
		if err == nil {
			return Delivery{Event: ev, msg: msg}, nil
		}

		kc.logger.WithError(err).WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("skipping undecodable vote event")
		if err := kc.reader.CommitMessages(ctx, msg); err != nil {
			return Delivery{}, fmt.Errorf("failed to commit undecodable message: %w", err)
		}
	}
}

// CommitMessage acknowledges d so the group does not receive it again.
func (kc *KafkaConsumer) CommitMessage(ctx context.Context, d Delivery) error {
	if err := kc.reader.CommitMessages(ctx, d.msg); err != nil {
		return fmt.Errorf("failed to commit offset %d on partition %d: %w", d.msg.Offset, d.msg.Partition, err)
	}
	return nil
}

func decodeVoteEvent(b []byte) (model.VoteEvent, error) {
	var ev model.VoteEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return model.VoteEvent{}, fmt.Errorf("error deserializing vote event: %w", err)
	}
	if ev.EventID == "" {
		return model.VoteEvent{}, fmt.Errorf("vote event without event_id")
	}
	return ev, nil
}

func (kc *KafkaConsumer) Close() error {
	if err := kc.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	return nil
}
