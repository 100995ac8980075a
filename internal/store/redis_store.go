package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	processedEventPrefix = "votes:events:processed:"
	// ProcessedEventTTL bounds how long an event ID is remembered for
	// deduplication. Redeliveries arrive well within it.
	ProcessedEventTTL = 7 * 24 * time.Hour
)

// applyEventScript marks the event as processed and applies its deltas in
// one step. A failed increment clears the mark so a redelivery retries.
//
// KEYS[1] processed marker, KEYS[2] project results hash
// ARGV[1] marker TTL in seconds, then field/delta pairs
var applyEventScript = redis.NewScript(`
if not redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[1]) then
  return 0
end
for i = 2, #ARGV, 2 do
  local res = redis.pcall('HINCRBY', KEYS[2], ARGV[i], ARGV[i + 1])
  if type(res) == 'table' and res.err then
    redis.call('DEL', KEYS[1])
    return res
  end
end
return 1
`)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := redis.NewClient(opts)

	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &RedisStore{client: c}, nil
}

func resultsKey(projectTitle string) string {
	return fmt.Sprintf("project:%s:results", projectTitle)
}

func processedEventKey(eventID string) string {
	return processedEventPrefix + eventID
}

func (rs *RedisStore) ApplyEvent(ctx context.Context, ev model.VoteEvent) (bool, error) {
	deltas := ev.TallyDeltas()
	args := make([]interface{}, 0, 1+2*len(deltas))
	args = append(args, int64(ProcessedEventTTL/time.Second))
	for voteType, delta := range deltas {
		args = append(args, voteType, delta)
	}

	keys := []string{processedEventKey(ev.EventID), resultsKey(ev.Vote.ProjectTitle)}
	applied, err := applyEventScript.Run(ctx, rs.client, keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("error applying event %s: %w", ev.EventID, err)
	}
	return applied == 1, nil
}

func (rs *RedisStore) GetResults(ctx context.Context, projectTitle string) (map[string]int, error) {
	rstr, err := rs.client.HGetAll(ctx, resultsKey(projectTitle)).Result()
	if err != nil {
		return nil, fmt.Errorf("error getting results from redis: %w", err)
	}

	result := make(map[string]int, len(rstr))
	for voteType, countStr := range rstr {
		count, err := strconv.Atoi(countStr)
		if err != nil {
			return nil, fmt.Errorf("error converting count to int: %w", err)
		}
		result[voteType] = count
	}

	return result, nil
}

func (rs *RedisStore) Close() error {
	if err := rs.client.Close(); err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}
