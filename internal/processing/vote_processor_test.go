package processing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/event"
	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/Guizzs26/community_voting_system/internal/metrics"
	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanConsumer struct {
	events chan model.VoteEvent

	mu        sync.Mutex
	committed []string
}

func (c *chanConsumer) FetchMessage(ctx context.Context) (event.Delivery, error) {
	select {
	case ev := <-c.events:
		return event.NewDelivery(ev), nil
	case <-ctx.Done():
		return event.Delivery{}, ctx.Err()
	}
}

func (c *chanConsumer) CommitMessage(_ context.Context, d event.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, d.Event.EventID)
	return nil
}

func (c *chanConsumer) commits() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.committed...)
}

func (c *chanConsumer) Close() error { return nil }

type memTallies struct {
	mu      sync.Mutex
	seen    map[string]bool
	results map[string]map[string]int
	// failures counts the remaining failed applies per event ID; negative
	// fails forever.
	failures map[string]int
}

func newMemTallies() *memTallies {
	return &memTallies{seen: map[string]bool{}, results: map[string]map[string]int{}, failures: map[string]int{}}
}

func (m *memTallies) ApplyEvent(_ context.Context, ev model.VoteEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.failures[ev.EventID]; n != 0 {
		if n > 0 {
			m.failures[ev.EventID] = n - 1
		}
		return false, errors.New("redis down")
	}
	if m.seen[ev.EventID] {
		return false, nil
	}
	m.seen[ev.EventID] = true
	if m.results[ev.Vote.ProjectTitle] == nil {
		m.results[ev.Vote.ProjectTitle] = map[string]int{}
	}
	for k, d := range ev.TallyDeltas() {
		m.results[ev.Vote.ProjectTitle][k] += int(d)
	}
	return true, nil
}

func (m *memTallies) GetResults(_ context.Context, project string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for k, v := range m.results[project] {
		out[k] = v
	}
	return out, nil
}

func (m *memTallies) Close() error { return nil }

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []model.Tally
}

func (b *recordingBroadcaster) Publish(_ context.Context, _ string, data []byte) bool {
	var tally model.Tally
	_ = json.Unmarshal(data, &tally)
	b.mu.Lock()
	b.msgs = append(b.msgs, tally)
	b.mu.Unlock()
	return true
}

func (b *recordingBroadcaster) snapshot() []model.Tally {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Tally(nil), b.msgs...)
}

func newTestProcessor(c *chanConsumer, tallies *memTallies, bc Broadcaster) (*VoteProcessor, *metrics.ProcessorMetrics) {
	m := metrics.NewProcessorMetrics(prometheus.NewRegistry(), "test", "processor")
	vp := NewVoteProcessor(c, tallies, m, bc, logging.Discard(), 10*time.Millisecond)
	vp.retryBackoff = time.Millisecond
	return vp, m
}

func runProcessor(t *testing.T, vp *VoteProcessor) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- vp.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("processor did not stop")
		}
	}
}

func TestVoteProcessor_Run(t *testing.T) {
	consumer := &chanConsumer{events: make(chan model.VoteEvent)}
	tallies := newMemTallies()
	tallies.failures["flaky"] = 2
	bc := &recordingBroadcaster{}
	vp, m := newTestProcessor(consumer, tallies, bc)
	stop := runProcessor(t, vp)

	created := model.VoteEvent{EventID: "e1", Action: model.VoteCreated, Vote: model.Vote{ID: 1, ProjectTitle: "Garden", VoteType: "upvote"}}
	for _, ev := range []model.VoteEvent{
		created,
		created, // redelivery
		{EventID: "e2", Action: model.VoteUpdated, Vote: model.Vote{ID: 1, ProjectTitle: "Garden", VoteType: "downvote"}, PreviousVoteType: "upvote"},
		{EventID: "flaky", Action: model.VoteCreated, Vote: model.Vote{ID: 2, ProjectTitle: "Garden", VoteType: "upvote"}},
	} {
		consumer.events <- ev
	}

	require.Eventually(t, func() bool {
		return len(consumer.commits()) == 4
	}, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []string{"e1", "e1", "e2", "flaky"}, consumer.commits())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsFailed.WithLabelValues("Garden")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsApplied.WithLabelValues("Garden", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsApplied.WithLabelValues("Garden", "updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDuplicate.WithLabelValues("Garden")))

	msgs := bc.snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, map[string]int{"upvote": 1}, msgs[0].Counts)
	assert.Equal(t, map[string]int{"upvote": 0, "downvote": 1}, msgs[1].Counts)
	assert.Equal(t, map[string]int{"upvote": 1, "downvote": 1}, msgs[2].Counts)
	assert.Equal(t, []string{"Garden"}, vp.Projects())
}

func TestVoteProcessor_FailedEventNotCommitted(t *testing.T) {
	consumer := &chanConsumer{events: make(chan model.VoteEvent)}
	tallies := newMemTallies()
	tallies.failures["broken"] = -1
	vp, m := newTestProcessor(consumer, tallies, nil)
	stop := runProcessor(t, vp)

	consumer.events <- model.VoteEvent{EventID: "broken", Action: model.VoteCreated, Vote: model.Vote{ID: 2, ProjectTitle: "Garden", VoteType: "upvote"}}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.EventsFailed.WithLabelValues("Garden")) >= 3
	}, time.Second, time.Millisecond)
	assert.Empty(t, consumer.commits(), "a failing event must stay unacknowledged while retried")

	stop()
	assert.Empty(t, consumer.commits(), "shutdown must not acknowledge a failed event")
	assert.Empty(t, vp.Projects())
}
