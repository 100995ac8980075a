package processing

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/event"
	"github.com/Guizzs26/community_voting_system/internal/metrics"
	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/Guizzs26/community_voting_system/internal/store"
	"github.com/sirupsen/logrus"
)

// Broadcaster pushes a project's fresh tally to live subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, projectTitle string, data []byte) bool
}

// Failed events are retried with a doubling backoff up to maxRetryBackoff.
const (
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = 10 * time.Second
)

type VoteProcessor struct {
	consumer       event.VoteConsumer
	tallies        store.TallyStore
	metrics        *metrics.ProcessorMetrics
	broadcaster    Broadcaster
	logger         logrus.FieldLogger
	reportInterval time.Duration
	retryBackoff   time.Duration

	mu       sync.RWMutex
	projects map[string]struct{} // projects seen since start, for the periodic report
}

func NewVoteProcessor(
	c event.VoteConsumer,
	t store.TallyStore,
	m *metrics.ProcessorMetrics,
	b Broadcaster,
	logger logrus.FieldLogger,
	reportInterval time.Duration,
) *VoteProcessor {
	if reportInterval <= 0 {
		reportInterval = 5 * time.Second
	}
	return &VoteProcessor{
		consumer:       c,
		tallies:        t,
		metrics:        m,
		broadcaster:    b,
		logger:         logger,
		reportInterval: reportInterval,
		retryBackoff:   defaultRetryBackoff,
		projects:       make(map[string]struct{}),
	}
}

func (vp *VoteProcessor) Run(ctx context.Context) error {
	rTicker := time.NewTicker(vp.reportInterval)
	defer rTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			vp.logger.Info("vote processor received signal to stop")
			return nil

		case <-rTicker.C:
			vp.printResults(ctx)

		default:
			d, err := vp.consumer.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					continue
				}
				vp.logger.WithError(err).Error("error reading vote event")
				continue
			}
			vp.handle(ctx, d)
		}
	}
}

// handle applies d until it succeeds and only then commits it. An event
// still failing at shutdown stays uncommitted and is redelivered.
func (vp *VoteProcessor) handle(ctx context.Context, d event.Delivery) {
	backoff := vp.retryBackoff
	for vp.processEvent(ctx, d.Event) != nil {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}

	if err := vp.consumer.CommitMessage(ctx, d); err != nil {
		vp.logger.WithError(err).WithField("event_id", d.Event.EventID).Error("failed to commit vote event")
	}
}

func (vp *VoteProcessor) processEvent(ctx context.Context, ev model.VoteEvent) error {
	project := ev.Vote.ProjectTitle
	start := time.Now()
	defer func() {
		vp.metrics.ProcessingTime.WithLabelValues(project).Observe(time.Since(start).Seconds())
	}()

	entry := vp.logger.WithFields(logrus.Fields{
		"event_id": ev.EventID,
		"action":   ev.Action,
		"vote_id":  ev.Vote.ID,
		"project":  project,
	})

	applied, err := vp.tallies.ApplyEvent(ctx, ev)
	if err != nil {
		vp.metrics.EventsFailed.WithLabelValues(project).Inc()
		entry.WithError(err).Error("failed to apply vote event")
		return err
	}
	if !applied {
		entry.Warn("duplicate vote event skipped")
		vp.metrics.EventsDuplicate.WithLabelValues(project).Inc()
		return nil
	}

	entry.Info("vote event applied")
	vp.metrics.EventsApplied.WithLabelValues(project, string(ev.Action)).Inc()

	vp.mu.Lock()
	vp.projects[project] = struct{}{}
	vp.mu.Unlock()

	vp.broadcast(ctx, project)
	return nil
}

func (vp *VoteProcessor) broadcast(ctx context.Context, project string) {
	if vp.broadcaster == nil {
		return
	}

	counts, err := vp.tallies.GetResults(ctx, project)
	if err != nil {
		vp.logger.WithError(err).WithField("project", project).Error("failed to read tally")
		return
	}

	data, err := json.Marshal(model.Tally{ProjectTitle: project, Counts: counts})
	if err != nil {
		vp.logger.WithError(err).Error("failed to encode tally")
		return
	}

	vp.broadcaster.Publish(ctx, project, data)
}

// Projects returns the projects seen since start, sorted.
func (vp *VoteProcessor) Projects() []string {
	vp.mu.RLock()
	defer vp.mu.RUnlock()

	out := make([]string, 0, len(vp.projects))
	for p := range vp.projects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (vp *VoteProcessor) printResults(ctx context.Context) {
	projects := vp.Projects()
	if len(projects) == 0 {
		vp.logger.Info("no vote events applied yet")
		return
	}

	for _, project := range projects {
		counts, err := vp.tallies.GetResults(ctx, project)
		if err != nil {
			vp.logger.WithError(err).WithField("project", project).Warn("failed to read tally")
			continue
		}
		fields := logrus.Fields{"project": project}
		for voteType, count := range counts {
			fields[voteType] = count
		}
		vp.logger.WithFields(fields).Info("current score")
	}
}
