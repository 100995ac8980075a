package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/Guizzs26/community_voting_system/internal/voteclient"
	"github.com/sirupsen/logrus"
)

const (
	upvote   = "upvote"
	downvote = "downvote"
)

// VoteWriter is the part of the API the simulator drives. Get methods
// must return an error matching voteclient.ErrNotFound for unknown names.
type VoteWriter interface {
	CreateVote(ctx context.Context, in model.VoteInput) (int64, error)
	UpdateVote(ctx context.Context, id int64, patch model.VotePatch) error
	GetUser(ctx context.Context, username string) (model.User, error)
	CreateUser(ctx context.Context, in model.UserInput) (int64, error)
	GetProject(ctx context.Context, title string) (model.Project, error)
	CreateProject(ctx context.Context, in model.ProjectInput) (int64, error)
}

type Options struct {
	Interval       time.Duration
	Projects       []string
	Users          int
	Budget         float64
	UpdateEvery    int
	RequestTimeout time.Duration
	// Rand drives user, project and vote type choices. Nil seeds from the clock.
	Rand *rand.Rand
}

type Simulator struct {
	votes  VoteWriter
	opts   Options
	rnd    *rand.Rand
	logger logrus.FieldLogger

	tick         int
	provisioned  bool
	lastID       int64
	lastVoteType string
}

func New(votes VoteWriter, opts Options, logger logrus.FieldLogger) *Simulator {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if len(opts.Projects) == 0 {
		opts.Projects = []string{"Community Garden"}
	}
	if opts.Users <= 0 {
		opts.Users = 20
	}
	if opts.Budget <= 0 {
		opts.Budget = 1000
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{votes: votes, opts: opts, rnd: rnd, logger: logger}
}

func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulator received shutdown signal")
			return nil

		case <-ticker.C:
			if err := s.Step(ctx); err != nil {
				s.logger.WithError(err).Warn("simulated request failed")
			}
		}
	}
}

// Step performs one tick: usually a new vote, and on every UpdateEvery-th
// tick a change of heart on the previous vote.
func (s *Simulator) Step(ctx context.Context) error {
	s.tick++

	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	if !s.provisioned {
		if err := s.provision(reqCtx); err != nil {
			return fmt.Errorf("provision: %w", err)
		}
		s.provisioned = true
	}

	if s.opts.UpdateEvery > 0 && s.tick%s.opts.UpdateEvery == 0 && s.lastID != 0 {
		flipped := upvote
		if s.lastVoteType == upvote {
			flipped = downvote
		}
		s.logger.WithFields(logrus.Fields{"vote_id": s.lastID, "vote_type": flipped}).Info("changing previous vote")
		if err := s.votes.UpdateVote(reqCtx, s.lastID, model.VotePatch{VoteType: &flipped}); err != nil {
			return fmt.Errorf("update vote %d: %w", s.lastID, err)
		}
		s.lastVoteType = flipped
		return nil
	}

	in := model.VoteInput{
		UserUsername: username(s.rnd.Intn(s.opts.Users)),
		ProjectTitle: s.opts.Projects[s.rnd.Intn(len(s.opts.Projects))],
		VoteType:     upvote,
	}
	if s.rnd.Intn(3) == 0 {
		in.VoteType = downvote
	}

	s.logger.WithFields(logrus.Fields{"project": in.ProjectTitle, "user": in.UserUsername}).Debug("generating vote")
	id, err := s.votes.CreateVote(reqCtx, in)
	if err != nil {
		return fmt.Errorf("create vote: %w", err)
	}
	s.lastID = id
	s.lastVoteType = in.VoteType
	return nil
}

// provision makes sure the user pool and every project exist, since the
// API refuses votes for unknown users or projects.
func (s *Simulator) provision(ctx context.Context) error {
	for i := 0; i < s.opts.Users; i++ {
		name := username(i)
		_, err := s.votes.GetUser(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, voteclient.ErrNotFound) {
			return fmt.Errorf("get user %s: %w", name, err)
		}
		in := model.UserInput{Name: "Simulated " + name, Username: name, Password: name}
		if _, err := s.votes.CreateUser(ctx, in); err != nil {
			return fmt.Errorf("create user %s: %w", name, err)
		}
	}

	owner := username(0)
	for _, title := range s.opts.Projects {
		_, err := s.votes.GetProject(ctx, title)
		if err == nil {
			continue
		}
		if !errors.Is(err, voteclient.ErrNotFound) {
			return fmt.Errorf("get project %s: %w", title, err)
		}
		budget := s.opts.Budget
		in := model.ProjectInput{Title: title, Description: "Simulated project " + title, Budget: &budget, CreatedBy: owner}
		if _, err := s.votes.CreateProject(ctx, in); err != nil {
			return fmt.Errorf("create project %s: %w", title, err)
		}
	}

	s.logger.WithFields(logrus.Fields{"users": s.opts.Users, "projects": len(s.opts.Projects)}).Info("simulation data provisioned")
	return nil
}

func username(i int) string {
	return fmt.Sprintf("user-%d", i)
}
