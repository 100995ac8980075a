// Package api serves the /vote resource.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/event"
	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/Guizzs26/community_voting_system/internal/metrics"
	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/Guizzs26/community_voting_system/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const publishTimeout = 5 * time.Second

var (
	ErrInvalidBody    = errors.New("invalid JSON body")
	ErrMissingFields  = errors.New("missing required fields")
	ErrVoteTypeLength = fmt.Errorf("vote_type must be at most %d characters", model.MaxVoteTypeLen)
)

type Handler struct {
	votes     store.VoteStore
	users     store.UserStore
	projects  store.ProjectStore
	publisher event.VotePublisher
	metrics   *metrics.APIMetrics
	limiter   *rate.Limiter
	logger    logrus.FieldLogger
}

// NewHandler wires the vote, user and project resources. rps <= 0 disables
// rate limiting of mutating requests.
func NewHandler(
	db store.Store,
	publisher event.VotePublisher,
	m *metrics.APIMetrics,
	rps float64,
	burst int,
	logger logrus.FieldLogger,
) *Handler {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Handler{
		votes:     db,
		users:     db,
		projects:  db,
		publisher: publisher,
		metrics:   m,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/vote", func(r chi.Router) {
		r.Get("/", h.listVotes)
		r.With(h.rateLimit).Post("/", h.createVote)
		r.Get("/{id}", h.getVote)
		r.With(h.rateLimit).Put("/{id}", h.updateVote)
		r.With(h.rateLimit).Delete("/{id}", h.deleteVote)
	})
	r.Route("/user", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.With(h.rateLimit).Post("/", h.createUser)
		r.Get("/{username}", h.getUser)
		r.With(h.rateLimit).Put("/{username}", h.updateUser)
		r.With(h.rateLimit).Delete("/{username}", h.deleteUser)
	})
	r.Route("/project", func(r chi.Router) {
		r.Get("/", h.listProjects)
		r.With(h.rateLimit).Post("/", h.createProject)
		r.Get("/{title}", h.getProject)
		r.With(h.rateLimit).Put("/{title}", h.updateProject)
		r.With(h.rateLimit).Delete("/{title}", h.deleteProject)
	})
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			logging.WriteMessage(w, h.logger, http.StatusTooManyRequests, "Too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) createVote(w http.ResponseWriter, r *http.Request) {
	var in model.VoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, ErrInvalidBody)
		return
	}
	if err := validateInput(&in); err != nil {
		h.badRequest(w, err)
		return
	}

	// Votes reference an existing member and project.
	if _, err := h.users.GetUser(r.Context(), in.UserUsername); err != nil {
		h.storeError(w, err, logrus.Fields{"username": in.UserUsername})
		return
	}
	if _, err := h.projects.GetProject(r.Context(), in.ProjectTitle); err != nil {
		h.storeError(w, err, logrus.Fields{"project": in.ProjectTitle})
		return
	}

	v, err := h.votes.CreateVote(r.Context(), in)
	if err != nil {
		logging.WriteMessage(w, h.logger, http.StatusInternalServerError, "Failed to create vote", logrus.Fields{"error": err.Error()})
		return
	}

	h.committed(r.Context(), model.VoteCreated, v, "")
	logging.WriteJSON(w, h.logger, http.StatusCreated, logging.MessageResponse{Message: "Vote created successfully", ID: v.ID})
}

func (h *Handler) listVotes(w http.ResponseWriter, r *http.Request) {
	votes, err := h.votes.ListVotes(r.Context())
	if err != nil {
		logging.WriteMessage(w, h.logger, http.StatusInternalServerError, "Failed to list votes", logrus.Fields{"error": err.Error()})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, votes)
}

func (h *Handler) getVote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voteID(w, r)
	if !ok {
		return
	}

	v, err := h.votes.GetVote(r.Context(), id)
	if err != nil {
		h.storeError(w, err, logrus.Fields{"vote_id": id})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, v)
}

func (h *Handler) updateVote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voteID(w, r)
	if !ok {
		return
	}

	var patch model.VotePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.badRequest(w, ErrInvalidBody)
		return
	}
	if err := validatePatch(&patch); err != nil {
		h.badRequest(w, err)
		return
	}

	// An empty patch changes nothing and emits no event.
	if patch.Empty() {
		if _, err := h.votes.GetVote(r.Context(), id); err != nil {
			h.storeError(w, err, logrus.Fields{"vote_id": id})
			return
		}
		logging.WriteJSON(w, h.logger, http.StatusOK, logging.MessageResponse{Message: "Vote updated successfully"})
		return
	}

	before, after, err := h.votes.UpdateVote(r.Context(), id, patch)
	if err != nil {
		h.storeError(w, err, logrus.Fields{"vote_id": id})
		return
	}

	h.committed(r.Context(), model.VoteUpdated, after, before.VoteType)
	logging.WriteJSON(w, h.logger, http.StatusOK, logging.MessageResponse{Message: "Vote updated successfully"})
}

func (h *Handler) deleteVote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voteID(w, r)
	if !ok {
		return
	}

	v, err := h.votes.DeleteVote(r.Context(), id)
	if err != nil {
		h.storeError(w, err, logrus.Fields{"vote_id": id})
		return
	}

	h.committed(r.Context(), model.VoteDeleted, v, "")
	logging.WriteJSON(w, h.logger, http.StatusOK, logging.MessageResponse{Message: "Vote deleted successfully"})
}

// committed records a stored change and publishes its event. The change is
// already durable, so a publish failure is only logged.
func (h *Handler) committed(ctx context.Context, action model.VoteAction, v model.Vote, previousVoteType string) {
	h.metrics.VoteMutations.WithLabelValues(string(action)).Inc()

	ev := event.NewVoteEvent(action, v, previousVoteType)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := h.publisher.PublishMessage(pctx, ev, v.ProjectTitle); err != nil {
		h.metrics.PublishErrors.Inc()
		h.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": ev.EventID,
			"action":   action,
			"vote_id":  v.ID,
		}).Warn("failed to publish vote event")
	}
}

func (h *Handler) voteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		// Non-numeric ids never match a vote route.
		logging.WriteMessage(w, h.logger, http.StatusNotFound, "Vote not found", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) storeError(w http.ResponseWriter, err error, fields logrus.Fields) {
	switch {
	case errors.Is(err, store.ErrVoteNotFound):
		logging.WriteMessage(w, h.logger, http.StatusNotFound, "Vote not found", nil)
	case errors.Is(err, store.ErrUserNotFound):
		logging.WriteMessage(w, h.logger, http.StatusNotFound, "User not found", nil)
	case errors.Is(err, store.ErrProjectNotFound):
		logging.WriteMessage(w, h.logger, http.StatusNotFound, "Project not found", nil)
	case errors.Is(err, store.ErrUsernameTaken),
		errors.Is(err, store.ErrNameTaken),
		errors.Is(err, store.ErrProjectExists):
		h.badRequest(w, err)
	default:
		f := logrus.Fields{"error": err.Error()}
		for k, v := range fields {
			f[k] = v
		}
		logging.WriteMessage(w, h.logger, http.StatusInternalServerError, "Operation failed", f)
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	msg := err.Error()
	logging.WriteMessage(w, h.logger, http.StatusBadRequest, strings.ToUpper(msg[:1])+msg[1:], nil)
}

func validateInput(in *model.VoteInput) error {
	in.UserUsername = strings.TrimSpace(in.UserUsername)
	in.ProjectTitle = strings.TrimSpace(in.ProjectTitle)
	in.VoteType = strings.TrimSpace(in.VoteType)

	var missing []string
	if in.UserUsername == "" {
		missing = append(missing, "user_username")
	}
	if in.ProjectTitle == "" {
		missing = append(missing, "project_title")
	}
	if in.VoteType == "" {
		missing = append(missing, "vote_type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	if len(in.VoteType) > model.MaxVoteTypeLen {
		return ErrVoteTypeLength
	}
	return nil
}

func validatePatch(p *model.VotePatch) error {
	if p.VoteType != nil {
		vt := strings.TrimSpace(*p.VoteType)
		if vt == "" {
			return fmt.Errorf("%w: vote_type", ErrMissingFields)
		}
		if len(vt) > model.MaxVoteTypeLen {
			return ErrVoteTypeLength
		}
		p.VoteType = &vt
	}
	return nil
}
