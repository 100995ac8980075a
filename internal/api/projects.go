package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/sirupsen/logrus"
)

var (
	ErrTitleLength    = fmt.Errorf("title must be at most %d characters", model.MaxProjectTitleLen)
	ErrInvalidStatus  = fmt.Errorf("status must be one of %s, %s, %s", model.ProjectProposed, model.ProjectActive, model.ProjectCompleted)
	ErrNegativeBudget = errors.New("budget must not be negative")
)

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var in model.ProjectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, ErrInvalidBody)
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)

	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if in.Budget == nil {
		missing = append(missing, "budget")
	}
	if in.CreatedBy == "" {
		missing = append(missing, "created_by")
	}
	if len(missing) > 0 {
		h.badRequest(w, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", ")))
		return
	}
	if len(in.Title) > model.MaxProjectTitleLen {
		h.badRequest(w, ErrTitleLength)
		return
	}
	if *in.Budget < 0 {
		h.badRequest(w, ErrNegativeBudget)
		return
	}

	p, err := h.projects.CreateProject(r.Context(), in)
	if err != nil {
		h.storeError(w, err, logrus.Fields{"project": in.Title})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusCreated, logging.MessageResponse{Message: "Project created successfully", ID: p.ID})
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListProjects(r.Context())
	if err != nil {
		h.storeError(w, err, nil)
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, projects)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	title := pathParam(r, "title")
	p, err := h.projects.GetProject(r.Context(), title)
	if err != nil {
		h.storeError(w, err, logrus.Fields{"project": title})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, p)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	title := pathParam(r, "title")

	var patch model.ProjectPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.badRequest(w, ErrInvalidBody)
		return
	}
	if patch.Status != nil && !model.ValidProjectStatus(*patch.Status) {
		h.badRequest(w, ErrInvalidStatus)
		return
	}
	if patch.Budget != nil && *patch.Budget < 0 {
		h.badRequest(w, ErrNegativeBudget)
		return
	}

	if _, err := h.projects.UpdateProject(r.Context(), title, patch); err != nil {
		h.storeError(w, err, logrus.Fields{"project": title})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, logging.MessageResponse{Message: "Project updated successfully"})
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	title := pathParam(r, "title")
	if err := h.projects.DeleteProject(r.Context(), title); err != nil {
		h.storeError(w, err, logrus.Fields{"project": title})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, logging.MessageResponse{Message: "Project deleted successfully"})
}
