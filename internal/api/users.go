package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

var (
	ErrNameLength     = fmt.Errorf("name must be at most %d characters", model.MaxUserNameLen)
	ErrUsernameLength = fmt.Errorf("username must be at most %d characters", model.MaxUserUsernameLen)
	ErrPasswordLength = errors.New("password must be at most 72 bytes")
)

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in model.UserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, ErrInvalidBody)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)

	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Username == "" {
		missing = append(missing, "username")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		h.badRequest(w, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", ")))
		return
	}
	if err := validateUserFields(&in.Name, &in.Username); err != nil {
		h.badRequest(w, err)
		return
	}

	hash, ok := h.hashPassword(w, in.Password)
	if !ok {
		return
	}

	u, err := h.users.CreateUser(r.Context(), in.Name, in.Username, hash)
	if err != nil {
		h.storeError(w, err, logrus.Fields{"username": in.Username})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusCreated, logging.MessageResponse{Message: "User created successfully", ID: u.ID})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.storeError(w, err, nil)
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	u, err := h.users.GetUser(r.Context(), username)
	if err != nil {
		h.storeError(w, err, logrus.Fields{"username": username})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")

	var patch model.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.badRequest(w, ErrInvalidBody)
		return
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			h.badRequest(w, fmt.Errorf("%w: name", ErrMissingFields))
			return
		}
		if err := validateUserFields(&name, nil); err != nil {
			h.badRequest(w, err)
			return
		}
		patch.Name = &name
	}

	var hash *string
	if patch.Password != nil {
		if *patch.Password == "" {
			h.badRequest(w, fmt.Errorf("%w: password", ErrMissingFields))
			return
		}
		hashed, ok := h.hashPassword(w, *patch.Password)
		if !ok {
			return
		}
		hash = &hashed
	}

	if _, err := h.users.UpdateUser(r.Context(), username, patch.Name, hash); err != nil {
		h.storeError(w, err, logrus.Fields{"username": username})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, logging.MessageResponse{Message: "User updated successfully"})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	if err := h.users.DeleteUser(r.Context(), username); err != nil {
		h.storeError(w, err, logrus.Fields{"username": username})
		return
	}
	logging.WriteJSON(w, h.logger, http.StatusOK, logging.MessageResponse{Message: "User deleted successfully"})
}

func (h *Handler) hashPassword(w http.ResponseWriter, password string) (string, bool) {
	if len(password) > 72 {
		h.badRequest(w, ErrPasswordLength)
		return "", false
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		logging.WriteMessage(w, h.logger, http.StatusInternalServerError, "Operation failed", logrus.Fields{"error": err.Error()})
		return "", false
	}
	return string(hash), true
}

func validateUserFields(name, username *string) error {
	if name != nil && len(*name) > model.MaxUserNameLen {
		return ErrNameLength
	}
	if username != nil && len(*username) > model.MaxUserUsernameLen {
		return ErrUsernameLength
	}
	return nil
}

// pathParam returns a decoded URL parameter. chi hands back the escaped
// form when the request path needed escaping.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}
