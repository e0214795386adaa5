package handlers

import (
	"net/http"
	"strconv"

	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/service"
)

// UserHandler serves account management
type UserHandler struct {
	userService *service.UserService
	log         logging.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService, log logging.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

type authorizeRequest struct {
	Authorized *bool `json:"authorized"`
}

func parseUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// List returns every user
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PublicUsers(users))
}

// Get returns one user
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, MsgInvalidUserID)
		return
	}

	user, err := h.userService.Get(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// Create adds a user
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.NewUser
	if err := parseJSON(w, r, &in); err != nil {
		respondBadBody(w, err)
		return
	}

	user, err := h.userService.Create(r.Context(), GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Public())
}

// Update applies a partial update
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, MsgInvalidUserID)
		return
	}

	var patch models.UserPatch
	if err := parseJSON(w, r, &patch); err != nil {
		respondBadBody(w, err)
		return
	}

	user, err := h.userService.Update(r.Context(), GetUserFromContext(r.Context()), id, patch)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// Authorize sets the authorized flag
func (h *UserHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, MsgInvalidUserID)
		return
	}

	var req authorizeRequest
	if err := parseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	if req.Authorized == nil {
		writeMessage(w, http.StatusBadRequest, MsgInvalidRequestBody)
		return
	}

	user, err := h.userService.SetAuthorized(r.Context(), GetUserFromContext(r.Context()), id, *req.Authorized)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// Delete removes a user
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, MsgInvalidUserID)
		return
	}

	if err := h.userService.Delete(r.Context(), GetUserFromContext(r.Context()), id); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeMessage(w, http.StatusOK, service.MsgUserDeleted)
}
