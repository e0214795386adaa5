package graph

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"sync"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/security"
	"admindash/internal/service"
)

const maxBodyBytes = 1 << 20

type contextKey struct{}

// requestState carries the caller and any session change made by a mutation
type requestState struct {
	user      *models.User
	sessionID string

	mu      sync.Mutex
	started *models.Session
	ended   bool
}

func (s *requestState) startSession(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = sess
	s.ended = false
}

func (s *requestState) endSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = nil
	s.ended = true
}

func stateFrom(ctx context.Context) *requestState {
	st, ok := ctx.Value(contextKey{}).(*requestState)
	if !ok {
		return &requestState{}
	}
	return st
}

func actorFrom(ctx context.Context) *models.User {
	return stateFrom(ctx).user
}

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

type cookieCodec interface {
	Read(r *http.Request) (string, bool)
	Write(w http.ResponseWriter, r *http.Request, sessionID string, expiresAt time.Time) error
	Clear(w http.ResponseWriter, r *http.Request)
}

// Handler serves GraphQL over HTTP POST
type Handler struct {
	schema     *graphql.Schema
	auth       *service.AuthService
	cookies    cookieCodec
	cookieName string
	log        logging.Logger
}

// NewHandler parses the schema and binds it to the services
func NewHandler(auth *service.AuthService, users *service.UserService, cookies *security.SessionCookies, log logging.Logger) (*Handler, error) {
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("component", "graphql")

	schema, err := graphql.ParseSchema(Schema, &Resolver{auth: auth, users: users, log: log}, graphql.MaxDepth(8))
	if err != nil {
		return nil, err
	}
	return &Handler{schema: schema, auth: auth, cookies: cookies, cookieName: cookies.Name, log: log}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st := h.authenticate(r)
	ctx := context.WithValue(r.Context(), contextKey{}, st)

	resp := h.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)

	st.mu.Lock()
	started, ended := st.started, st.ended
	st.mu.Unlock()
	switch {
	case started != nil:
		if err := h.cookies.Write(w, r, started.ID, started.ExpiresAt); err != nil {
			h.log.Error(ctx, "failed to write session cookie", "error", err)
			if lerr := h.auth.Logout(context.WithoutCancel(ctx), started.ID); lerr != nil {
				h.log.Error(ctx, "failed to delete session after cookie error", "error", lerr)
			}
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	case ended:
		h.cookies.Clear(w, r)
	}

	writeJSON(w, http.StatusOK, resp)
}

// authenticate resolves the session cookie. Requests without a usable
// session run anonymously and have a stale cookie cleared.
func (h *Handler) authenticate(r *http.Request) *requestState {
	st := &requestState{}

	sessionID, ok := h.cookies.Read(r)
	if !ok {
		if _, err := r.Cookie(h.cookieName); err == nil {
			st.ended = true
		}
		return st
	}

	st.sessionID = sessionID

	user, err := h.auth.Authenticate(r.Context(), sessionID)
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		st.ended = true
	case err != nil:
		h.log.Error(r.Context(), "failed to resolve session", "error", err)
	default:
		st.user = user
	}
	return st
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
