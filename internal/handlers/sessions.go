package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"soundwatch/internal/logger"
	"soundwatch/internal/session"
)

// SessionController starts and stops monitoring sessions
type SessionController interface {
	StartSession() (session.Status, error)
	StopSession() (session.Status, error)
	CurrentSession() (session.Status, error)
}

// SessionHandler exposes session lifecycle over HTTP
type SessionHandler struct {
	ctrl SessionController
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(ctrl SessionController) *SessionHandler {
	return &SessionHandler{ctrl: ctrl}
}

// Register mounts the session routes on r
func (h *SessionHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/sessions", h.Start).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/sessions/current", h.Current).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/sessions/current", h.Stop).Methods(http.MethodDelete)
}

// Start begins a new session. 409 if one is already running.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctrl.StartSession()
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, st)
	case errors.Is(err, session.ErrSessionRunning):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log := logger.WithComponent("handlers")
		log.Error().Err(err).Msg("start session failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// Stop ends the running session and returns its final status
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctrl.StopSession()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// Current reports the running session, or the last one if none is running
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctrl.CurrentSession()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
