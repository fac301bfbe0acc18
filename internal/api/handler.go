package api

import (
	"checkin-backend/internal/checkin"
	"checkin-backend/internal/session"
	"checkin-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	sessions *session.Registry
	workers  *checkin.WorkerPool
}

// NewHandler creates a new API handler. Any dependency may be nil when the
// routes using it are not mounted.
func NewHandler(s store.Store, sessions *session.Registry, workers *checkin.WorkerPool) *Handler {
	return &Handler{
		store:    s,
		sessions: sessions,
		workers:  workers,
	}
}
