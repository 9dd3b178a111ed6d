package handler

import (
	"net/http"

	"github.com/bcnelson/homesync/internal/domain"
)

// Loop is the view of the scheduler the status endpoints need.
type Loop interface {
	GroupID() string
	LastResult() (domain.CycleResult, bool)
	Trigger() bool
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	GroupID   string              `json:"group_id"`
	LastCycle *domain.CycleResult `json:"last_cycle,omitempty"`
}

// TriggerResponse is returned by POST /reconcile.
type TriggerResponse struct {
	Queued bool `json:"queued"`
}

// StatusHandler handles the loop status endpoints.
type StatusHandler struct {
	loop Loop
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(loop Loop) *StatusHandler {
	return &StatusHandler{loop: loop}
}

// Get returns the most recent cycle.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{GroupID: h.loop.GroupID()}
	if last, ok := h.loop.LastResult(); ok {
		resp.LastCycle = &last
	}
	respondJSON(w, http.StatusOK, resp)
}

// Trigger asks the loop to start its next cycle now. The cycle runs on the
// loop's goroutine; the response does not wait for it.
func (h *StatusHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusAccepted, TriggerResponse{Queued: h.loop.Trigger()})
}

// NotFound answers unknown routes.
func (h *StatusHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "not found")
}
