// internal/api/handlers.go
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelhq/kestrel/internal/model"
)

const defaultLimit = 50

// alertUpdate is the PUT /alerts/{id} request body.
type alertUpdate struct {
	Status      string `json:"status"`
	ActionTaken string `json:"action_taken,omitempty"`
}

// message is the generic response envelope for actions.
type message struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Store().Stats()
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.engine.Store().QueryEvents(limitParam(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.engine.Store().GetEvent(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidStatus(status) {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	alerts, err := s.engine.Store().QueryAlerts(status, limitParam(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	var upd alertUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !model.ValidStatus(upd.Status) {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	err := s.engine.Store().UpdateAlertStatus(id, upd.Status, upd.ActionTaken)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, message{
		Message: fmt.Sprintf("Alert updated to %q", upd.Status),
		Status:  "success",
	})
}

func (s *Server) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.engine.Store().RecentMetrics(limitParam(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	if metrics == nil {
		metrics = []model.SystemMetric{}
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	events, err := s.engine.RunSingleScan(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, message{
		Message: fmt.Sprintf("Scan complete. Found %d events.", len(events)),
		Status:  "success",
	})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("request failed")
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
