package api

import (
	"encoding/json"
	"net/http"

	"roadnik/internal/model"
)

// Admin endpoints: thin CRUD over room registration records, bearer-token
// gated.

func (s *Server) RegisterRoomHandler(w http.ResponseWriter, r *http.Request) {
	if !s.Auth.IsAdmin(r) {
		writeProblem(w, http.StatusForbidden, "admin required", "", r.URL.Path)
		return
	}
	var info model.RoomInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
		return
	}
	if err := validateRoomID(info.RoomID); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request", err.Error(), r.URL.Path)
		return
	}
	if err := s.Rooms.Register(r.Context(), info); err != nil {
		s.Log.Error().Err(err).Str("room", info.RoomID).Msg("room registration failed")
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	s.Log.Info().Str("room", info.RoomID).Msg("room registered")
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) UnregisterRoomHandler(w http.ResponseWriter, r *http.Request) {
	if !s.Auth.IsAdmin(r) {
		writeProblem(w, http.StatusForbidden, "admin required", "", r.URL.Path)
		return
	}
	var req struct {
		RoomID string `json:"roomId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
		return
	}
	if err := validateRoomID(req.RoomID); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request", err.Error(), r.URL.Path)
		return
	}
	if err := s.Rooms.Unregister(r.Context(), req.RoomID); err != nil {
		s.Log.Error().Err(err).Str("room", req.RoomID).Msg("room unregister failed")
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	s.Log.Info().Str("room", req.RoomID).Msg("room unregistered")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) ListRegisteredRoomsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.Auth.IsAdmin(r) {
		writeProblem(w, http.StatusForbidden, "admin required", "", r.URL.Path)
		return
	}
	rooms, err := s.Rooms.List(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}
