package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"roadnik/internal/metrics"
	"roadnik/internal/model"
	"roadnik/internal/store"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// GetPointsHandler serves a page of a room's points, oldest first, strictly
// after the "since" timestamp. Pull clients use it to backfill after a
// data-updated frame.
func (s *Server) GetPointsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := r.URL.Query().Get("roomId")
	if err := validateRoomID(roomID); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request", err.Error(), r.URL.Path)
		return
	}
	if !s.Limiter.TokenOk("get", clientIP(r), s.Cfg.GetCapacityPerMinute, time.Minute) {
		metrics.RateLimited.WithLabelValues("get").Inc()
		writeProblem(w, http.StatusTooManyRequests, "too many requests", "", r.URL.Path)
		return
	}
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	limit := defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxPageSize)
		}
	}

	fromKey := ""
	if since > 0 {
		// The scan starts strictly after fromKey, which matches "points newer
		// than since".
		fromKey = store.PointKey(roomID, since)
	}
	kvs, err := s.Store.ListByPrefix(ctx, store.PointPrefix(roomID), fromKey, limit+1)
	if err != nil {
		s.Log.Error().Err(err).Str("room", roomID).Msg("point scan failed")
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	more := len(kvs) > limit
	if more {
		kvs = kvs[:limit]
	}

	page := model.PointsPage{Points: make([]model.TimedPoint, 0, len(kvs)), LastUpdateMs: since, MoreAvailable: more}
	for _, kv := range kvs {
		ts, err := store.PointTS(kv.Key)
		if err != nil {
			continue
		}
		var p model.PathPoint
		if err := json.Unmarshal(kv.Value, &p); err != nil {
			continue
		}
		page.Points = append(page.Points, model.TimedPoint{UnixTimeMs: ts, PathPoint: p})
		page.LastUpdateMs = ts
	}
	if limits, err := s.Rooms.Limits(ctx, roomID); err == nil {
		page.MaxPathPoints = limits.MaxPathPoints
	}
	writeJSON(w, http.StatusOK, page)
}

// IsFreeRoomIDHandler reports whether a room id is unused: no registration
// record and no stored tracks. Probing is token-bucket limited to keep it from
// being used to enumerate rooms.
func (s *Server) IsFreeRoomIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := r.URL.Query().Get("roomId")
	if err := validateRoomID(roomID); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request", err.Error(), r.URL.Path)
		return
	}
	if !s.Limiter.TokenOk("room-probe", clientIP(r), s.Cfg.RoomIDProbesPerMinute, time.Minute) {
		metrics.RateLimited.WithLabelValues("room-probe").Inc()
		writeProblem(w, http.StatusTooManyRequests, "too many requests", "", r.URL.Path)
		return
	}
	info, err := s.Rooms.Get(ctx, roomID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	free := info == nil
	if free {
		kvs, err := s.Store.ListByPrefix(ctx, store.TrackPrefix(roomID), "", 1)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
			return
		}
		free = len(kvs) == 0
	}
	writeJSON(w, http.StatusOK, map[string]any{"roomId": roomID, "isFree": free})
}
