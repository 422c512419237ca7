package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"roadnik/internal/metrics"
	"roadnik/internal/model"
	"roadnik/internal/rooms"
	"roadnik/internal/store"
)

// StorePathPointHandler ingests one GPS sample.
//
// Order matters: validation, then the anonymous-room gate, then rate
// limiting, then track-session bookkeeping, then the write. Only a failed
// write produces a 5xx; everything after admission is best-effort.
func (s *Server) StorePathPointHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req model.StorePathPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
		return
	}
	if prob := s.validateIngest(req.RoomID, req.Username, req.AppID); prob != "" {
		writeProblem(w, http.StatusBadRequest, "invalid request", prob, r.URL.Path)
		return
	}
	limits, err := s.Rooms.Limits(ctx, req.RoomID)
	if err != nil {
		s.Log.Error().Err(err).Str("room", req.RoomID).Msg("limits lookup failed")
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	if !limits.Registered && !s.Cfg.AllowAnonymous {
		writeProblem(w, http.StatusForbidden, "anonymous rooms are disabled",
			"register the room before storing points", r.URL.Path)
		return
	}
	ip := clientIP(r)
	if !s.Limiter.IntervalOk("store", ip, limits.MinInterval) {
		metrics.RateLimited.WithLabelValues("store").Inc()
		writeProblem(w, http.StatusTooManyRequests, "too many points",
			"points are limited to one per interval for this room", r.URL.Path)
		return
	}

	// Stamps are strictly increasing per room, so ts-1 covers every
	// previously stored point and spares this one.
	ts := s.stamp(req.RoomID)
	s.bumpTrackSession(ctx, req.RoomID, req.AppID, req.Username, req.SessionID, req.WipeOldPath, ts-1)

	if err := s.Store.Write(ctx, store.PointKey(req.RoomID, ts), req.Point()); err != nil {
		s.Log.Error().Err(err).Str("room", req.RoomID).Msg("point write failed")
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	metrics.PointsStored.WithLabelValues(roomKind(limits)).Inc()

	s.Notify.Publish(req.RoomID, Envelope{Type: MsgDataUpdated, Payload: TimestampPayload{Timestamp: ts}})
	if limits.MaxPointsPerPath > 0 {
		s.Janitor.EnqueueTruncate(req.RoomID, req.AppID, req.Username)
	}
	writeJSON(w, http.StatusOK, map[string]any{"unixTimeMs": ts})
}

// StartNewPathHandler forces a fresh logical track for a device, without
// waiting for the next stored point to carry a new session id.
func (s *Server) StartNewPathHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req model.StartNewPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
		return
	}
	if prob := s.validateIngest(req.RoomID, req.Username, req.AppID); prob != "" {
		writeProblem(w, http.StatusBadRequest, "invalid request", prob, r.URL.Path)
		return
	}
	limits, err := s.Rooms.Limits(ctx, req.RoomID)
	if err != nil {
		s.Log.Error().Err(err).Str("room", req.RoomID).Msg("limits lookup failed")
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	if !limits.Registered && !s.Cfg.AllowAnonymous {
		writeProblem(w, http.StatusForbidden, "anonymous rooms are disabled",
			"register the room before storing points", r.URL.Path)
		return
	}
	if err := s.Store.Write(ctx, store.TrackKey(req.RoomID, req.AppID), model.TrackSession{SessionID: req.SessionID}); err != nil {
		s.Log.Error().Err(err).Str("room", req.RoomID).Msg("track write failed")
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	if req.WipeOldPath {
		// Consuming a stamp puts the cutoff after every stored point and
		// before any point stored later.
		s.Janitor.EnqueueWipe(req.RoomID, req.AppID, req.Username, s.stamp(req.RoomID))
	}
	s.sendNewTrackPush(req.RoomID, req.Username)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) validateIngest(roomID, username, appID string) string {
	if err := validateRoomID(roomID); err != nil {
		return err.Error()
	}
	if err := validateUsername(username); err != nil {
		return err.Error()
	}
	if appID == "" {
		return "appId required"
	}
	return ""
}

// bumpTrackSession detects a session id change for (room, app) and reacts:
// record the new session, queue the optional wipe of the old track, announce
// the new track. The read-then-write is deliberately unguarded; two devices
// racing on the same app id settle on the last writer and at worst produce an
// extra announcement. None of this can fail the ingest request.
func (s *Server) bumpTrackSession(ctx context.Context, roomID, appID, username string, sessionID int32, wipe bool, upToMs int64) {
	var sess model.TrackSession
	err := s.Store.Read(ctx, store.TrackKey(roomID, appID), &sess)
	isFirst := errors.Is(err, store.ErrNotFound)
	if err != nil && !isFirst {
		s.Log.Warn().Err(err).Str("room", roomID).Str("app", appID).Msg("track read failed")
		return
	}
	if !isFirst && sess.SessionID == sessionID {
		return
	}
	if err := s.Store.Write(ctx, store.TrackKey(roomID, appID), model.TrackSession{SessionID: sessionID}); err != nil {
		// Next point re-detects the change.
		s.Log.Warn().Err(err).Str("room", roomID).Str("app", appID).Msg("track write failed")
		return
	}
	if isFirst {
		return
	}
	if wipe {
		s.Janitor.EnqueueWipe(roomID, appID, username, upToMs)
	}
	s.sendNewTrackPush(roomID, username)
}

// sendNewTrackPush hands the announcement to the relay off the request
// goroutine. The room id doubles as the push topic.
func (s *Server) sendNewTrackPush(roomID, username string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Push.SendPush(ctx, roomID, username+" started a new track")
	}()
}

func roomKind(l rooms.Limits) string {
	if l.Registered {
		return "registered"
	}
	return "anonymous"
}
