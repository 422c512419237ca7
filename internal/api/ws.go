package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"roadnik/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Viewers connect from arbitrary origins (native apps, shared links).
	CheckOrigin: func(*http.Request) bool { return true },
}

// WsHandler upgrades a viewer connection for one room. The first frame on the
// socket is always the hello, carrying the server clock, the room's point cap,
// and the oldest stored timestamp so the viewer can size its backfill.
func (s *Server) WsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := r.URL.Query().Get("roomId")
	if err := validateRoomID(roomID); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request", err.Error(), r.URL.Path)
		return
	}
	limits, err := s.Rooms.Limits(ctx, roomID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "storage error", "", r.URL.Path)
		return
	}
	var oldest int64
	if kvs, err := s.Store.ListByPrefix(ctx, store.PointPrefix(roomID), "", 1); err == nil && len(kvs) == 1 {
		if ts, err := store.PointTS(kvs[0].Key); err == nil {
			oldest = ts
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.Log.Debug().Err(err).Str("room", roomID).Msg("ws upgrade failed")
		return
	}
	s.Live.Serve(ctx, conn, roomID, HelloPayload{
		UnixTimeMs:           s.now().UnixMilli(),
		MaxPathPointsPerRoom: limits.MaxPathPoints,
		OldestPointUnixMs:    oldest,
	})
}
