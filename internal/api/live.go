package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roadnik/internal/metrics"
)

// WebSocket message kinds pushed to viewers.
const (
	MsgHello             = "ws-msg-hello"
	MsgDataUpdated       = "ws-msg-data-updated"
	MsgRoomPointsUpdated = "ws-msg-room-points-updated"
	MsgPathWiped         = "ws-msg-path-wiped"
	MsgPathTruncated     = "ws-msg-path-truncated"
)

// Envelope is the wire frame for every server-to-viewer message.
type Envelope struct {
	Type    string `json:"Type"`
	Payload any    `json:"Payload,omitempty"`
}

// HelloPayload is sent exactly once, before any other frame on a connection.
type HelloPayload struct {
	UnixTimeMs           int64 `json:"UnixTimeMs"`
	MaxPathPointsPerRoom int   `json:"MaxPathPointsPerRoom"`
	OldestPointUnixMs    int64 `json:"OldestPointUnixMs"`
}

// TimestampPayload carries the server time of a data change.
type TimestampPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// PathAlteredPayload describes a wipe or truncation of one device's path.
type PathAlteredPayload struct {
	AppID      string `json:"AppId"`
	Username   string `json:"Username"`
	PathPoints int    `json:"PathPoints,omitempty"`
}

const (
	sendQueueCap = 64
	writeWait    = 10 * time.Second
)

type wsSession struct {
	id     int64
	roomID string
	conn   *websocket.Conn
	send   chan Envelope
	once   sync.Once
	done   chan struct{}
}

func (s *wsSession) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// LiveChannel owns every open viewer connection. Each session gets a buffered
// send queue drained by its own write pump; a slow viewer that fills its queue
// is disconnected rather than allowed to stall fan-out to the rest of the room.
type LiveChannel struct {
	idleTimeout time.Duration
	log         zerolog.Logger

	nextID   atomic.Int64
	sessions sync.Map // int64 -> *wsSession
}

func NewLiveChannel(idleTimeout time.Duration, log zerolog.Logger) *LiveChannel {
	return &LiveChannel{
		idleTimeout: idleTimeout,
		log:         log.With().Str("component", "live").Logger(),
	}
}

// Serve runs a viewer connection to completion: hello frame first, then frames
// from the send queue until the viewer goes away, the idle deadline passes, or
// ctx is canceled. The session is always deregistered on return.
func (lc *LiveChannel) Serve(ctx context.Context, conn *websocket.Conn, roomID string, hello HelloPayload) {
	s := &wsSession{
		id:     lc.nextID.Add(1),
		roomID: roomID,
		conn:   conn,
		send:   make(chan Envelope, sendQueueCap),
		done:   make(chan struct{}),
	}
	// The hello is queued before the session becomes visible to fan-out, so
	// no other frame can precede it.
	s.send <- Envelope{Type: MsgHello, Payload: hello}
	lc.sessions.Store(s.id, s)
	metrics.WsSessions.Inc()
	lc.log.Debug().Int64("session", s.id).Str("room", roomID).Msg("viewer connected")

	defer func() {
		lc.sessions.Delete(s.id)
		s.close()
		metrics.WsSessions.Dec()
		lc.log.Debug().Int64("session", s.id).Str("room", roomID).Msg("viewer disconnected")
	}()

	go lc.writePump(s)
	go func() {
		select {
		case <-ctx.Done():
			s.close()
		case <-s.done:
		}
	}()
	lc.readLoop(s)
}

// readLoop consumes viewer frames purely to roll the idle deadline; the
// protocol has no client-to-server messages.
func (lc *LiveChannel) readLoop(s *wsSession) {
	s.conn.SetReadLimit(4 << 10)
	_ = s.conn.SetReadDeadline(time.Now().Add(lc.idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(lc.idleTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(lc.idleTimeout))
	}
}

func (lc *LiveChannel) writePump(s *wsSession) {
	pingInterval := lc.idleTimeout / 2
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.close()
	for {
		select {
		case <-s.done:
			return
		case env := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				metrics.WsMessages.WithLabelValues(env.Type, "error").Inc()
				return
			}
			metrics.WsMessages.WithLabelValues(env.Type, "ok").Inc()
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// NotifyRoom queues env on every session watching roomID. A full queue drops
// the viewer; one stuck socket must not block the rest of the room.
func (lc *LiveChannel) NotifyRoom(roomID string, env Envelope) {
	lc.sessions.Range(func(_, v any) bool {
		s := v.(*wsSession)
		if s.roomID != roomID {
			return true
		}
		select {
		case s.send <- env:
		default:
			metrics.WsMessages.WithLabelValues(env.Type, "dropped").Inc()
			lc.log.Warn().Int64("session", s.id).Str("room", roomID).Msg("viewer too slow, dropping connection")
			s.close()
		}
		return true
	})
}

// Broadcast queues env on every open session.
func (lc *LiveChannel) Broadcast(env Envelope) {
	lc.sessions.Range(func(_, v any) bool {
		s := v.(*wsSession)
		select {
		case s.send <- env:
		default:
			metrics.WsMessages.WithLabelValues(env.Type, "dropped").Inc()
			s.close()
		}
		return true
	})
}

// SessionCount reports the number of open viewer sessions.
func (lc *LiveChannel) SessionCount() int {
	n := 0
	lc.sessions.Range(func(any, any) bool { n++; return true })
	return n
}

// Shutdown closes every open session.
func (lc *LiveChannel) Shutdown() {
	lc.sessions.Range(func(_, v any) bool {
		v.(*wsSession).close()
		return true
	})
}
