// Package api is the HTTP/WebSocket surface: point ingest, the paged read
// endpoints, the live viewer channel, and the admin room CRUD.
package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roadnik/internal/auth"
	"roadnik/internal/config"
	"roadnik/internal/push"
	"roadnik/internal/ratelimit"
	"roadnik/internal/rooms"
	"roadnik/internal/store"
)

// Server bundles the collaborators behind the HTTP surface.
type Server struct {
	Cfg     config.Config
	Store   store.DocumentStore
	Rooms   *rooms.Registry
	Janitor *rooms.Janitor
	Live    *LiveChannel
	Notify  RoomNotifier
	Limiter *ratelimit.Limiter
	Push    push.Sender
	Auth    *auth.Verifier
	Log     zerolog.Logger

	now func() time.Time

	// Per-room monotonic timestamp issue. Two points landing in the same
	// millisecond would otherwise collide on the storage key.
	stampMu sync.Mutex
	stamps  map[string]int64
}

// NewServer wires the store, registry, janitor, live channel, notifier, and
// push sender from configuration. Backend selection: DatabaseURL picks
// Postgres, DataDir picks Badger, otherwise everything is in memory.
func NewServer(cfg config.Config, log zerolog.Logger) (*Server, error) {
	var (
		st  store.DocumentStore
		err error
	)
	switch {
	case cfg.DatabaseURL != "":
		pg, perr := store.NewPostgres(cfg.DatabaseURL)
		if perr != nil {
			return nil, perr
		}
		if err = pg.Migrate(context.Background()); err != nil {
			return nil, err
		}
		st = pg
	case cfg.DataDir != "":
		st, err = store.NewBadger(cfg.DataDir)
		if err != nil {
			return nil, err
		}
	default:
		st = store.NewMemory()
	}

	reg := rooms.NewRegistry(st, cfg)
	live := NewLiveChannel(cfg.WsIdleTimeout, log)

	var notify RoomNotifier = LocalNotifier{Live: live}
	if cfg.RedisURL != "" {
		rn, rerr := NewRedisNotifier(cfg.RedisURL, live, log)
		if rerr != nil {
			return nil, rerr
		}
		notify = rn
	}

	var sender push.Sender = push.Nop{}
	if cfg.PushURL != "" {
		sender = push.NewHTTPSender(cfg.PushURL, log)
	}

	s := &Server{
		Cfg:     cfg,
		Store:   st,
		Rooms:   reg,
		Live:    live,
		Notify:  notify,
		Limiter: ratelimit.New(),
		Push:    sender,
		Auth:    auth.NewVerifier(cfg.AdminToken),
		Log:     log,
		now:     time.Now,
		stamps:  map[string]int64{},
	}
	s.Janitor = rooms.NewJanitor(st, reg, liveNotifier{s: s}, log)
	return s, nil
}

// Start launches the background workers.
func (s *Server) Start(ctx context.Context) {
	s.Janitor.Start(ctx)
	if rn, ok := s.Notify.(*RedisNotifier); ok {
		rn.Start(ctx)
	}
}

// Close shuts down viewer connections and releases the store.
func (s *Server) Close() error {
	s.Live.Shutdown()
	if rn, ok := s.Notify.(*RedisNotifier); ok {
		_ = rn.Close()
	}
	return s.Store.Close()
}

// Routes returns the route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/store-path-point", s.StorePathPointHandler)
	mux.HandleFunc("POST /api/v1/start-new-path", s.StartNewPathHandler)
	mux.HandleFunc("GET /api/v1/get", s.GetPointsHandler)
	mux.HandleFunc("GET /api/v1/is-free-room-id", s.IsFreeRoomIDHandler)
	mux.HandleFunc("GET /api/v1/ws", s.WsHandler)
	mux.HandleFunc("POST /api/v1/register-room", s.RegisterRoomHandler)
	mux.HandleFunc("POST /api/v1/unregister-room", s.UnregisterRoomHandler)
	mux.HandleFunc("GET /api/v1/list-registered-rooms", s.ListRegisteredRoomsHandler)
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	return mux
}

// stamp issues the storage timestamp for roomID: wall clock, bumped forward
// when the clock has not advanced past the room's previous point.
func (s *Server) stamp(roomID string) int64 {
	now := s.now().UnixMilli()
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	if last, ok := s.stamps[roomID]; ok && now <= last {
		now = last + 1
	}
	s.stamps[roomID] = now
	return now
}

// clientIP resolves the caller identity for rate limiting. The first
// X-Forwarded-For entry wins when a proxy is in front.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// liveNotifier forwards retention events to the room notifier as viewer frames.
type liveNotifier struct{ s *Server }

func (n liveNotifier) PathWiped(roomID, appID, username string) {
	n.s.Notify.Publish(roomID, Envelope{
		Type:    MsgPathWiped,
		Payload: PathAlteredPayload{AppID: appID, Username: username},
	})
}

func (n liveNotifier) PathTruncated(roomID, appID, username string, pathPoints int) {
	n.s.Notify.Publish(roomID, Envelope{
		Type:    MsgPathTruncated,
		Payload: PathAlteredPayload{AppID: appID, Username: username, PathPoints: pathPoints},
	})
}

func (n liveNotifier) RoomPointsUpdated(roomID string, unixMs int64) {
	n.s.Notify.Publish(roomID, Envelope{
		Type:    MsgRoomPointsUpdated,
		Payload: TimestampPayload{Timestamp: unixMs},
	})
}
