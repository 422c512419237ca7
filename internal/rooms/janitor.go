package rooms

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"roadnik/internal/metrics"
	"roadnik/internal/model"
	"roadnik/internal/store"
)

// Notifier receives retention events so viewers can be told their cached
// paths are stale. Implemented by the live channel; a no-op in tests.
type Notifier interface {
	PathWiped(roomID, appID, username string)
	PathTruncated(roomID, appID, username string, pathPoints int)
	RoomPointsUpdated(roomID string, unixMs int64)
}

// NopNotifier discards retention events.
type NopNotifier struct{}

func (NopNotifier) PathWiped(string, string, string)          {}
func (NopNotifier) PathTruncated(string, string, string, int) {}
func (NopNotifier) RoomPointsUpdated(string, int64)           {}

type wipeJob struct {
	roomID   string
	appID    string
	username string
	upToMs   int64
}

type truncateJob struct {
	roomID   string
	appID    string
	username string
}

const queueCap = 256

// Janitor runs every deletion path off the request goroutines: queued wipes,
// queued per-path truncations, and the periodic room-wide sweep. One worker
// drains each queue; a full queue rejects the job and logs rather than block
// the ingest path.
type Janitor struct {
	store    store.DocumentStore
	reg      *Registry
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	wipes     chan wipeJob
	truncates chan truncateJob

	sweepInterval     time.Duration
	sweepInitialDelay time.Duration
}

func NewJanitor(s store.DocumentStore, reg *Registry, n Notifier, log zerolog.Logger) *Janitor {
	if n == nil {
		n = NopNotifier{}
	}
	return &Janitor{
		store:             s,
		reg:               reg,
		notifier:          n,
		log:               log.With().Str("component", "janitor").Logger(),
		now:               time.Now,
		wipes:             make(chan wipeJob, queueCap),
		truncates:         make(chan truncateJob, queueCap),
		sweepInterval:     reg.cfg.SweepInterval,
		sweepInitialDelay: reg.cfg.SweepInitialDelay,
	}
}

// Start launches the queue workers and the sweep loop. All of them exit when
// ctx is canceled.
func (j *Janitor) Start(ctx context.Context) {
	go j.wipeWorker(ctx)
	go j.truncateWorker(ctx)
	go j.sweepLoop(ctx)
}

// EnqueueWipe schedules deletion of every point for (room, app) with
// timestamp <= upToMs. Never blocks.
func (j *Janitor) EnqueueWipe(roomID, appID, username string, upToMs int64) {
	select {
	case j.wipes <- wipeJob{roomID: roomID, appID: appID, username: username, upToMs: upToMs}:
	default:
		metrics.JanitorRejected.WithLabelValues("wipe").Inc()
		j.log.Warn().Str("room", roomID).Str("app", appID).Msg("wipe queue full, job dropped")
	}
}

// EnqueueTruncate schedules trimming of one device's path down to its
// configured MaxPointsPerPath. Never blocks.
func (j *Janitor) EnqueueTruncate(roomID, appID, username string) {
	select {
	case j.truncates <- truncateJob{roomID: roomID, appID: appID, username: username}:
	default:
		metrics.JanitorRejected.WithLabelValues("truncate").Inc()
		j.log.Warn().Str("room", roomID).Str("app", appID).Msg("truncate queue full, job dropped")
	}
}

func (j *Janitor) wipeWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-j.wipes:
			if err := j.runWipe(ctx, job); err != nil {
				j.log.Error().Err(err).Str("room", job.roomID).Str("app", job.appID).Msg("wipe failed")
			}
		}
	}
}

func (j *Janitor) truncateWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-j.truncates:
			if err := j.runTruncate(ctx, job); err != nil {
				j.log.Error().Err(err).Str("room", job.roomID).Str("app", job.appID).Msg("truncate failed")
			}
		}
	}
}

func (j *Janitor) sweepLoop(ctx context.Context) {
	// Initial delay avoids a delete storm right at process start.
	select {
	case <-ctx.Done():
		return
	case <-time.After(j.sweepInitialDelay):
	}
	ticker := time.NewTicker(j.sweepInterval)
	defer ticker.Stop()
	for {
		j.RunSweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runWipe deletes the old track of one device. The device's points are
// interleaved with other devices' points under the same room prefix, so the
// value has to be decoded to attribute each point.
func (j *Janitor) runWipe(ctx context.Context, job wipeJob) error {
	kvs, err := j.store.ListByPrefix(ctx, store.PointPrefix(job.roomID), "", 0)
	if err != nil {
		return err
	}
	deleted := 0
	for _, kv := range kvs {
		ts, err := store.PointTS(kv.Key)
		if err != nil || ts > job.upToMs {
			continue
		}
		var p model.PathPoint
		if err := json.Unmarshal(kv.Value, &p); err != nil || p.AppID != job.appID {
			continue
		}
		if err := j.store.Delete(ctx, kv.Key); err != nil {
			j.log.Error().Err(err).Str("key", kv.Key).Msg("wipe: delete failed")
			continue
		}
		deleted++
	}
	metrics.JanitorDeletions.WithLabelValues("wipe").Add(float64(deleted))
	j.log.Info().Str("room", job.roomID).Str("app", job.appID).Int("deleted", deleted).Msg("path wiped")
	j.notifier.PathWiped(job.roomID, job.appID, job.username)
	return nil
}

func (j *Janitor) runTruncate(ctx context.Context, job truncateJob) error {
	limits, err := j.reg.Limits(ctx, job.roomID)
	if err != nil {
		return err
	}
	if limits.MaxPointsPerPath <= 0 {
		return nil
	}
	kvs, err := j.store.ListByPrefix(ctx, store.PointPrefix(job.roomID), "", 0)
	if err != nil {
		return err
	}
	var keys []string
	for _, kv := range kvs {
		var p model.PathPoint
		if err := json.Unmarshal(kv.Value, &p); err != nil || p.AppID != job.appID {
			continue
		}
		keys = append(keys, kv.Key)
	}
	excess := len(keys) - limits.MaxPointsPerPath
	if excess <= 0 {
		return nil
	}
	deleted := 0
	for _, key := range keys[:excess] { // ascending scan: oldest first
		if err := j.store.Delete(ctx, key); err != nil {
			j.log.Error().Err(err).Str("key", key).Msg("truncate: delete failed")
			continue
		}
		deleted++
	}
	metrics.JanitorDeletions.WithLabelValues("truncate").Add(float64(deleted))
	j.log.Info().Str("room", job.roomID).Str("app", job.appID).Int("deleted", deleted).Msg("path truncated")
	j.notifier.PathTruncated(job.roomID, job.appID, job.username, limits.MaxPointsPerPath)
	return nil
}

// RunSweepOnce enforces each room's aggregate point cap across all devices,
// oldest points deleted first. Exported so tests can drive it directly.
func (j *Janitor) RunSweepOnce(ctx context.Context) {
	roomIDs, err := j.listRoomsWithTracks(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("sweep: room enumeration failed")
		return
	}
	for _, roomID := range roomIDs {
		if ctx.Err() != nil {
			return
		}
		if err := j.sweepRoom(ctx, roomID); err != nil {
			j.log.Error().Err(err).Str("room", roomID).Msg("sweep: room failed")
		}
	}
}

// listRoomsWithTracks enumerates every room that has ever stored a point.
// A point is only written after its track record, so the track prefix is a
// complete (and much smaller) index of active rooms.
func (j *Janitor) listRoomsWithTracks(ctx context.Context) ([]string, error) {
	kvs, err := j.store.ListByPrefix(ctx, store.TrackPrefixAll(), "", 0)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, kv := range kvs {
		roomID := trackRoomID(kv.Key)
		if roomID != "" && !seen[roomID] {
			seen[roomID] = true
			out = append(out, roomID)
		}
	}
	return out, nil
}

func (j *Janitor) sweepRoom(ctx context.Context, roomID string) error {
	limits, err := j.reg.Limits(ctx, roomID)
	if err != nil {
		return err
	}
	kvs, err := j.store.ListByPrefix(ctx, store.PointPrefix(roomID), "", 0)
	if err != nil {
		return err
	}
	// The scan is ascending by timestamp, so the points to delete are always
	// a prefix: first everything past the age cutoff, then whatever excess
	// over the aggregate cap remains.
	expired := 0
	if limits.MaxAge > 0 {
		ageCutoff := j.now().Add(-limits.MaxAge).UnixMilli()
		for _, kv := range kvs {
			ts, err := store.PointTS(kv.Key)
			if err != nil || ts > ageCutoff {
				break
			}
			expired++
		}
	}
	doom := expired
	if excess := len(kvs) - expired - limits.MaxPathPoints; excess > 0 {
		doom += excess
	}
	if doom == 0 {
		return nil
	}
	deleted := 0
	for _, kv := range kvs[:doom] {
		if err := j.store.Delete(ctx, kv.Key); err != nil {
			j.log.Error().Err(err).Str("key", kv.Key).Msg("sweep: delete failed")
			continue
		}
		deleted++
	}
	metrics.JanitorDeletions.WithLabelValues("sweep").Add(float64(deleted))
	if deleted > 0 {
		j.log.Info().Str("room", roomID).Int("deleted", deleted).Int("cap", limits.MaxPathPoints).Msg("room swept")
		j.notifier.RoomPointsUpdated(roomID, j.now().UnixMilli())
	}
	return nil
}

// trackRoomID extracts the room id from a "track:{room}:{app}" key.
func trackRoomID(key string) string {
	rest := strings.TrimPrefix(key, store.TrackPrefixAll())
	if i := strings.IndexByte(rest, ':'); i > 0 {
		return rest[:i]
	}
	return ""
}

func unmarshalKV(kv store.KV, out any) error {
	return json.Unmarshal(kv.Value, out)
}
