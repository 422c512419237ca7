package api

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RoomNotifier fans a frame out to every viewer of a room. The local
// implementation delivers straight to the in-process live channel; the Redis
// one additionally bridges between server instances.
type RoomNotifier interface {
	Publish(roomID string, env Envelope)
}

// LocalNotifier delivers to the in-process live channel only.
type LocalNotifier struct {
	Live *LiveChannel
}

func (n LocalNotifier) Publish(roomID string, env Envelope) {
	n.Live.NotifyRoom(roomID, env)
}

const redisChannelPrefix = "roadnik:room:"

type redisFrame struct {
	RoomID   string   `json:"roomId"`
	Envelope Envelope `json:"envelope"`
}

// RedisNotifier publishes frames to Redis pub/sub and subscribes to the same
// pattern, so every instance delivers to its own viewers regardless of which
// instance handled the write.
type RedisNotifier struct {
	rdb  *redis.Client
	live *LiveChannel
	log  zerolog.Logger
}

func NewRedisNotifier(redisURL string, live *LiveChannel, log zerolog.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisNotifier{
		rdb:  redis.NewClient(opts),
		live: live,
		log:  log.With().Str("component", "redis-notifier").Logger(),
	}, nil
}

// Start subscribes to the room channel pattern and delivers incoming frames to
// the local live channel until ctx is canceled.
func (n *RedisNotifier) Start(ctx context.Context) {
	sub := n.rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var f redisFrame
				if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
					n.log.Warn().Err(err).Msg("undecodable frame on pub/sub")
					continue
				}
				if f.RoomID == "" {
					f.RoomID = strings.TrimPrefix(msg.Channel, redisChannelPrefix)
				}
				n.live.NotifyRoom(f.RoomID, f.Envelope)
			}
		}
	}()
}

// Publish serializes the frame onto the room's channel. The subscriber side of
// this same instance delivers it to local viewers, so there is no direct call
// into the live channel here.
func (n *RedisNotifier) Publish(roomID string, env Envelope) {
	data, err := json.Marshal(redisFrame{RoomID: roomID, Envelope: env})
	if err != nil {
		n.log.Error().Err(err).Str("room", roomID).Msg("frame marshal failed")
		return
	}
	if err := n.rdb.Publish(context.Background(), redisChannelPrefix+roomID, data).Err(); err != nil {
		n.log.Warn().Err(err).Str("room", roomID).Msg("publish failed, delivering locally")
		n.live.NotifyRoom(roomID, env)
	}
}

// Ping reports broker reachability for readiness checks.
func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.rdb.Ping(ctx).Err()
}

// Close releases the Redis client.
func (n *RedisNotifier) Close() error { return n.rdb.Close() }
