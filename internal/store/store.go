package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DocumentStore is the persistence interface used by the server. Values are
// JSON documents; keys are ordered byte strings, so a prefix scan returns
// documents in key order.
type DocumentStore interface {
	// Write upserts the JSON encoding of value under key.
	Write(ctx context.Context, key string, value any) error
	// Read decodes the document at key into out. Returns ErrNotFound when absent.
	Read(ctx context.Context, key string, out any) error
	// ListByPrefix returns documents whose key starts with prefix, ordered by
	// key ascending, starting strictly after fromKey (or at the prefix when
	// fromKey is empty). limit <= 0 means no limit.
	ListByPrefix(ctx context.Context, prefix, fromKey string, limit int) ([]KV, error)
	// Delete removes the document at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// KV is one stored document.
type KV struct {
	Key   string
	Value []byte
}

var ErrNotFound = errors.New("not found")

// Key scheme. Point keys embed the server-assigned unix-ms timestamp
// zero-padded to 20 digits so byte order equals time order.
const (
	roomKeyPrefix  = "room:"
	trackKeyPrefix = "track:"
	pointKeyPrefix = "point:"

	pointTSWidth = 20
)

func RoomKey(roomID string) string { return roomKeyPrefix + roomID }

// RoomPrefix covers every room registration record.
func RoomPrefix() string { return roomKeyPrefix }

func TrackKey(roomID, appID string) string {
	return trackKeyPrefix + roomID + ":" + appID
}

func TrackPrefix(roomID string) string { return trackKeyPrefix + roomID + ":" }

// TrackPrefixAll covers every track record regardless of room.
func TrackPrefixAll() string { return trackKeyPrefix }

func PointKey(roomID string, unixMs int64) string {
	return fmt.Sprintf("%s%s:%0*d", pointKeyPrefix, roomID, pointTSWidth, unixMs)
}

func PointPrefix(roomID string) string { return pointKeyPrefix + roomID + ":" }

// PointTS recovers the timestamp embedded in a point key.
func PointTS(key string) (int64, error) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 || i+1 >= len(key) {
		return 0, fmt.Errorf("malformed point key %q", key)
	}
	return strconv.ParseInt(key[i+1:], 10, 64)
}

// RoomIDFromKey recovers the room id from a room registration key.
func RoomIDFromKey(key string) string {
	return strings.TrimPrefix(key, roomKeyPrefix)
}

// AppIDFromTrackKey recovers the app id from a track key under the given room.
func AppIDFromTrackKey(key, roomID string) string {
	return strings.TrimPrefix(key, TrackPrefix(roomID))
}
