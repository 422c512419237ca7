// Package rooms owns room configuration and the retention machinery that
// keeps stored history bounded.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roadnik/internal/config"
	"roadnik/internal/model"
	"roadnik/internal/store"
)

// Registry resolves room configuration. A room without a registration record
// is "anonymous" and governed entirely by the process defaults.
type Registry struct {
	store store.DocumentStore
	cfg   config.Config
}

func NewRegistry(s store.DocumentStore, cfg config.Config) *Registry {
	return &Registry{store: s, cfg: cfg}
}

// Register upserts the room's configuration document.
func (r *Registry) Register(ctx context.Context, info model.RoomInfo) error {
	if info.RoomID == "" {
		return fmt.Errorf("roomId required")
	}
	return r.store.Write(ctx, store.RoomKey(info.RoomID), info)
}

// Unregister deletes the room's configuration document. The room's points
// survive; subsequent ingest is governed by anonymous defaults again.
func (r *Registry) Unregister(ctx context.Context, roomID string) error {
	return r.store.Delete(ctx, store.RoomKey(roomID))
}

// Get returns nil for anonymous rooms; callers merge with process defaults
// via Limits.
func (r *Registry) Get(ctx context.Context, roomID string) (*model.RoomInfo, error) {
	var info model.RoomInfo
	err := r.store.Read(ctx, store.RoomKey(roomID), &info)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns every registered room.
func (r *Registry) List(ctx context.Context) ([]model.RoomInfo, error) {
	kvs, err := r.store.ListByPrefix(ctx, store.RoomPrefix(), "", 0)
	if err != nil {
		return nil, err
	}
	out := make([]model.RoomInfo, 0, len(kvs))
	for _, kv := range kvs {
		var info model.RoomInfo
		if err := unmarshalKV(kv, &info); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Limits is the effective policy for one room after merging its registration
// record (if any) with the process defaults.
type Limits struct {
	Registered       bool
	MinInterval      time.Duration
	MaxPathPoints    int
	MaxPointsPerPath int
	// MaxAge expires points by age during the sweep; zero disables it.
	MaxAge time.Duration
}

// Limits resolves the effective policy for roomID.
func (r *Registry) Limits(ctx context.Context, roomID string) (Limits, error) {
	info, err := r.Get(ctx, roomID)
	if err != nil {
		return Limits{}, err
	}
	return r.limitsFor(info), nil
}

func (r *Registry) limitsFor(info *model.RoomInfo) Limits {
	if info == nil {
		return Limits{
			MinInterval:   time.Duration(r.cfg.AnonymousMinIntervalMs) * time.Millisecond,
			MaxPathPoints: r.cfg.AnonymousMaxPoints,
		}
	}
	l := Limits{
		Registered:       true,
		MinInterval:      time.Duration(r.cfg.RegisteredMinIntervalMs) * time.Millisecond,
		MaxPathPoints:    r.cfg.RegisteredMaxPoints,
		MaxPointsPerPath: info.MaxPointsPerPath,
	}
	if info.MinPathPointIntervalMs > 0 {
		l.MinInterval = time.Duration(info.MinPathPointIntervalMs) * time.Millisecond
	}
	if info.MaxPathPoints > 0 {
		l.MaxPathPoints = info.MaxPathPoints
	}
	if info.MaxPathPointAgeHours > 0 {
		l.MaxAge = time.Duration(info.MaxPathPointAgeHours) * time.Hour
	}
	return l
}
