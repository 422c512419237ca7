package rooms

import (
	"context"
	"testing"
	"time"

	"roadnik/internal/config"
	"roadnik/internal/model"
	"roadnik/internal/store"
)

func testRegistry(t *testing.T) (*Registry, store.DocumentStore) {
	t.Helper()
	s := store.NewMemory()
	return NewRegistry(s, config.Default()), s
}

func TestRegisterGetUnregister(t *testing.T) {
	ctx := context.Background()
	reg, _ := testRegistry(t)

	info, err := reg.Get(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if info != nil {
		t.Fatal("unknown room should resolve to nil (anonymous)")
	}

	if err := reg.Register(ctx, model.RoomInfo{RoomID: "abcd1234", Email: "a@b.c", MaxPathPoints: 500}); err != nil {
		t.Fatalf("register: %v", err)
	}
	info, err = reg.Get(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if info == nil || info.MaxPathPoints != 500 {
		t.Fatalf("get after register: %+v", info)
	}

	rooms, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 1 || rooms[0].RoomID != "abcd1234" {
		t.Fatalf("list: %+v", rooms)
	}

	if err := reg.Unregister(ctx, "abcd1234"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	info, err = reg.Get(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if info != nil {
		t.Fatal("unregistered room should be anonymous again")
	}
}

func TestLimitsMerge(t *testing.T) {
	ctx := context.Background()
	reg, _ := testRegistry(t)

	// anonymous: process defaults apply
	l, err := reg.Limits(ctx, "anonroom1")
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if l.Registered {
		t.Fatal("room should be anonymous")
	}
	if l.MinInterval != 900*time.Millisecond {
		t.Fatalf("anonymous interval: %v", l.MinInterval)
	}
	if l.MaxPathPoints != 100 {
		t.Fatalf("anonymous cap: %d", l.MaxPathPoints)
	}
	if l.MaxPointsPerPath != 0 {
		t.Fatalf("anonymous per-path cap: %d", l.MaxPointsPerPath)
	}

	// registered with overrides
	err = reg.Register(ctx, model.RoomInfo{
		RoomID:                 "abcd1234",
		MaxPathPoints:          2000,
		MaxPointsPerPath:       50,
		MaxPathPointAgeHours:   24,
		MinPathPointIntervalMs: 250,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	l, err = reg.Limits(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if !l.Registered {
		t.Fatal("room should be registered")
	}
	if l.MinInterval != 250*time.Millisecond {
		t.Fatalf("override interval: %v", l.MinInterval)
	}
	if l.MaxPathPoints != 2000 || l.MaxPointsPerPath != 50 {
		t.Fatalf("override caps: %+v", l)
	}
	if l.MaxAge != 24*time.Hour {
		t.Fatalf("override age: %v", l.MaxAge)
	}

	// registered without overrides falls back to registered defaults
	if err := reg.Register(ctx, model.RoomInfo{RoomID: "bare00001"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	l, err = reg.Limits(ctx, "bare00001")
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if l.MinInterval != 500*time.Millisecond {
		t.Fatalf("registered default interval: %v", l.MinInterval)
	}
	if l.MaxPathPoints != 1000 {
		t.Fatalf("registered default cap: %d", l.MaxPathPoints)
	}

	// unregister reverts to anonymous defaults
	if err := reg.Unregister(ctx, "abcd1234"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	l, err = reg.Limits(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if l.Registered || l.MinInterval != 900*time.Millisecond || l.MaxPathPoints != 100 {
		t.Fatalf("limits after unregister: %+v", l)
	}
}
