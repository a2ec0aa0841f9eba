package sessionkit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sessionkit/sessionkit"
	"github.com/sessionkit/sessionkit/store"
)

func newRedisCoordinator(t *testing.T, mutate func(*sessionkit.Config)) (*sessionkit.Coordinator, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := sessionkit.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	coord, err := sessionkit.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build coordinator: %v", err)
	}
	return coord, mr
}

func TestRedisSingleSessionScenario(t *testing.T) {
	coord, _ := newRedisCoordinator(t, func(cfg *sessionkit.Config) {
		cfg.Session.EnforceSingleSession = true
	})
	ctx := context.Background()

	s1, err := coord.Create(ctx, store.UserPayload{ID: "u1"}, sessionkit.CreateOptions{})
	if err != nil {
		t.Fatalf("create s1: %v", err)
	}
	s2, err := coord.Create(ctx, store.UserPayload{ID: "u1"}, sessionkit.CreateOptions{})
	if err != nil {
		t.Fatalf("create s2: %v", err)
	}
	if s2 == s1 {
		t.Fatalf("expected distinct session ids")
	}

	if _, err := coord.Read(ctx, s1); !errors.Is(err, sessionkit.ErrUnauthenticated) {
		t.Fatalf("s1 must be superseded, got %v", err)
	}
	user, err := coord.Read(ctx, s2)
	if err != nil {
		t.Fatalf("read s2: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected payload: %+v", user)
	}
}

func TestRedisSlidingExpirationAcrossOriginalWindow(t *testing.T) {
	coord, mr := newRedisCoordinator(t, nil)
	ctx := context.Background()

	id, err := coord.Create(ctx, store.UserPayload{ID: "u1"}, sessionkit.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Read just before the original window closes; the sliding touch must
	// carry the session across it.
	mr.FastForward(store.DefaultTTL - time.Second)
	if _, err := coord.Read(ctx, id); err != nil {
		t.Fatalf("read before expiry: %v", err)
	}

	mr.FastForward(2 * time.Second)
	if _, err := coord.Read(ctx, id); err != nil {
		t.Fatalf("read inside refreshed window: %v", err)
	}

	// Without further reads the refreshed window closes for good.
	mr.FastForward(store.DefaultTTL + time.Second)
	if _, err := coord.Read(ctx, id); !errors.Is(err, sessionkit.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after expiry, got %v", err)
	}
}

func TestRedisRotationScenario(t *testing.T) {
	coord, _ := newRedisCoordinator(t, func(cfg *sessionkit.Config) {
		cfg.Session.EnforceSingleSession = true
	})
	ctx := context.Background()

	oldID, err := coord.Create(ctx, store.UserPayload{ID: "u1", Attrs: map[string]any{"role": "member"}}, sessionkit.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newID, err := coord.Rotate(ctx, oldID, store.UserPayload{Attrs: map[string]any{"role": "admin"}}, time.Time{})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if newID == oldID {
		t.Fatalf("rotation must change the transport id")
	}

	if _, err := coord.Read(ctx, oldID); !errors.Is(err, sessionkit.ErrUnauthenticated) {
		t.Fatalf("old id must be dead, got %v", err)
	}
	user, err := coord.Read(ctx, newID)
	if err != nil {
		t.Fatalf("read new id: %v", err)
	}
	if user.Attrs["role"] != "admin" {
		t.Fatalf("merged payload missing: %+v", user.Attrs)
	}
}

func TestRedisOutageSurfacesAsUnavailable(t *testing.T) {
	coord, mr := newRedisCoordinator(t, nil)
	ctx := context.Background()

	id, err := coord.Create(ctx, store.UserPayload{ID: "u1"}, sessionkit.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.Close()

	if _, err := coord.Read(ctx, id); !errors.Is(err, sessionkit.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
