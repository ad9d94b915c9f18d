package fetchguard

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestMemoryGuardExclusive(t *testing.T) {
	g := NewMemory(time.Minute)
	ctx := context.Background()
	key := Key("roomA", "growtopia")

	release, ok, err := g.Acquire(ctx, key)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := g.Acquire(ctx, key); ok {
		t.Fatalf("second acquire must be refused while held")
	}
	if _, ok, _ := g.Acquire(ctx, Key("roomB", "growtopia")); !ok {
		t.Fatalf("other room must not be blocked")
	}
	release()
	release()
	if _, ok, _ := g.Acquire(ctx, key); !ok {
		t.Fatalf("acquire after release must succeed")
	}
}

func TestMemoryGuardExpires(t *testing.T) {
	g := NewMemory(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	stale, ok, _ := g.Acquire(ctx, "k")
	if !ok {
		t.Fatalf("first acquire refused")
	}
	now = now.Add(2 * time.Minute)
	if g.Held() != 0 {
		t.Fatalf("expired hold still counted")
	}
	fresh, ok, _ := g.Acquire(ctx, "k")
	if !ok {
		t.Fatalf("expired hold must not block")
	}
	stale()
	if _, ok, _ := g.Acquire(ctx, "k"); ok {
		t.Fatalf("stale release must not drop the newer hold")
	}
	fresh()
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	g, err := Dial(context.Background(), "redis://"+mr.Addr()+"/0", time.Minute)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g, mr
}

func TestRedisGuardExclusive(t *testing.T) {
	g, mr := newTestRedis(t)
	ctx := context.Background()
	key := Key("roomA", "buy")

	release, ok, err := g.Acquire(ctx, key)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if !mr.Exists(keyPrefix + key) {
		t.Fatalf("expected key in redis")
	}
	if ttl := mr.TTL(keyPrefix + key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	if _, ok, err := g.Acquire(ctx, key); ok || err != nil {
		t.Fatalf("second acquire: ok=%v err=%v", ok, err)
	}
	release()
	if mr.Exists(keyPrefix + key) {
		t.Fatalf("release must delete the key")
	}
	if _, ok, _ := g.Acquire(ctx, key); !ok {
		t.Fatalf("acquire after release must succeed")
	}
}

func TestRedisGuardStaleReleaseKeepsNewHolder(t *testing.T) {
	g, mr := newTestRedis(t)
	ctx := context.Background()

	stale, ok, _ := g.Acquire(ctx, "k")
	if !ok {
		t.Fatalf("first acquire refused")
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := g.Acquire(ctx, "k"); !ok {
		t.Fatalf("expired key must be acquirable")
	}
	stale()
	if !mr.Exists(keyPrefix + "k") {
		t.Fatalf("stale release deleted the newer hold")
	}
}

func TestDialRejectsEmptyURL(t *testing.T) {
	if _, err := Dial(context.Background(), "  ", time.Minute); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestNopNeverRefuses(t *testing.T) {
	var g Guard = Nop{}
	for i := 0; i < 3; i++ {
		release, ok, err := g.Acquire(context.Background(), "k")
		if !ok || err != nil {
			t.Fatalf("nop refused: ok=%v err=%v", ok, err)
		}
		release()
	}
}
