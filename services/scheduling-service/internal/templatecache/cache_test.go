package templatecache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/redis/go-redis/v9"
)

type staticSource struct {
	calls int
	tpls  []model.AvailabilityTemplate
}

func (s *staticSource) ListActiveTemplates(context.Context, string, time.Weekday) ([]model.AvailabilityTemplate, error) {
	s.calls++
	return s.tpls, nil
}

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCacheFallsBackWhenRedisDown(t *testing.T) {
	src := &staticSource{tpls: []model.AvailabilityTemplate{{ID: "a", TenantID: "t1", Weekday: time.Monday, OpenTime: 540, CloseTime: 600, SlotDurationMinutes: 30, Active: true}}}
	c := New(unreachableRedis(t), src, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := c.ListActiveTemplates(context.Background(), "t1", time.Monday)
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" || src.calls != 1 {
		t.Fatalf("unexpected result %+v (calls=%d)", got, src.calls)
	}
	if err := c.Invalidate(context.Background(), "t1"); err == nil {
		t.Fatal("invalidate against a dead redis should report an error")
	}
}

func TestCacheKeyLayout(t *testing.T) {
	c := New(nil, nil, 0, nil)
	if c.ttl != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", c.ttl)
	}
	if got := c.key("t1", time.Saturday); got != "slotbook:templates:t1:6" {
		t.Fatalf("unexpected key %q", got)
	}
}
