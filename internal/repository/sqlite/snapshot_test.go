package sqlite

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sakif/ghdash/internal/cache"
)

func TestSnapshotPutGet(t *testing.T) {
	snapshots := newTestDB(t).Snapshots()
	ctx := context.Background()
	ts := time.UnixMilli(1_760_000_123_456)

	err := snapshots.Put(ctx, "p:github_dashboard_cache", cache.Entry{Payload: []byte(`{"a":1}`), Timestamp: ts})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := snapshots.Get(ctx, "p:github_dashboard_cache")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(got.Payload) != `{"a":1}` {
		t.Errorf("Payload = %s, want %s", got.Payload, `{"a":1}`)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
}

func TestSnapshotGet_Missing(t *testing.T) {
	snapshots := newTestDB(t).Snapshots()

	_, ok, err := snapshots.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true for a missing key")
	}
}

func TestSnapshotPut_Overwrites(t *testing.T) {
	snapshots := newTestDB(t).Snapshots()
	ctx := context.Background()

	for i, payload := range []string{`1`, `2`} {
		entry := cache.Entry{Payload: []byte(payload), Timestamp: time.UnixMilli(int64(i))}
		if err := snapshots.Put(ctx, "k", entry); err != nil {
			t.Fatalf("Put(%d) error = %v", i, err)
		}
	}

	got, _, err := snapshots.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Payload) != "2" {
		t.Errorf("Payload = %s, want 2", got.Payload)
	}
	if n, _ := snapshots.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestSnapshotDelete(t *testing.T) {
	snapshots := newTestDB(t).Snapshots()
	ctx := context.Background()

	if err := snapshots.Put(ctx, "k", cache.Entry{Payload: []byte("{}"), Timestamp: time.Now()}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := snapshots.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := snapshots.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}

	if _, ok, _ := snapshots.Get(ctx, "k"); ok {
		t.Error("Get() after Delete ok = true")
	}
}

// TestSnapshotDB_BacksCache runs the TTL rules end to end on SQLite.
func TestSnapshotDB_BacksCache(t *testing.T) {
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC))
	c := cache.New(db.Snapshots(), 15*time.Minute, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	key := cache.Key("p", cache.KindCommits)

	if _, err := c.Save(ctx, key, map[string]int{"totalCount": 7}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	clock.Advance(14 * time.Minute)
	var got map[string]int
	if _, ok, err := c.Load(ctx, key, &got); err != nil || !ok {
		t.Fatalf("Load() within TTL = ok %v, err %v", ok, err)
	}
	if got["totalCount"] != 7 {
		t.Errorf("totalCount = %d, want 7", got["totalCount"])
	}

	clock.Advance(2 * time.Minute)
	if _, ok, err := c.Load(ctx, key, &got); err != nil || ok {
		t.Fatalf("Load() after TTL = ok %v, err %v; want miss", ok, err)
	}
	if n, _ := db.Snapshots().Count(ctx); n != 0 {
		t.Errorf("Count() after expiry = %d, want 0", n)
	}
}
