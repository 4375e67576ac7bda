package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/ghdash/internal/cache"
)

var _ cache.Store = (*SnapshotDB)(nil)

// SnapshotDB is the persistent cache.Store: one row per cache key.
type SnapshotDB struct {
	conn *sql.DB
}

func (s *SnapshotDB) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	var (
		entry cache.Entry
		ms    int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT payload, timestamp_ms FROM snapshots WHERE key = ?`, key,
	).Scan(&entry.Payload, &ms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cache.Entry{}, false, nil
		}
		return cache.Entry{}, false, fmt.Errorf("sqlite: getting snapshot %s: %w", key, err)
	}

	entry.Timestamp = time.UnixMilli(ms)
	return entry, true, nil
}

// Put replaces the snapshot for key. The timestamp is truncated to
// milliseconds.
func (s *SnapshotDB) Put(ctx context.Context, key string, entry cache.Entry) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO snapshots (key, payload, timestamp_ms) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			payload      = excluded.payload,
			timestamp_ms = excluded.timestamp_ms`,
		key,
		entry.Payload,
		entry.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving snapshot %s: %w", key, err)
	}
	return nil
}

func (s *SnapshotDB) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: deleting snapshot %s: %w", key, err)
	}
	return nil
}

// Count returns the number of stored snapshots.
func (s *SnapshotDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting snapshots: %w", err)
	}
	return n, nil
}
