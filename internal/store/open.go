package store

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "listingd/pkg/logx"
)

// Store is the persistence API used by the aggregators and the sweeper.
type Store interface {
	// Upsert inserts or refreshes a record keyed by (kind, rec.Key).
	// Re-applying the same record is idempotent beyond timestamp refresh.
	Upsert(ctx context.Context, kind Kind, rec Record) (Outcome, error)

	Find(ctx context.Context, kind Kind, q Query) ([]Record, error)

	// MarkInactiveBefore deactivates records whose LastSeen is strictly
	// before cutoff. Records are kept; hard deletion is DeleteOlderThan.
	MarkInactiveBefore(ctx context.Context, kind Kind, cutoff time.Time) (int64, error)

	// DeleteOlderThan removes rows whose relevant timestamp is strictly
	// before cutoff (LastSeen for listings, At for task runs). A row at
	// exactly cutoff survives.
	DeleteOlderThan(ctx context.Context, kind Kind, cutoff time.Time) (int64, error)

	AppendRun(ctx context.Context, e RunEntry) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
