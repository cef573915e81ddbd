// Package postgres is the durable EventStore backend: an append-only
// "hive_events" table with monotonic bigserial message IDs, range scans,
// and TTL-based expiry. Schema is managed by embedded golang-migrate SQL
// files, and connections go through the pgx stdlib driver — grounded on
// pkg/database/client.go's NewClient/runMigrations, narrowed to the single
// events table (the rest of that package's ent-based schema management
// isn't needed here; see DESIGN.md for why ent itself was dropped).
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/agentfleet/hive/pkg/eventbus"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds connection parameters for the durable event store.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store implements eventbus.EventStore against PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects, applies pending migrations, and returns a ready Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("eventstore/postgres: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("eventstore/postgres: ping: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("eventstore/postgres: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

func runMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "hive_events", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Close only the source; closing the migrate instance would also close
	// the shared *sql.DB via the postgres driver (same trap documented in
	// pkg/database/client.go).
	return sourceDriver.Close()
}

// Append implements eventbus.EventStore.
func (s *Store) Append(ctx context.Context, evt *eventbus.Event) (string, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO hive_events (run_id, sequence, payload, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		evt.RunID, evt.Sequence, payload, evt.Timestamp,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Range implements eventbus.EventStore.
func (s *Store) Range(ctx context.Context, runID int64, startID, endID string, limit int) ([]*eventbus.Event, bool, string, error) {
	start, err := parseBound(startID, 0)
	if err != nil {
		return nil, false, "", fmt.Errorf("invalid start_id %q: %w", startID, err)
	}
	end, err := parseBound(endID, math.MaxInt64)
	if err != nil {
		return nil, false, "", fmt.Errorf("invalid end_id %q: %w", endID, err)
	}
	if limit <= 0 {
		limit = 10000
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM hive_events
		 WHERE run_id = $1 AND id > $2 AND id <= $3
		 ORDER BY id ASC LIMIT $4`,
		runID, start, end, limit+1,
	)
	if err != nil {
		return nil, false, "", fmt.Errorf("range query: %w", err)
	}
	defer rows.Close()

	var (
		events []*eventbus.Event
		ids    []int64
	)
	for rows.Next() {
		var (
			id      int64
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, false, "", fmt.Errorf("scan event row: %w", err)
		}
		var evt eventbus.Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, false, "", fmt.Errorf("unmarshal event payload: %w", err)
		}
		events = append(events, &evt)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, false, "", fmt.Errorf("range query rows: %w", err)
	}

	hasMore := len(events) > limit
	nextID := ""
	if hasMore {
		events = events[:limit]
		// Range is exclusive of startID, so resuming from the last returned
		// message's ID picks up exactly where this page ended.
		nextID = strconv.FormatInt(ids[limit-1], 10)
	}
	return events, hasMore, nextID, nil
}

// ExpireAfter implements eventbus.EventStore.
func (s *Store) ExpireAfter(ctx context.Context, runID int64, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE hive_events SET expires_at = now() + $2 WHERE run_id = $1`,
		runID, ttl,
	)
	if err != nil {
		return fmt.Errorf("set expiry for run %d: %w", runID, err)
	}
	return nil
}

func parseBound(token string, defaultValue int64) (int64, error) {
	switch token {
	case "", "-":
		return 0, nil
	case "+":
		return defaultValue, nil
	default:
		return strconv.ParseInt(token, 10, 64)
	}
}

// reapExpired deletes rows past their expires_at deadline. Called
// periodically by Reaper.
func (s *Store) reapExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM hive_events WHERE expires_at IS NOT NULL AND expires_at < now()`,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reaper runs reapExpired on a fixed interval until ctx is cancelled.
// Grounded on pkg/queue/orphan.go's runOrphanDetection background-sweep
// pattern, generalized from session orphan recovery to TTL expiry.
func (s *Store) Reaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.reapExpired(ctx)
			if err != nil {
				slog.Error("eventstore/postgres: reap failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("eventstore/postgres: reaped expired events", "rows", n)
			}
		}
	}
}
