// Package memory provides an in-process EventStore, used by tests and as
// the default durable log when no Postgres DSN is configured. It satisfies
// the same message-ID/range-scan/TTL contract as pkg/eventstore/postgres so
// callers can swap between them freely.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/agentfleet/hive/pkg/eventbus"
)

// Store is a goroutine-safe, append-only per-run event log kept entirely in
// memory.
type Store struct {
	mu      sync.Mutex
	runs    map[int64][]*eventbus.Event // msgID == 1-based index into this slice
	expires map[int64]time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		runs:    make(map[int64][]*eventbus.Event),
		expires: make(map[int64]time.Time),
	}
}

// Append implements eventbus.EventStore.
func (s *Store) Append(_ context.Context, evt *eventbus.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.expires[evt.RunID]; ok && time.Now().After(exp) {
		return "", fmt.Errorf("eventstore/memory: run %d stream has expired", evt.RunID)
	}

	s.runs[evt.RunID] = append(s.runs[evt.RunID], evt)
	msgID := int64(len(s.runs[evt.RunID]))
	return strconv.FormatInt(msgID, 10), nil
}

// Range implements eventbus.EventStore. Message IDs are 1-based positions
// matching insertion order, which by construction agrees with
// Event.Sequence ordering.
func (s *Store) Range(_ context.Context, runID int64, startID, endID string, limit int) ([]*eventbus.Event, bool, string, error) {
	s.mu.Lock()
	all := s.runs[runID]
	snapshot := make([]*eventbus.Event, len(all))
	copy(snapshot, all)
	s.mu.Unlock()

	start, err := parseBound(startID, 0)
	if err != nil {
		return nil, false, "", fmt.Errorf("invalid start_id %q: %w", startID, err)
	}
	end, err := parseBound(endID, int64(len(snapshot)))
	if err != nil {
		return nil, false, "", fmt.Errorf("invalid end_id %q: %w", endID, err)
	}
	if limit <= 0 {
		limit = 10000
	}

	// Message IDs are 1-based; events[i] has msgID i+1.
	var out []*eventbus.Event
	for i := start; i < int64(len(snapshot)) && i < end; i++ {
		out = append(out, snapshot[i])
	}

	hasMore := false
	if len(out) > limit {
		out = out[:limit]
		hasMore = true
	}

	nextID := ""
	if hasMore {
		nextID = strconv.FormatInt(start+int64(len(out)), 10)
	}
	return out, hasMore, nextID, nil
}

// parseBound converts a start_id/end_id token ("-" = earliest, "+" =
// latest, or a decimal message ID) into a 0-based slice index.
func parseBound(token string, defaultValue int64) (int64, error) {
	switch token {
	case "", "-":
		return 0, nil
	case "+":
		return defaultValue, nil
	default:
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return 0, err
		}
		return id, nil // message ID N corresponds to 0-based index N (exclusive lower / inclusive via loop bound above)
	}
}

// ExpireAfter implements eventbus.EventStore by recording a deadline after
// which Append rejects new events for the run. Range does not check the
// deadline: an expired run's events stay readable until Sweep deletes them.
func (s *Store) ExpireAfter(_ context.Context, runID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[runID] = time.Now().Add(ttl)
	return nil
}

// Sweep deletes any run streams whose TTL has elapsed. Callers may run this
// periodically; it is also safe to never call it (memory is reclaimed at
// process exit regardless).
func (s *Store) Sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for runID, exp := range s.expires {
		if now.After(exp) {
			delete(s.runs, runID)
			delete(s.expires, runID)
		}
	}
}
