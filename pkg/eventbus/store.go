package eventbus

import (
	"context"
	"time"
)

// EventStore is the durable append-only log backend. The backend itself is
// external; only this interface is core. pkg/eventstore/memory and
// pkg/eventstore/postgres provide concrete adapters.
type EventStore interface {
	// Append persists an event and returns the backend-assigned message ID.
	// Message IDs must be monotonically increasing for a given run and must
	// agree with Event.Sequence ordering.
	Append(ctx context.Context, evt *Event) (msgID string, err error)

	// Range returns events for runID with message ID in (startID, endID],
	// using "-" for the earliest and "+" for the latest, up to limit
	// events. hasMore indicates additional events exist beyond the
	// returned page; nextID is the ID to resume from.
	Range(ctx context.Context, runID int64, startID, endID string, limit int) (events []*Event, hasMore bool, nextID string, err error)

	// ExpireAfter sets a TTL on the run's stream, starting now. Called once
	// when a run settles.
	ExpireAfter(ctx context.Context, runID int64, ttl time.Duration) error
}
