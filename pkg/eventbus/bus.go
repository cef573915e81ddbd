package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize is the default per-subscriber channel capacity, used
// unless Bus is configured otherwise.
const DefaultBufferSize = 1024

// Bus is the core implementation of Publisher. One Bus instance is shared
// across every concurrent run in the process; per-run state lives in an
// internal runState so that distinct runs never contend on the same lock.
type Bus struct {
	store      EventStore // may be nil: durable persistence disabled
	bufferSize int

	mu   sync.Mutex
	runs map[int64]*runState
}

// runState holds the per-run sequence counter and subscriber set. Its lock
// guards the entire publish pipeline for that run — sequence assignment,
// the durable append, and subscriber fan-out all happen while rs.mu is
// held, so two concurrent Publish calls for the same run_id (callbacks may
// arrive from pooled threads) can never reorder relative to each other in
// the store or at a live subscriber. Distinct runs use distinct runStates
// and never contend on this lock.
type runState struct {
	mu   sync.Mutex
	seq  int64
	subs map[string]*Subscriber
}

// New creates a Bus. store may be nil, in which case events are fanned out
// to live subscribers only and the durable append is skipped without
// logging. When a store is configured, an append failure is logged and does
// not fail the publish call.
func New(store EventStore, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		store:      store,
		bufferSize: bufferSize,
		runs:       make(map[int64]*runState),
	}
}

func (b *Bus) stateFor(runID int64) *runState {
	b.mu.Lock()
	defer b.mu.Unlock()
	rs, ok := b.runs[runID]
	if !ok {
		rs = &runState{subs: make(map[string]*Subscriber)}
		b.runs[runID] = rs
	}
	return rs
}

// Publish implements Publisher. Sequence assignment, the durable append,
// and subscriber delivery all happen under the run's single lock so that
// concurrent callers publishing for the same run_id can never have their
// store-append or subscriber-delivery order disagree with assigned
// sequence order, even though the sequence numbers themselves are
// gapless and unique regardless.
func (b *Bus) Publish(ctx context.Context, runID int64, source Source, kind Kind, data map[string]any) (int64, error) {
	rs := b.stateFor(runID)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.seq++
	seq := rs.seq
	evt := &Event{
		RunID:    runID,
		Sequence: seq,
		Source:   source,
		Kind:     kind,
		Data:     data,
	}
	evt.Timestamp = nowMillis()

	if b.store != nil {
		if _, err := b.store.Append(ctx, evt); err != nil {
			slog.Error("eventbus: durable append failed; live delivery unaffected",
				"run_id", runID, "sequence", seq, "error", err)
		}
	}

	for _, s := range rs.subs {
		deliver(s, evt)
	}

	return seq, nil
}

// deliver sends evt to s's buffer, dropping the oldest buffered event on
// overflow rather than blocking the publisher.
func deliver(s *Subscriber, evt *Event) {
	select {
	case s.ch <- evt:
		return
	default:
	}
	// Buffer full: drop the oldest, then retry once. Another receive by the
	// consumer goroutine racing this drain is harmless — worst case we drop
	// an event the consumer was about to take anyway, which is within the
	// documented drop-oldest policy.
	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- evt:
	default:
		// Consumer raced us and refilled the buffer; drop this event too
		// rather than spin — still within the drop-oldest contract since
		// some event was dropped to make room.
		s.dropped.Add(1)
	}
}

// Subscribe implements Publisher.
func (b *Bus) Subscribe(runID int64) *Subscriber {
	rs := b.stateFor(runID)
	sub := &Subscriber{
		id:    uuid.New().String(),
		runID: runID,
		ch:    make(chan *Event, b.bufferSize),
	}

	rs.mu.Lock()
	rs.subs[sub.id] = sub
	rs.mu.Unlock()

	return sub
}

// Unsubscribe implements Publisher.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	rs := b.stateFor(sub.runID)
	rs.mu.Lock()
	delete(rs.subs, sub.id)
	rs.mu.Unlock()
}

// CloseRun closes every live subscriber's channel for runID (ending their
// SSE streams with a natural channel close) and drops the per-run state.
// Called once by the Runner when a run settles.
func (b *Bus) CloseRun(runID int64) {
	b.mu.Lock()
	rs, ok := b.runs[runID]
	if ok {
		delete(b.runs, runID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	rs.mu.Lock()
	subs := make([]*Subscriber, 0, len(rs.subs))
	for _, s := range rs.subs {
		subs = append(subs, s)
	}
	rs.subs = nil
	rs.mu.Unlock()

	for _, s := range subs {
		close(s.ch)
	}
}
