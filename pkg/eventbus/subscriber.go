package eventbus

import "sync/atomic"

// Subscriber is a live event stream for one run, delivered to exactly one
// consumer (typically an SSE handler goroutine). Back-pressure policy is
// drop-oldest: a slow consumer loses the oldest buffered events rather than
// stalling the producer.
type Subscriber struct {
	id      string
	runID   int64
	ch      chan *Event
	dropped atomic.Int64
}

// Events returns the channel of events for this subscriber. The channel is
// closed when the run settles (Bus.CloseRun). Unsubscribe stops delivery
// but does not close the channel.
func (s *Subscriber) Events() <-chan *Event { return s.ch }

// Dropped returns how many events this subscriber has lost to buffer
// overflow since it subscribed.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// ID is the subscriber's unique handle, for logging/diagnostics.
func (s *Subscriber) ID() string { return s.id }
