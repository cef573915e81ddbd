package eventbus

import "context"

// Publisher is the interface Agents and the Runner depend on to emit
// events. Bus is the core's only implementation; it exists as a named
// interface (rather than agents depending on *Bus directly) so the
// out-of-scope HTTP/SSE transport layer can be swapped, and so tests can
// substitute a recording fake.
type Publisher interface {
	// Publish assigns the next sequence number for runID, stamps the event
	// with the current time, hands it to the durable store (best-effort)
	// and to every live subscriber, and returns the assigned sequence.
	Publish(ctx context.Context, runID int64, source Source, kind Kind, data map[string]any) (int64, error)

	// Subscribe registers a live subscriber for runID with a bounded,
	// drop-oldest buffer. The returned Subscriber's channel closes when the
	// run settles; Unsubscribe stops delivery but leaves the channel open.
	Subscribe(runID int64) *Subscriber

	// Unsubscribe removes a previously registered subscriber.
	Unsubscribe(sub *Subscriber)
}
