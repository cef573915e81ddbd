package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var workerSource = Source{AgentID: "w-1", AgentType: AgentTypeWorker, AgentName: "W"}

func TestPublishAssignsMonotonicSequencePerRun(t *testing.T) {
	bus := New(nil, 16)

	seq1, err := bus.Publish(context.Background(), 1, workerSource, LifecycleStarted, nil)
	require.NoError(t, err)
	seq2, err := bus.Publish(context.Background(), 1, workerSource, LifecycleCompleted, nil)
	require.NoError(t, err)

	require.Equal(t, int64(1), seq1)
	require.Equal(t, int64(2), seq2)
}

func TestPublishSequencesAreIndependentPerRun(t *testing.T) {
	bus := New(nil, 16)

	seqA, _ := bus.Publish(context.Background(), 1, workerSource, LifecycleStarted, nil)
	seqB, _ := bus.Publish(context.Background(), 2, workerSource, LifecycleStarted, nil)

	require.Equal(t, int64(1), seqA)
	require.Equal(t, int64(1), seqB)
}

func TestSubscriberReceivesPublishedEvents(t *testing.T) {
	bus := New(nil, 16)
	sub := bus.Subscribe(1)

	_, err := bus.Publish(context.Background(), 1, workerSource, LifecycleStarted, map[string]any{"k": "v"})
	require.NoError(t, err)

	select {
	case evt := <-sub.Events():
		require.Equal(t, LifecycleStarted, evt.Kind)
		require.Equal(t, "v", evt.Data["k"])
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive published event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New(nil, 16)
	sub := bus.Subscribe(1)
	bus.Unsubscribe(sub)

	_, _ = bus.Publish(context.Background(), 1, workerSource, LifecycleStarted, nil)

	select {
	case _, ok := <-sub.Events():
		require.True(t, ok, "channel should not be closed, just no longer fed")
		t.Fatal("unsubscribed subscriber should not receive further events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseRunClosesEverySubscriberChannel(t *testing.T) {
	bus := New(nil, 16)
	sub1 := bus.Subscribe(1)
	sub2 := bus.Subscribe(1)

	bus.CloseRun(1)

	_, ok := <-sub1.Events()
	require.False(t, ok)
	_, ok = <-sub2.Events()
	require.False(t, ok)
}

func TestDropOldestPolicyUnderSlowSubscriber(t *testing.T) {
	bus := New(nil, 2)
	sub := bus.Subscribe(1)

	for i := 0; i < 5; i++ {
		_, _ = bus.Publish(context.Background(), 1, workerSource, LLMStream, map[string]any{"i": i})
	}

	require.Greater(t, sub.Dropped(), int64(0))

	var last int
	for {
		select {
		case evt := <-sub.Events():
			last = int(evt.Data["i"].(int))
		default:
			goto done
		}
	}
done:
	require.Equal(t, 4, last, "the most recent event must survive drop-oldest")
}

// fakeStore is a minimal EventStore recording every Append call, used to
// verify Publish's best-effort durable fan-out.
type fakeStore struct {
	mu     sync.Mutex
	events []*Event
}

func (f *fakeStore) Append(_ context.Context, evt *Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return "1", nil
}
func (f *fakeStore) Range(_ context.Context, _ int64, _, _ string, _ int) ([]*Event, bool, string, error) {
	return nil, false, "", nil
}
func (f *fakeStore) ExpireAfter(_ context.Context, _ int64, _ time.Duration) error { return nil }

func TestPublishAppendsToDurableStore(t *testing.T) {
	store := &fakeStore{}
	bus := New(store, 16)

	_, err := bus.Publish(context.Background(), 1, workerSource, LifecycleStarted, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.events) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrentPublishKeepsStoreAppendOrderMatchingSequenceOrder(t *testing.T) {
	store := &fakeStore{}
	bus := New(store, 1024)
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = bus.Publish(context.Background(), 1, workerSource, LLMStream, nil)
		}()
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.events, n)
	for i, evt := range store.events {
		require.Equal(t, int64(i+1), evt.Sequence, "store append order must match assigned sequence order")
	}
}

func TestConcurrentPublishProducesDistinctGaplessSequences(t *testing.T) {
	bus := New(nil, 1024)
	const n = 100

	var wg sync.WaitGroup
	seqs := make([]int64, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, _ := bus.Publish(context.Background(), 1, workerSource, LLMStream, nil)
			seqs[i] = seq
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, s := range seqs {
		require.False(t, seen[s], "sequence %d was produced twice", s)
		seen[s] = true
	}
	for i := int64(1); i <= n; i++ {
		require.True(t, seen[i], "sequence %d is missing", i)
	}
}
