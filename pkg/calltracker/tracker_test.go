package calltracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAllowsFirstCallAndBlocksDuplicate(t *testing.T) {
	tr := New(nil)

	rec, duplicate, err := tr.Open("T", "W", "say hi", true)
	require.NoError(t, err)
	require.False(t, duplicate)
	require.NotNil(t, rec)

	_, duplicate, err = tr.Open("T", "W", "say hi", true)
	require.NoError(t, err)
	require.True(t, duplicate)
}

func TestOpenIgnoresDuplicatesWhenPreventDuplicateIsFalse(t *testing.T) {
	tr := New(nil)
	_, dup1, _ := tr.Open("T", "W", "same task", false)
	_, dup2, _ := tr.Open("T", "W", "same task", false)
	require.False(t, dup1)
	require.False(t, dup2)
}

func TestOpenDistinguishesTasksByFingerprint(t *testing.T) {
	tr := New(nil)
	_, dup1, _ := tr.Open("T", "W", "task one", true)
	_, dup2, _ := tr.Open("T", "W", "task two", true)
	require.False(t, dup1)
	require.False(t, dup2)
}

func TestFingerprintNormalizesWhitespaceAndCase(t *testing.T) {
	require.Equal(t, Fingerprint("Say Hi"), Fingerprint("  say hi  "))
	require.NotEqual(t, Fingerprint("say hi"), Fingerprint("say bye"))
}

func TestCloseFailedReleasesDedupSlotForRetry(t *testing.T) {
	tr := New(nil)
	rec, _, err := tr.Open("T", "W", "task", true)
	require.NoError(t, err)

	tr.Close(rec.CallID, StatusFailed, "")

	_, duplicate, err := tr.Open("T", "W", "task", true)
	require.NoError(t, err)
	require.False(t, duplicate, "a failed call must not block retrying the same task")
}

func TestCloseCompletedKeepsBlockingDuplicates(t *testing.T) {
	tr := New(nil)
	rec, _, _ := tr.Open("T", "W", "task", true)
	tr.Close(rec.CallID, StatusCompleted, "result")

	_, duplicate, err := tr.Open("T", "W", "task", true)
	require.NoError(t, err)
	require.True(t, duplicate)
}

type fakeCancelChecker struct{ cancelled bool }

func (f *fakeCancelChecker) IsCancelled() bool { return f.cancelled }

func TestOpenRejectsWhenRunCancelled(t *testing.T) {
	checker := &fakeCancelChecker{cancelled: true}
	tr := New(checker)

	_, _, err := tr.Open("T", "W", "task", true)
	require.ErrorIs(t, err, ErrRunCancelled)
}

func TestStatisticsAggregatesCallsByTeamAndWorker(t *testing.T) {
	tr := New(nil)
	rec1, _, _ := tr.Open("T", "", "dispatch team", false)
	tr.Close(rec1.CallID, StatusCompleted, "ok")

	rec2, _, _ := tr.Open("T", "W1", "task a", false)
	tr.Close(rec2.CallID, StatusCompleted, "ok")

	rec3, _, _ := tr.Open("T", "W2", "task b", false)
	tr.Close(rec3.CallID, StatusFailed, "")

	stats := tr.Statistics()
	require.Equal(t, 3, stats.TotalCalls)
	require.Equal(t, 2, stats.CompletedCalls)
	require.Equal(t, 1, stats.ByTeam["T"])
	require.Equal(t, 1, stats.ByWorker["W1"])
	require.Equal(t, 1, stats.ByWorker["W2"])
	require.Len(t, stats.DurationsMs, 3)
}

func TestOpenIsSafeForConcurrentUse(t *testing.T) {
	tr := New(nil)
	var wg sync.WaitGroup
	duplicates := make([]bool, 20)

	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup, _ := tr.Open("T", "W", "same task", true)
			duplicates[i] = dup
		}()
	}
	wg.Wait()

	blocked := 0
	for _, d := range duplicates {
		if d {
			blocked++
		}
	}
	require.Equal(t, 19, blocked, "exactly one concurrent Open should win the race")
}
