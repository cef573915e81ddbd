// Package calltracker keeps the per-run dispatch ledger: it records every
// attempt to dispatch a worker or team, enforces at-most-once dispatch when
// a team opts into prevent_duplicate, and aggregates timing/count
// statistics for the settled Run.
//
// Grounded on pkg/agent/orchestrator/runner.go's SubAgentRunner.Dispatch:
// the reserve-then-register pattern that closes the TOCTOU race between a
// concurrency/duplicate check and recording the attempt is reused here for
// duplicate detection instead of concurrency limiting.
package calltracker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of CallRecord outcomes.
type Status string

const (
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
	StatusDuplicateBlocked Status = "duplicate_blocked"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// ErrRunCancelled is returned by Open when the run's CancelToken has
// already observed cancellation.
var ErrRunCancelled = errors.New("calltracker: run is cancelled")

// CancelChecker is the minimal view of a cancel.Token the tracker needs.
// Satisfied by *cancel.Token without an import cycle.
type CancelChecker interface {
	IsCancelled() bool
}

// CallRecord is one dispatch attempt, opened at entry and closed on return
// (or on run cancellation).
type CallRecord struct {
	CallID          string
	TeamName        string
	WorkerName      string // empty for a team-level (global → team) dispatch
	Task            string
	TaskFingerprint string
	Status          Status
	StartTime       time.Time
	EndTime         time.Time
	ResultPreview   string // first 200 chars of the returned text
}

// previewLimit bounds ResultPreview length.
const previewLimit = 200

// Tracker is a per-run call ledger. One Tracker is created per run by
// HierarchyBuilder and shared by every TeamSupervisor/GlobalSupervisor
// instance in that run's hierarchy.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*CallRecord // by call_id
	byKey   map[string]string      // dedup key -> call_id, for in_progress/completed only
	cancel  CancelChecker

	totalCalls     int
	completedCalls int
	byTeam         map[string]int
	byWorker       map[string]int
	durationsMs    []int64
}

// New creates a Tracker. cancel may be nil (no cancellation short-circuit,
// used in tests that don't exercise cancellation).
func New(cancel CancelChecker) *Tracker {
	return &Tracker{
		records: make(map[string]*CallRecord),
		byKey:   make(map[string]string),
		cancel:  cancel,
		byTeam:  make(map[string]int),
		byWorker: make(map[string]int),
	}
}

// Fingerprint computes the stable hash of a normalized task string used for
// duplicate detection. Normalization lower-cases and collapses surrounding
// whitespace so cosmetic variation in a re-issued task doesn't defeat
// dedup.
func Fingerprint(task string) string {
	normalized := strings.ToLower(strings.TrimSpace(task))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func dedupKey(teamName, workerName, fingerprint string) string {
	if workerName == "" {
		return "team|" + teamName + "|" + fingerprint
	}
	return "worker|" + teamName + "|" + workerName + "|" + fingerprint
}

// Open records a dispatch attempt. If preventDuplicate is true and a
// matching open-or-completed record already exists for (teamName,
// workerName, fingerprint), it returns duplicate=true and a nil record
// without registering a new in_progress entry — the caller must not invoke
// the child agent.
//
// Returns ErrRunCancelled if the run's cancellation has already been
// signaled, so the caller can short-circuit before touching the child
// agent at all.
func (t *Tracker) Open(teamName, workerName, task string, preventDuplicate bool) (*CallRecord, bool, error) {
	if t.cancel != nil && t.cancel.IsCancelled() {
		return nil, false, ErrRunCancelled
	}

	fingerprint := Fingerprint(task)
	key := dedupKey(teamName, workerName, fingerprint)

	t.mu.Lock()
	defer t.mu.Unlock()

	if preventDuplicate {
		if _, exists := t.byKey[key]; exists {
			return nil, true, nil
		}
	}

	rec := &CallRecord{
		CallID:          uuid.New().String(),
		TeamName:        teamName,
		WorkerName:      workerName,
		Task:            task,
		TaskFingerprint: fingerprint,
		Status:          StatusInProgress,
		StartTime:       time.Now(),
	}
	t.records[rec.CallID] = rec
	if preventDuplicate {
		t.byKey[key] = rec.CallID
	}

	t.totalCalls++
	if workerName == "" {
		t.byTeam[teamName]++
	} else {
		t.byWorker[workerName]++
	}

	return rec, false, nil
}

// Close finalizes a previously opened record. resultText is truncated to
// ResultPreview's 200-char observability budget.
func (t *Tracker) Close(callID string, outcome Status, resultText string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[callID]
	if !ok {
		return
	}
	rec.Status = outcome
	rec.EndTime = time.Now()
	rec.ResultPreview = truncate(resultText, previewLimit)

	if outcome == StatusCompleted {
		t.completedCalls++
	}
	t.durationsMs = append(t.durationsMs, rec.EndTime.Sub(rec.StartTime).Milliseconds())

	// A record that fails or is cancelled must stop blocking future
	// attempts with the same fingerprint — only in_progress/completed
	// entries participate in dedup.
	if outcome == StatusFailed || outcome == StatusCancelled {
		key := dedupKey(rec.TeamName, rec.WorkerName, rec.TaskFingerprint)
		if t.byKey[key] == callID {
			delete(t.byKey, key)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Statistics is the aggregate view returned by Tracker.Statistics, surfaced
// in Run.statistics.
type Statistics struct {
	TotalCalls     int
	CompletedCalls int
	ByTeam         map[string]int
	ByWorker       map[string]int
	DurationsMs    []int64
}

// Statistics returns a snapshot of the run's dispatch ledger.
func (t *Tracker) Statistics() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	byTeam := make(map[string]int, len(t.byTeam))
	for k, v := range t.byTeam {
		byTeam[k] = v
	}
	byWorker := make(map[string]int, len(t.byWorker))
	for k, v := range t.byWorker {
		byWorker[k] = v
	}
	durations := make([]int64, len(t.durationsMs))
	copy(durations, t.durationsMs)

	return Statistics{
		TotalCalls:     t.totalCalls,
		CompletedCalls: t.completedCalls,
		ByTeam:         byTeam,
		ByWorker:       byWorker,
		DurationsMs:    durations,
	}
}
