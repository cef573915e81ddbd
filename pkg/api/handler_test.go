package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/eventstore/memory"
	"github.com/agentfleet/hive/pkg/hierarchy"
	"github.com/agentfleet/hive/pkg/hive"
	"github.com/agentfleet/hive/pkg/llmclient"
	"github.com/agentfleet/hive/pkg/toolprovider"
)

func oneWorkerConfig() *hierarchy.Config {
	cfg := &hierarchy.Config{
		HierarchyID:   "incident-response",
		GlobalAgentID: "global-1",
		ExecutionMode: hierarchy.ExecutionModeSequential,
		Teams: []hierarchy.TeamConfig{{
			ID:      "team-t",
			Name:    "T",
			AgentID: "team-t-1",
			Workers: []hierarchy.WorkerConfig{{
				ID:      "worker-w",
				Name:    "W",
				AgentID: "worker-w-1",
			}},
		}},
	}
	return cfg
}

func newTestServer(t *testing.T, llm llmclient.Client) *Server {
	t.Helper()
	reg := hierarchy.NewRegistry()
	reg.Put(oneWorkerConfig())

	store := memory.New()
	bus := eventbus.New(store, 64)

	runs := hive.NewRunManager(hive.RunManagerConfig{
		Hierarchies: reg,
		Publisher:   bus,
		EventStore:  store,
		LLM:         llm,
		Tools:       toolprovider.NewStub(nil),
	})

	return NewServer(runs, reg, bus, store)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestStartHandlerRejectsUnknownHierarchy(t *testing.T) {
	s := newTestServer(t, llmclient.NewScripted())

	rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/start", startRequest{
		HierarchyID: "does-not-exist",
		Task:        "investigate",
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartHandlerRejectsMissingFields(t *testing.T) {
	s := newTestServer(t, llmclient.NewScripted())

	rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/start", startRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartHandlerAdmitsRun(t *testing.T) {
	llm := llmclient.NewScripted()
	llm.Script("global-1", llmclient.Turn{Chunks: []llmclient.Chunk{&llmclient.TextChunk{Content: "done"}}})
	s := newTestServer(t, llm)

	rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/start", startRequest{
		HierarchyID: "incident-response",
		Task:        "investigate",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.ID)
	require.Equal(t, "incident-response", resp.HierarchyID)
	require.Equal(t, "pending", resp.Status)
	require.NotEmpty(t, resp.StreamURL)
}

func TestGetHandlerReturns404ForUnknownRun(t *testing.T) {
	s := newTestServer(t, llmclient.NewScripted())

	rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/get", idRequest{ID: 999})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetHandlerReturnsRunSnapshot(t *testing.T) {
	llm := llmclient.NewScripted()
	llm.Script("global-1", llmclient.Turn{Chunks: []llmclient.Chunk{&llmclient.TextChunk{Content: "done"}}})
	s := newTestServer(t, llm)

	start := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/start", startRequest{
		HierarchyID: "incident-response",
		Task:        "investigate",
	})
	var created startResponse
	require.NoError(t, json.Unmarshal(start.Body.Bytes(), &created))

	require.Eventually(t, func() bool {
		rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/get", idRequest{ID: created.ID})
		var snap hive.Snapshot
		_ = json.Unmarshal(rec.Body.Bytes(), &snap)
		return snap.Status == hive.StatusCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestGetHandlerIncludesEvents(t *testing.T) {
	llm := llmclient.NewScripted()
	llm.Script("global-1", llmclient.Turn{Chunks: []llmclient.Chunk{&llmclient.TextChunk{Content: "done"}}})
	s := newTestServer(t, llm)

	start := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/start", startRequest{
		HierarchyID: "incident-response",
		Task:        "investigate",
	})
	var created startResponse
	require.NoError(t, json.Unmarshal(start.Body.Bytes(), &created))

	require.Eventually(t, func() bool {
		rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/get", idRequest{ID: created.ID})
		var resp getResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			return false
		}
		return resp.Status == hive.StatusCompleted && len(resp.Events) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestCancelHandlerReportsUnknownRun(t *testing.T) {
	s := newTestServer(t, llmclient.NewScripted())

	rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/cancel", idRequest{ID: 999})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListHandlerPaginatesAndAggregates(t *testing.T) {
	llm := llmclient.NewScripted()
	llm.Script("global-1", llmclient.Turn{Chunks: []llmclient.Chunk{&llmclient.TextChunk{Content: "done"}}})
	s := newTestServer(t, llm)

	doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/start", startRequest{
		HierarchyID: "incident-response",
		Task:        "investigate",
	})

	rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/list", listRequest{Limit: 10})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Runs, 1)
}

func TestEventsHandlerReplaysDurableLog(t *testing.T) {
	llm := llmclient.NewScripted()
	llm.Script("global-1", llmclient.Turn{Chunks: []llmclient.Chunk{&llmclient.TextChunk{Content: "done"}}})
	s := newTestServer(t, llm)

	start := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/start", startRequest{
		HierarchyID: "incident-response",
		Task:        "investigate",
	})
	var created startResponse
	require.NoError(t, json.Unmarshal(start.Body.Bytes(), &created))

	require.Eventually(t, func() bool {
		rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/events", eventsRequest{ID: created.ID})
		var resp eventsResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		return resp.Count > 0
	}, time.Second, 5*time.Millisecond)

	rec := doJSON(t, s, http.MethodPost, "/api/executor/v1/runs/events", eventsRequest{ID: created.ID})
	var resp eventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, created.ID, resp.RunID)
	require.NotEmpty(t, resp.Events)
}

func TestHealthHandlerReportsStats(t *testing.T) {
	s := newTestServer(t, llmclient.NewScripted())

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "run_stats")
}
