package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/evsync/internal/config"
	"github.com/JonMunkholm/evsync/internal/core"
	"github.com/JonMunkholm/evsync/internal/source"
)

// fakeStore is an in-memory vehicle store with run history.
type fakeStore struct {
	mu      sync.Mutex
	ids     map[string]struct{}
	runs    []core.RunSummary
	pingErr error
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{ids: make(map[string]struct{})}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *fakeStore) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.ids))
	for id := range s.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *fakeStore) Insert(ctx context.Context, rec core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[rec.ID] = struct{}{}
	return nil
}

func (s *fakeStore) Update(ctx context.Context, rec core.Record) error {
	return nil
}

func (s *fakeStore) RecordRun(ctx context.Context, run core.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append([]core.RunSummary{run}, s.runs...)
	return nil
}

func (s *fakeStore) ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) > limit {
		return s.runs[:limit], nil
	}
	return s.runs, nil
}

func (s *fakeStore) Ping(ctx context.Context) error {
	return s.pingErr
}

func vehicleGrids() map[source.ID]source.Grid {
	return map[source.ID]source.Grid{
		source.Vehicles: {
			{"id", "brand", "model"},
			{"ev01", "Tesla", "Model 3"},
			{"ev02", "BMW", "i4"},
		},
	}
}

func gridProvider(grids map[source.ID]source.Grid, errs map[source.ID]error) source.Provider {
	return source.ProviderFunc(func(ctx context.Context, src source.Source) (source.Grid, error) {
		if err := errs[src.ID]; err != nil {
			return nil, err
		}
		return grids[src.ID], nil
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{HistoryLimit: 20},
	}
}

type testEnv struct {
	server  *Server
	service *core.Service
	store   *fakeStore
}

func newTestEnv(t *testing.T, p source.Provider, st *fakeStore, cfg *config.Config) *testEnv {
	t.Helper()
	svc, err := core.NewService(p, st, core.Options{
		Limiter:  core.NewSyncLimiter(1, 50*time.Millisecond),
		Recorder: st,
	})
	require.NoError(t, err)

	srv := NewServer(svc, Deps{Runs: st, DB: st}, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{server: srv, service: svc, store: st}
}

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)

	var resp testResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

// ----------------------------------------------------------------------------
// Sync trigger
// ----------------------------------------------------------------------------

func TestHandleSync_SyncAll(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), testConfig())

	rec, resp := env.do(t, http.MethodPost, "/api/sync", `{"action":"sync-all"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Sync complete: 2 added, 0 updated, 0 skipped, 0 failed", resp.Message)

	var data syncData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 2, data.AddedCount)
	assert.Equal(t, 0, data.UpdatedCount)
	assert.NotNil(t, data.Errors)
	assert.NotEmpty(t, data.RunID)
}

func TestHandleSync_GetRunsLatest(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore("ev01"), testConfig())

	rec, resp := env.do(t, http.MethodGet, "/api/sync", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var data syncData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 1, data.AddedCount)
	assert.Equal(t, 1, data.SkippedCount)
	assert.Equal(t, core.CmdSyncLatest, env.store.runs[0].Command)
}

func TestHandleSync_BadRequests(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), testConfig())

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing id", `{"action":"sync-vehicle"}`, "REQ001"},
		{"unknown action", `{"action":"sync-everything"}`, "SYN003"},
		{"empty action", `{}`, "SYN003"},
		{"bad json", `{"action":`, "REQ002"},
		{"unknown field", `{"action":"sync-all","force":true}`, "REQ002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodPost, "/api/sync", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
			assert.Empty(t, resp.Data)
		})
	}
}

func TestHandleSync_VehicleNotFound(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), testConfig())

	rec, resp := env.do(t, http.MethodPost, "/api/sync", `{"action":"sync-vehicle","id":"ev99"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "SYN001", resp.Code)

	var data syncData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Zero(t, data.AddedCount)
	assert.Zero(t, data.UpdatedCount)
}

func TestHandleSync_FatalPipelineError(t *testing.T) {
	p := gridProvider(nil, map[source.ID]error{source.Vehicles: errors.New("connection reset by peer")})
	env := newTestEnv(t, p, newFakeStore(), testConfig())

	rec, resp := env.do(t, http.MethodPost, "/api/sync", `{"action":"sync-all"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Message, "Sync failed: "), resp.Message)
}

func TestHandleSync_Busy(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), testConfig())
	require.True(t, env.service.Limiter().TryAcquire())
	defer env.service.Limiter().Release()

	rec, resp := env.do(t, http.MethodPost, "/api/sync", `{"action":"sync-all"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "SYN002", resp.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleSync_Debug(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore("ev01"), testConfig())

	rec, resp := env.do(t, http.MethodPost, "/api/sync", `{"action":"debug"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	var report core.DebugReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	assert.Equal(t, []string{"ev01", "ev02"}, report.IDs)
	assert.Equal(t, 1, report.WouldInsert)
	assert.Equal(t, 1, report.WouldUpdate)
	assert.Empty(t, env.store.runs, "debug is not recorded")
}

func TestHandleSync_APIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k-123"}}
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), cfg)

	rec, _ := env.do(t, http.MethodPost, "/api/sync", `{"action":"sync-all"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/sync", `{"action":"sync-all"}`, "X-API-Key", "nope")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/sync", `{"action":"sync-all"}`, "Authorization", "Bearer k-123")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/sources", "")
	assert.Equal(t, http.StatusOK, rec.Code, "read-only routes stay open")
}

func TestHandleSync_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, SyncLimit: 1}
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), cfg)

	rec, _ := env.do(t, http.MethodGet, "/api/sync", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := env.do(t, http.MethodGet, "/api/sync", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", resp.Code)
}

// ----------------------------------------------------------------------------
// Status routes
// ----------------------------------------------------------------------------

func TestHandleHealth(t *testing.T) {
	st := newFakeStore()
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), st, testConfig())

	rec, _ := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
	assert.Contains(t, rec.Body.String(), `"max_concurrent":1`)

	st.pingErr = errors.New("connection refused")
	rec, _ = env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"unreachable"`)
}

func TestHandleRuns(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), testConfig())

	env.do(t, http.MethodPost, "/api/sync", `{"action":"sync-all"}`)
	env.do(t, http.MethodPost, "/api/sync", `{"action":"sync-latest"}`)

	rec, resp := env.do(t, http.MethodGet, "/api/sync/runs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []core.RunSummary
	require.NoError(t, json.Unmarshal(resp.Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, core.CmdSyncLatest, runs[0].Command)
	assert.Equal(t, 2, runs[0].Skipped)
}

func TestHandleSources(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), testConfig())

	rec, resp := env.do(t, http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []sourceInfo
	require.NoError(t, json.Unmarshal(resp.Data, &infos))
	require.Len(t, infos, 12)
	assert.True(t, infos[0].Primary)
	assert.Equal(t, "Vehicles!A:Z", infos[0].Range)

	byID := make(map[source.ID]sourceInfo)
	for _, i := range infos {
		byID[i.ID] = i
	}
	assert.True(t, byID[source.Features].List)
	assert.False(t, byID[source.Price].List)
	assert.Equal(t, "Price", byID[source.Price].Label)
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), testConfig())

	rec, _ := env.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

// ----------------------------------------------------------------------------
// Event stream
// ----------------------------------------------------------------------------

func TestHandleEvents_Streams(t *testing.T) {
	env := newTestEnv(t, gridProvider(vehicleGrids(), nil), newFakeStore(), testConfig())
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sync/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return env.service.Events().Subscribers() == 1
	}, time.Second, 10*time.Millisecond)

	env.service.Events().Publish(core.Event{RunID: "r1", Stage: core.StageComplete, Message: "done"})

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}

	assert.Contains(t, lines, "event: complete")
	last := lines[len(lines)-1]
	var e core.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(last, "data: ")), &e))
	assert.Equal(t, "r1", e.RunID)
	assert.Equal(t, "done", e.Message)
}
