package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/ctgov-client/internal/testutil"
	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/pagination"
	"github.com/Sternrassler/ctgov-client/pkg/store"
	"github.com/Sternrassler/ctgov-client/pkg/table"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryDatasets keeps datasets in a map.
type memoryDatasets struct {
	mu   sync.Mutex
	data map[string]*store.Dataset
	err  error
}

func newMemoryDatasets() *memoryDatasets {
	return &memoryDatasets{data: make(map[string]*store.Dataset)}
}

func (m *memoryDatasets) Save(_ context.Context, name string, t *table.Table, _ time.Duration) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[name] = &store.Dataset{Name: name, Table: t.Clone(), SavedAt: time.Now().UTC(), Rows: t.Len()}
	return nil
}

func (m *memoryDatasets) Load(_ context.Context, name string) (*store.Dataset, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	ds, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrDatasetNotFound, name)
	}
	return ds, nil
}

func (m *memoryDatasets) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[name]; !ok {
		return fmt.Errorf("%w: %s", store.ErrDatasetNotFound, name)
	}
	delete(m.data, name)
	return nil
}

func (m *memoryDatasets) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	names := make([]string, 0, len(m.data))
	for name := range m.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// setupServer wires the server to a mock registry and in-memory datasets.
func setupServer(t *testing.T) (*gin.Engine, *testutil.MockRegistry, *memoryDatasets) {
	t.Helper()

	mock := testutil.NewMockRegistry()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond

	c, err := client.New(cfg, client.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	ds := newMemoryDatasets()
	return newServer(c, ds, time.Hour, zerolog.Nop()).router(), mock, ds
}

func do(r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	r, _, _ := setupServer(t)

	w := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	r, mock, _ := setupServer(t)
	mock.SetPage("", nil, "")

	do(r, http.MethodGet, "/api/trials?condition=x", nil)

	w := do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ctgov_requests_total")
}

func TestVersionEndpoint(t *testing.T) {
	r, mock, _ := setupServer(t)

	w := do(r, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2.0.3", body["api_version"])
	assert.Equal(t, "2026-10-17T09:00:00", body["data_timestamp"])

	mock.SetVersion(testutil.ServerError())
	w = do(r, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, codeUpstream, decodeError(t, w).Code)
}

func TestTrialsEndpoint(t *testing.T) {
	r, mock, ds := setupServer(t)
	mock.SetPage("", []map[string]any{
		testutil.Study("NCT1", "One"),
	}, "p2")
	mock.SetPage("p2", []map[string]any{
		testutil.Study("NCT2", "Two"),
	}, "")

	w := do(r, http.MethodGet, "/api/trials?condition=Pompe+Disease&status=completed&page_size=50&save=pompe", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Rows    int         `json:"rows"`
		Dataset string      `json:"dataset"`
		Table   table.Table `json:"table"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Rows)
	assert.Equal(t, "pompe", body.Dataset)
	assert.Equal(t, []any{"NCT1", "NCT2"}, body.Table.Column("nct_id"))
	assert.Equal(t, "pompe", w.Header().Get("X-Dataset"))

	first := mock.Requests()[0]
	assert.Equal(t, "Pompe Disease", first.Get("query.cond"))
	assert.Equal(t, "COMPLETED", first.Get("filter.overallStatus"))
	assert.Equal(t, "50", first.Get("pageSize"))

	saved, err := ds.Load(context.Background(), "pompe")
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Rows)
}

func TestTrialsEndpoint_AutoSaveName(t *testing.T) {
	r, mock, ds := setupServer(t)
	mock.SetPage("", []map[string]any{testutil.Study("NCT1", "One")}, "")

	w := do(r, http.MethodGet, "/api/trials?condition=Fabry+Disease&save=auto", nil)
	require.Equal(t, http.StatusOK, w.Code)

	names, err := ds.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fabry-disease_recruiting_10"}, names)
}

func TestTrialsEndpoint_CSV(t *testing.T) {
	r, mock, _ := setupServer(t)
	mock.SetPage("", []map[string]any{
		testutil.StudyWithStatus("NCT1", "One", "RECRUITING", "2024-05"),
	}, "")

	w := do(r, http.MethodGet, "/api/trials?condition=x&format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "nct_id,org_study_id,brief_title"))
	assert.Contains(t, lines[1], "NCT1,,One,RECRUITING,,2024-05-01")
}

func TestTrialsEndpoint_Validation(t *testing.T) {
	r, _, _ := setupServer(t)

	for _, target := range []string{
		"/api/trials",
		"/api/trials?condition=x&page_size=0",
		"/api/trials?condition=x&page_size=abc",
		"/api/trials?condition=x&page_size=1001",
		"/api/trials?condition=x&save=bad:name",
	} {
		w := do(r, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Equal(t, codeValidation, decodeError(t, w).Code, target)
	}
}

func TestTrialsEndpoint_UpstreamFailure(t *testing.T) {
	r, mock, ds := setupServer(t)
	mock.FailNext(2, testutil.ServerError())

	w := do(r, http.MethodGet, "/api/trials?condition=x&save=never", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, codeUpstream, resp.Code)
	assert.Equal(t, map[string]any{"status": float64(503), "class": "server"}, resp.Details)

	_, err := ds.Load(context.Background(), "never")
	assert.ErrorIs(t, err, store.ErrDatasetNotFound)
}

func TestTrialsEndpoint_MalformedUpstream(t *testing.T) {
	r, mock, _ := setupServer(t)
	mock.SetRawPage("", testutil.MockResponse{StatusCode: http.StatusOK, Body: "<html>"})

	w := do(r, http.MethodGet, "/api/trials?condition=x", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, codeMalformed, decodeError(t, w).Code)
}

func TestSummaryEndpoint(t *testing.T) {
	r, mock, _ := setupServer(t)

	withPhase := func(id, phase string) map[string]any {
		s := testutil.Study(id, id)
		s["protocolSection"].(map[string]any)["designModule"] = map[string]any{
			"phases": []any{phase},
		}
		return s
	}
	mock.SetPage("", []map[string]any{
		withPhase("NCT1", "PHASE2"),
		withPhase("NCT2", "PHASE3"),
		withPhase("NCT3", "PHASE2"),
		testutil.Study("NCT4", "no phase"),
	}, "")

	w := do(r, http.MethodGet, "/api/trials/summary?condition=x", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Rows   int           `json:"rows"`
		Column string        `json:"column"`
		Counts []table.Count `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Rows)
	assert.Equal(t, "phase", body.Column)
	assert.Equal(t, []table.Count{{Value: "PHASE2", Count: 2}, {Value: "PHASE3", Count: 1}}, body.Counts)
}

func TestSummaryEndpoint_UnknownColumn(t *testing.T) {
	r, _, _ := setupServer(t)

	w := do(r, http.MethodGet, "/api/trials/summary?condition=x&column=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDatasetEndpoints(t *testing.T) {
	r, _, ds := setupServer(t)
	ctx := context.Background()

	require.NoError(t, ds.Save(ctx, "b", table.FromRows(table.Row{"nct_id": "NCT1"}), 0))
	require.NoError(t, ds.Save(ctx, "a", table.FromRows(table.Row{"nct_id": "NCT2"}), 0))

	w := do(r, http.MethodGet, "/api/datasets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"datasets":["a","b"]}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/datasets/a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Name string `json:"name"`
		Rows int    `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, 1, got.Rows)

	w = do(r, http.MethodGet, "/api/datasets/a?format=csv", nil)
	assert.Equal(t, "nct_id\nNCT2\n", w.Body.String())

	w = do(r, http.MethodDelete, "/api/datasets/a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/datasets/a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, codeNotFound, decodeError(t, w).Code)

	w = do(r, http.MethodDelete, "/api/datasets/a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDatasetEndpoints_StoreFailure(t *testing.T) {
	r, _, ds := setupServer(t)
	ds.err = errors.New("connection refused")

	w := do(r, http.MethodGet, "/api/datasets", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, codeInternal, decodeError(t, w).Code)
}

func TestMergeEndpoint(t *testing.T) {
	r, _, ds := setupServer(t)
	ctx := context.Background()

	require.NoError(t, ds.Save(ctx, "left", table.FromRows(
		table.Row{"nct_id": "NCT1", "brief_title": "Left title"},
		table.Row{"nct_id": "NCT2"},
	), 0))
	require.NoError(t, ds.Save(ctx, "right", table.FromRows(
		table.Row{"nct_id": "NCT2", "brief_title": "Right title"},
		table.Row{"nct_id": "NCT3", "brief_title": "Only right"},
	), 0))

	w := do(r, http.MethodPost, "/api/datasets/merge", gin.H{"left": "left", "right": "right", "save": "both"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Rows  int         `json:"rows"`
		How   string      `json:"how"`
		Table table.Table `json:"table"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Rows)
	assert.Equal(t, "outer", body.How)
	assert.Equal(t, []any{"Left title", "Right title", "Only right"}, body.Table.Column("brief_title"))
	assert.Equal(t, []any{"dataset1", "dataset1", nil}, body.Table.Column("source_1"))
	assert.Equal(t, []any{nil, "dataset2", "dataset2"}, body.Table.Column("source_2"))

	saved, err := ds.Load(ctx, "both")
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Rows)

	w = do(r, http.MethodPost, "/api/datasets/merge", gin.H{"left": "left", "right": "right", "how": "inner"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Rows)
}

func TestMergeEndpoint_Errors(t *testing.T) {
	r, _, ds := setupServer(t)
	require.NoError(t, ds.Save(context.Background(), "left", table.FromRows(table.Row{"nct_id": "NCT1"}), 0))

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{name: "missing right", body: gin.H{"left": "left"}, status: http.StatusBadRequest, code: codeInvalidJSON},
		{name: "bad join", body: gin.H{"left": "left", "right": "left", "how": "cross"}, status: http.StatusBadRequest, code: codeValidation},
		{name: "unknown dataset", body: gin.H{"left": "left", "right": "nope"}, status: http.StatusNotFound, code: codeNotFound},
		{name: "bad save name", body: gin.H{"left": "left", "right": "left", "save": "a b"}, status: http.StatusBadRequest, code: codeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/datasets/merge", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestRespondWithFetchError_PageLimit(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	s := newServer(nil, nil, 0, zerolog.Nop())
	s.respondWithFetchError(c, fmt.Errorf("%w: 3 pages", pagination.ErrPageLimit))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, codePageLimit, decodeError(t, w).Code)
}
