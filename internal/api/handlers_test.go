package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmrzaf/termwatch/internal/app"
	"github.com/mmrzaf/termwatch/internal/domain"
	"github.com/mmrzaf/termwatch/internal/infra/repos/runs"
	"github.com/mmrzaf/termwatch/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *runs.Store) {
	t.Helper()
	repo := runs.NewSQLiteRepository(filepath.Join(t.TempDir(), "reporting.db"))
	_, err := repo.Init(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	h := NewHandler(app.NewReportService(repo.Store, logging.Discard()), logging.Discard(), 5*time.Second)
	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(CORSMiddleware("*", LoggingMiddleware(logging.Discard(), mux)))
	t.Cleanup(srv.Close)
	return srv, repo.Store
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func seedRuns(t *testing.T, store *runs.Store, n int) []*domain.Run {
	t.Helper()
	ctx := context.Background()
	out := make([]*domain.Run, 0, n)
	for i := 0; i < n; i++ {
		run := &domain.Run{StartTime: base.Add(time.Duration(i) * time.Hour), Success: true, ServerName: "TERM01"}
		require.NoError(t, store.CreateRun(ctx, run))
		out = append(out, run)
	}
	return out
}

func TestDashboardEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seeded := seedRuns(t, store, 3)

	var body map[string]any
	status := getJSON(t, srv.URL+"/api/dashboard", &body)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["totalRuns"])
	assert.EqualValues(t, 0, body["failedRuns"])
	latest := body["latestRun"].(map[string]any)
	assert.Equal(t, seeded[2].RunID.String(), latest["runId"])
	// Terminology outcomes are null, not false, when a run had no such steps.
	assert.Contains(t, latest, "snomedSuccess")
	assert.Nil(t, latest["snomedSuccess"])
	assert.NotContains(t, body, "degraded")
}

func TestDashboardEndpointEmptyStore(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/dashboard", &body))
	assert.Nil(t, body["latestRun"])
	assert.Nil(t, body["lastSuccessfulUpdate"])
	assert.Equal(t, []any{}, body["recentRuns"])
}

func TestListRunsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedRuns(t, store, 25)

	var page domain.RunPage
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/runs?page=2&pageSize=10", &page))
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Runs, 10)
	assert.True(t, page.Runs[0].StartTime.Equal(base.Add(14*time.Hour)))

	var defaults domain.RunPage
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/runs", &defaults))
	assert.Equal(t, 1, defaults.Page)
	assert.Equal(t, 20, defaults.PageSize)
	assert.Len(t, defaults.Runs, 20)
}

func TestListRunsRejectsBadPaging(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, q := range []string{"page=0", "page=-1", "pageSize=abc", "pageSize=0", "pageSize=501", "pageSize=1099511627776"} {
		var body map[string]string
		status := getJSON(t, srv.URL+"/api/runs?"+q, &body)
		assert.Equal(t, http.StatusBadRequest, status, q)
		assert.NotEmpty(t, body["error"], q)
	}
}

func TestGetRunEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	run := seedRuns(t, store, 1)[0]
	ctx := context.Background()
	require.NoError(t, store.AddStep(ctx, &domain.Step{RunID: run.RunID, TerminologyType: domain.TerminologySNOMED, StepName: "Check TRUD", StepOrder: 1, Success: true}))
	require.NoError(t, store.AddError(ctx, &domain.RunError{RunID: run.RunID, ErrorMessage: "slow mirror", ErrorTimestamp: base}))

	var detail domain.RunDetail
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/runs/"+run.RunID.String(), &detail))
	assert.Equal(t, run.RunID, detail.Run.RunID)
	assert.Len(t, detail.Steps, 1)
	assert.Len(t, detail.Errors, 1)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/runs/not-a-uuid", nil))
}

func TestLatestEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/latest", nil))

	seeded := seedRuns(t, store, 2)
	var latest domain.Summary
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/latest", &latest))
	assert.Equal(t, seeded[1].RunID, latest.RunID)
}

func TestReleasesEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	for i, item := range []string{"SNOMED", "SNOMED", "SNOMED", "dm+d", "dm+d"} {
		require.NoError(t, store.SaveRelease(ctx, &domain.Release{ItemName: item, ReleaseID: fmt.Sprintf("r%d", i), DetectedDate: base.Add(time.Duration(i) * time.Hour)}))
	}

	var list []domain.Release
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/releases?itemName=SNOMED", &list))
	require.Len(t, list, 3)
	assert.Equal(t, "r2", list[0].ReleaseID)

	list = nil
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/releases?itemName=dm%2Bd", &list))
	assert.Len(t, list, 2)

	list = nil
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/releases", &list))
	assert.Len(t, list, 5)
}

func TestErrorsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	run := seedRuns(t, store, 1)[0]
	for i := 0; i < 25; i++ {
		require.NoError(t, store.AddError(context.Background(), &domain.RunError{RunID: run.RunID, ErrorMessage: "boom", ErrorTimestamp: base.Add(time.Duration(i) * time.Second)}))
	}

	var list []domain.RunError
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/errors", &list))
	assert.Len(t, list, 20)

	list = nil
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/errors?count=5", &list))
	assert.Len(t, list, 5)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/errors?count=0", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/errors?count=1099511627776", nil))
}

func TestStatsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	var empty map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stats", &empty))
	assert.EqualValues(t, 0, empty["totalRuns"])
	assert.EqualValues(t, 0, empty["averageValidationRate"])
	assert.Nil(t, empty["lastRun"])

	seedRuns(t, store, 2)
	var st domain.Stats
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stats", &st))
	assert.Equal(t, 2, st.TotalRuns)
	require.NotNil(t, st.LastRun)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	srv, store := newTestServer(t)
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", nil))

	require.NoError(t, store.Close())

	var body map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/healthz", &body))
	assert.Equal(t, "reporting store unavailable", body["error"])
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/runs/"+uuid.NewString(), nil))
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/dashboard", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("page: %w", domain.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("run: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("stats: %w: %w", domain.ErrUnavailable, fmt.Errorf("dial")), http.StatusServiceUnavailable},
		{fmt.Errorf("stats: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("stats: %w", context.Canceled), http.StatusServiceUnavailable},
		{fmt.Errorf("surprise"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}
