package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serp-go/pkg/history"
	"serp-go/pkg/metrics"
	"serp-go/pkg/serp"
	"serp-go/pkg/storage"
	"serp-go/pkg/tracker"
)

type fakeTracking struct {
	canFetch     bool
	trackErr     error
	volatilityFn func(keyword string, limit int) (serp.VolatilityReport, error)
	breakerState string

	gotKeywords []string
	gotDomain   string
}

func (f *fakeTracking) CanFetch() bool { return f.canFetch }

func (f *fakeTracking) Track(ctx context.Context, keyword, domain string) (*tracker.Result, error) {
	results, err := f.TrackAll(ctx, []string{keyword}, domain)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (f *fakeTracking) TrackAll(ctx context.Context, keywords []string, domain string) ([]tracker.Result, error) {
	f.gotKeywords, f.gotDomain = keywords, domain
	if f.trackErr != nil {
		return nil, f.trackErr
	}
	results := make([]tracker.Result, 0, len(keywords))
	for _, keyword := range keywords {
		results = append(results, tracker.Result{
			Keyword: keyword,
			Domain:  domain,
			Metrics: serp.DeriveMetrics(serp.Some(3), serp.None[int]()),
		})
	}
	return results, nil
}

func (f *fakeTracking) Volatility(ctx context.Context, keyword string, limit int) (serp.VolatilityReport, error) {
	if f.volatilityFn != nil {
		return f.volatilityFn(keyword, limit)
	}
	return serp.AnalyzeVolatility(nil), nil
}

func (f *fakeTracking) Stats() tracker.StatsSnapshot {
	return tracker.StatsSnapshot{KeywordsTracked: 7, BreakerState: f.breakerState}
}

func newTestApp(t *testing.T, tracking *fakeTracking) (*Controller, *history.SnapshotManager) {
	t.Helper()
	manager := history.NewSnapshotManager(storage.NewMemoryStorage())
	return NewController(tracking, manager, ControllerConfig{MaxKeywords: 3}), manager
}

func do(t *testing.T, ctrl *Controller, method, target, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := NewApp(ctrl, nil).Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestController_Compare(t *testing.T) {
	ctrl, _ := newTestApp(t, &fakeTracking{})

	body := `{
		"from": {"capturedAt": "2024-03-01T00:00:00Z", "items": [
			{"domain": "x.com", "rankAbsolute": 1},
			{"domain": "y.com", "rankAbsolute": 2}
		]},
		"to": {"capturedAt": "2024-03-02T00:00:00Z", "items": [
			{"domain": "y.com", "rankAbsolute": 1},
			{"domain": "z.com", "rankAbsolute": 2}
		]}
	}`

	status, data := do(t, ctrl, http.MethodPost, "/api/v1/serp/compare", body)
	require.Equal(t, http.StatusOK, status, string(data))

	var result serp.ComparisonResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, 1.0, result.VolatilityScore)
	assert.Equal(t, 3, result.TotalChanges)
	require.Len(t, result.PositionChanges, 1)
	assert.Equal(t, serp.DirectionUp, result.PositionChanges[0].Direction)
	assert.Contains(t, string(data), `"newDomains":[{"domain":"z.com","position":2`)
}

func TestController_BadJSON(t *testing.T) {
	ctrl, _ := newTestApp(t, &fakeTracking{canFetch: true})

	for _, path := range []string{"/api/v1/serp/compare", "/api/v1/serp/volatility", "/api/v1/track"} {
		status, data := do(t, ctrl, http.MethodPost, path, `{"from": [}`)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Contains(t, string(data), `"error"`, path)
	}
}

func TestController_AnalyzeVolatility(t *testing.T) {
	ctrl, _ := newTestApp(t, &fakeTracking{})

	status, data := do(t, ctrl, http.MethodPost, "/api/v1/serp/volatility", `{"snapshots": []}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"averageVolatility":0,"maxVolatility":0,"minVolatility":0,"trend":"stable","comparisons":[]}`, string(data))

	body := `{"snapshots": [
		{"capturedAt": "2024-03-02T00:00:00Z", "items": [{"domain": "b.com", "rankAbsolute": 1}]},
		{"capturedAt": "2024-03-01T00:00:00Z", "items": [{"domain": "a.com", "rankAbsolute": 1}]}
	]}`
	status, data = do(t, ctrl, http.MethodPost, "/api/v1/serp/volatility", body)
	require.Equal(t, http.StatusOK, status)

	var report serp.VolatilityReport
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report.Comparisons, 1)
	assert.Equal(t, 1.0, report.AverageVolatility)
	assert.Equal(t, "a.com", report.Comparisons[0].LostDomains[0].Domain)
}

func TestController_KeywordVolatility(t *testing.T) {
	var gotKeyword string
	var gotLimit int
	tracking := &fakeTracking{
		volatilityFn: func(keyword string, limit int) (serp.VolatilityReport, error) {
			gotKeyword, gotLimit = keyword, limit
			return serp.AnalyzeVolatility(nil), nil
		},
	}
	ctrl, _ := newTestApp(t, tracking)

	status, _ := do(t, ctrl, http.MethodGet, "/api/v1/serp/volatility/running%20shoes?limit=5", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "running shoes", gotKeyword)
	assert.Equal(t, 5, gotLimit)

	status, _ = do(t, ctrl, http.MethodGet, "/api/v1/serp/volatility/shoes?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, status)

	tracking.volatilityFn = func(string, int) (serp.VolatilityReport, error) {
		return serp.VolatilityReport{}, errors.New("disk gone")
	}
	status, data := do(t, ctrl, http.MethodGet, "/api/v1/serp/volatility/shoes", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, string(data), "disk gone")
}

func TestController_KeywordHistory(t *testing.T) {
	ctrl, manager := newTestApp(t, &fakeTracking{})

	for i := 0; i < 3; i++ {
		_, err := manager.SaveSnapshot(context.Background(), serp.Snapshot{
			Keyword:    "shoes",
			CapturedAt: time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	status, data := do(t, ctrl, http.MethodGet, "/api/v1/serp/history/shoes?limit=2", "")
	require.Equal(t, http.StatusOK, status)

	var index []history.SnapshotMetadata
	require.NoError(t, json.Unmarshal(data, &index))
	require.Len(t, index, 2)
	assert.Equal(t, 3, index[0].CapturedAt.Day())
}

func TestController_Track(t *testing.T) {
	tracking := &fakeTracking{canFetch: true}
	ctrl, _ := newTestApp(t, tracking)

	status, data := do(t, ctrl, http.MethodPost, "/api/v1/track", `{"keywords": ["shoes", "boots"], "domain": " example.com "}`)
	require.Equal(t, http.StatusOK, status, string(data))
	assert.Equal(t, []string{"shoes", "boots"}, tracking.gotKeywords)
	assert.Equal(t, "example.com", tracking.gotDomain)

	var resp TrackResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 3, resp.Results[0].Metrics.Position.OrElse(0))

	status, data = do(t, ctrl, http.MethodPost, "/api/v1/track", `{"keywords": []}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"keywords must have at least 1 entries"}`, string(data))

	status, data = do(t, ctrl, http.MethodPost, "/api/v1/track", `{"keywords": ["shoes", ""]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"keywords[1] is required"}`, string(data))

	status, _ = do(t, ctrl, http.MethodPost, "/api/v1/track", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, ctrl, http.MethodPost, "/api/v1/track", `{"keywords": ["a", "b", "c", "d"]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	tracking.trackErr = errors.New("upstream down")
	status, _ = do(t, ctrl, http.MethodPost, "/api/v1/track", `{"keywords": ["shoes"]}`)
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestController_TrackDisabled(t *testing.T) {
	ctrl, _ := newTestApp(t, &fakeTracking{canFetch: false})

	status, data := do(t, ctrl, http.MethodPost, "/api/v1/track", `{"keywords": ["shoes"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(data), "credentials")
}

func TestController_Metrics(t *testing.T) {
	ctrl, _ := newTestApp(t, &fakeTracking{})

	tests := []struct {
		query    string
		status   int
		expected string
	}{
		{"?position=1", http.StatusOK, `{"position":1,"searchVolume":null,"estimatedCtr":0.316,"estimatedTraffic":null,"visibilityScore":null}`},
		{"?position=1&volume=10000", http.StatusOK, `{"position":1,"searchVolume":10000,"estimatedCtr":0.316,"estimatedTraffic":3160,"visibilityScore":67}`},
		{"", http.StatusOK, `{"position":null,"searchVolume":null,"estimatedCtr":null,"estimatedTraffic":null,"visibilityScore":null}`},
		{"?position=first", http.StatusBadRequest, `{"error":"invalid position: first"}`},
		{"?volume=-5", http.StatusBadRequest, `{"error":"invalid volume: -5"}`},
	}

	for _, test := range tests {
		status, data := do(t, ctrl, http.MethodGet, "/api/v1/metrics"+test.query, "")
		assert.Equal(t, test.status, status, test.query)
		assert.JSONEq(t, test.expected, string(data), test.query)
	}
}

func TestController_Health(t *testing.T) {
	ctrl, _ := newTestApp(t, &fakeTracking{canFetch: true})

	status, data := do(t, ctrl, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Health["tracking"])
	assert.True(t, resp.Health["upstream"])
	assert.Equal(t, uint64(7), resp.Metrics.KeywordsTracked)
}

func TestController_HealthReportsOpenBreaker(t *testing.T) {
	ctrl, _ := newTestApp(t, &fakeTracking{canFetch: true, breakerState: "open"})

	status, data := do(t, ctrl, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.Health["upstream"])
	assert.Equal(t, "open", resp.Metrics.BreakerState)
}

func TestApp_ServesMetrics(t *testing.T) {
	ctrl, _ := newTestApp(t, &fakeTracking{})
	app := NewApp(ctrl, metrics.NewCollector("serp"))

	resp, err := app.Test(httptestRequest(t, http.MethodGet, "/health"), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptestRequest(t, http.MethodGet, "/metrics"), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `serp_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func httptestRequest(t *testing.T, method, target string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	return req
}
