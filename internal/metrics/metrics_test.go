package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	return string(body)
}

func TestRecordScan(t *testing.T) {
	RecordScan(12, 3, 40*time.Millisecond, nil)
	RecordScan(0, 0, time.Millisecond, errors.New("boom"))

	out := scrape(t)
	assert.Contains(t, out, `repoview_scans_total{outcome="success"}`)
	assert.Contains(t, out, `repoview_scans_total{outcome="error"}`)
	// The failed scan does not reset the gauges.
	assert.Contains(t, out, "repoview_broken_links 3")
	assert.Contains(t, out, "repoview_files_scanned 12")
	assert.Contains(t, out, "repoview_scan_duration_seconds_count")
}

func TestRecordHTTPRequest(t *testing.T) {
	RecordHTTPRequest(http.MethodGet, "/blob", http.StatusNotFound, 5*time.Millisecond)

	out := scrape(t)
	assert.Contains(t, out, `repoview_http_requests_total{method="GET",route="/blob",status="404"}`)
	assert.Contains(t, out, `repoview_http_request_duration_seconds_count{method="GET",route="/blob"}`)
}

func TestLiveReloadMetrics(t *testing.T) {
	SetWebsocketClients(2)
	RecordReload()

	out := scrape(t)
	assert.Contains(t, out, "repoview_websocket_clients 2")
	assert.Contains(t, out, "repoview_reloads_total")
}

func TestRecordRenderCache(t *testing.T) {
	RecordRenderCache(true)
	RecordRenderCache(false)

	out := scrape(t)
	assert.Contains(t, out, `repoview_render_cache_lookups_total{result="hit"}`)
	assert.Contains(t, out, `repoview_render_cache_lookups_total{result="miss"}`)
}
