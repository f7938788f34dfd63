//go:build integration
// +build integration

package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/cache"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/dataset"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/observability"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/render"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/service"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/testhelpers"
)

var testLogger *zap.Logger

func init() {
	var err error
	testLogger, err = observability.NewLogger()
	if err != nil {
		panic(err)
	}
}

type integrationStack struct {
	server *httptest.Server
	store  *dataset.Store
	cache  *cache.InMemoryCache
	path   string
}

// setupIntegrationStack serves a CSV-backed store through the full router.
func setupIntegrationStack(t *testing.T, records []models.RentalRecord, limiter *rate.Limiter) *integrationStack {
	t.Helper()
	resetGlobals(t)
	path := filepath.Join(t.TempDir(), "bike_sharing.csv")
	if err := os.WriteFile(path, []byte(testhelpers.CSV(records)), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	store := dataset.NewStore(dataset.CSVSource{Path: path}, testLogger)
	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	c := cache.NewInMemoryCache()
	svc := service.NewDashboardService(store, c, 5*time.Minute, 5*time.Second)
	h := NewHandler(svc, store, store, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, testLogger, limiter, render.DefaultSize)
	srv := httptest.NewServer(NewRouter(h, testLogger, RouterConfig{RequestTimeout: 5 * time.Second, TestingMode: true}))
	t.Cleanup(srv.Close)
	return &integrationStack{server: srv, store: store, cache: c, path: path}
}

func integrationRecords(t *testing.T) []models.RentalRecord {
	t.Helper()
	var records []models.RentalRecord
	for _, day := range []string{"2011-01-03", "2011-01-08", "2012-06-04"} {
		for _, hour := range []int{7, 8, 13, 18, 23} {
			records = append(records, testhelpers.Record(t, day, hour, 1, 9))
		}
	}
	return records
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// TestIntegration_Report_CachedAfterFirstRequest verifies the second request is served from cache.
func TestIntegration_Report_CachedAfterFirstRequest(t *testing.T) {
	stack := setupIntegrationStack(t, integrationRecords(t), nil)

	var first, second models.Report
	if code := getJSON(t, stack.server.URL+"/api/report", &first); code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", code)
	}
	if stack.cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", stack.cache.Len())
	}
	if code := getJSON(t, stack.server.URL+"/api/report", &second); code != http.StatusOK {
		t.Fatalf("second status = %d, want 200", code)
	}
	if first.Summary != second.Summary || first.Summary.TotalRentals != 150 {
		t.Errorf("summaries = %+v / %+v, want 150 total", first.Summary, second.Summary)
	}
	if !first.GeneratedAt.Equal(second.GeneratedAt) {
		t.Error("second report was regenerated, want cached copy")
	}
}

// TestIntegration_Reload_InvalidatesByVersion verifies a changed CSV yields new totals.
func TestIntegration_Reload_InvalidatesByVersion(t *testing.T) {
	records := integrationRecords(t)
	stack := setupIntegrationStack(t, records, nil)

	var before models.Report
	getJSON(t, stack.server.URL+"/api/report", &before)

	records = append(records, testhelpers.Record(t, "2012-12-31", 12, 40, 60))
	if err := os.WriteFile(stack.path, []byte(testhelpers.CSV(records)), 0o644); err != nil {
		t.Fatalf("rewrite csv: %v", err)
	}
	resp, err := http.Post(stack.server.URL+"/test/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /test/reload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reload status = %d, want 200", resp.StatusCode)
	}

	var after models.Report
	getJSON(t, stack.server.URL+"/api/report", &after)
	if after.Summary.TotalRentals != before.Summary.TotalRentals+100 {
		t.Errorf("total after reload = %d, want %d", after.Summary.TotalRentals, before.Summary.TotalRentals+100)
	}
	if after.Version == before.Version {
		t.Error("dataset version unchanged after reload")
	}
}

func TestIntegration_ChartAndExport(t *testing.T) {
	stack := setupIntegrationStack(t, integrationRecords(t), nil)

	resp, err := http.Get(stack.server.URL + "/api/charts/hourly.svg?start=2011-01-01&end=2011-01-31")
	if err != nil {
		t.Fatalf("GET chart: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/svg+xml" {
		t.Errorf("chart status = %d, type = %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp2, err := http.Get(stack.server.URL + "/api/export.xlsx")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK || !strings.Contains(resp2.Header.Get("Content-Disposition"), ".xlsx") {
		t.Errorf("export status = %d, disposition = %q", resp2.StatusCode, resp2.Header.Get("Content-Disposition"))
	}
}

func TestIntegration_Health_FullStack(t *testing.T) {
	stack := setupIntegrationStack(t, integrationRecords(t), nil)

	var body map[string]interface{}
	if code := getJSON(t, stack.server.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestIntegration_Metrics_Format(t *testing.T) {
	stack := setupIntegrationStack(t, integrationRecords(t), nil)
	getJSON(t, stack.server.URL+"/api/report", nil)

	resp, err := http.Get(stack.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, name := range []string{"httpRequestsTotal", "reportsTotal", "datasetRecords"} {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

// TestIntegration_RateLimiting_Concurrent verifies the limiter under concurrent load.
func TestIntegration_RateLimiting_Concurrent(t *testing.T) {
	stack := setupIntegrationStack(t, integrationRecords(t), rate.NewLimiter(rate.Every(time.Hour), 5))

	var mu sync.Mutex
	codes := make(map[int]int)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(stack.server.URL + "/api/report")
			if err != nil {
				t.Errorf("GET: %v", err)
				return
			}
			resp.Body.Close()
			mu.Lock()
			codes[resp.StatusCode]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if codes[http.StatusOK] != 5 || codes[http.StatusTooManyRequests] != 15 {
		t.Errorf("status counts = %v, want 5 OK and 15 rate limited", codes)
	}
}
