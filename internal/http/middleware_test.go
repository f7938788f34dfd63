package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/render"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/traffic"
)

func TestMiddleware_CorrelationIDGenerated(t *testing.T) {
	resetGlobals(t)
	_, router := newTestRouter(t, &mockSnapshots{ds: testDataset(t)}, nil, zap.NewNop(), nil)

	w := serve(router, "GET", "/health")

	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		if id, _ := r.Context().Value("correlation_id").(string); id != "abc" {
			t.Errorf("context correlation_id = %q, want abc", id)
		}
		logger, ok := r.Context().Value("logger").(*zap.Logger)
		if !ok {
			t.Fatal("context logger missing")
		}
		logger.Info("ping")
	})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "abc" {
		t.Errorf("X-Correlation-ID = %q, want abc", got)
	}
	entries := logs.FilterMessage("ping").All()
	if len(entries) != 1 || entries[0].ContextMap()["correlation_id"] != "abc" {
		t.Errorf("request logger not scoped to correlation id: %v", entries)
	}
}

func TestMiddleware_GetRouteUsesTemplate(t *testing.T) {
	var route string
	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			route = getRoute(r)
		})
	})
	router.HandleFunc("/api/charts/{view}.svg", func(w http.ResponseWriter, r *http.Request) {})

	serve(router, "GET", "/api/charts/daily.svg")

	if route != "/api/charts/{view}.svg" {
		t.Errorf("getRoute() = %q, want /api/charts/{view}.svg", route)
	}
}

func TestMiddleware_GetRouteUnmatched(t *testing.T) {
	req := httptest.NewRequest("GET", "/nowhere", nil)
	if got := getRoute(req); got != "unmatched" {
		t.Errorf("getRoute() = %q, want unmatched", got)
	}
}

func TestMiddleware_MetricsTracksInFlight(t *testing.T) {
	var during int64
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if during != 1 {
		t.Errorf("in-flight during request = %d, want 1", during)
	}
	if after := InFlightCount(); after != 0 {
		t.Errorf("in-flight after request = %d, want 0", after)
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
}

func TestMiddleware_MetricsEndpoint(t *testing.T) {
	resetGlobals(t)
	_, router := newTestRouter(t, &mockSnapshots{ds: testDataset(t)}, nil, zap.NewNop(), nil)

	serve(router, "GET", "/api/report")
	w := serve(router, "GET", "/metrics")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "httpRequestsTotal") || !strings.Contains(body, `route="/api/report"`) {
		t.Error("metrics output missing request counter for /api/report")
	}
}

func TestTimeoutMiddleware_CancelsContextAfterTimeout(t *testing.T) {
	resetGlobals(t)
	h := NewHandler(blockingReports{}, &mockSnapshots{ds: testDataset(t)}, nil, nil, zap.NewNop(), nil, render.DefaultSize)
	router := NewRouter(h, zap.NewNop(), RouterConfig{RequestTimeout: 50 * time.Millisecond})

	start := time.Now()
	w := serve(router, "GET", "/api/report")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("request took %v, want it bounded by the timeout", elapsed)
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	handler := TimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Error("context has no deadline")
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	resetGlobals(t)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 2)
	_, router := newTestRouter(t, &mockSnapshots{ds: testDataset(t)}, nil, zap.NewNop(), limiter)

	for i := 0; i < 3; i++ {
		w := serve(router, "GET", "/api/report")
		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
			continue
		}
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d: status = %d, want 429", i, w.Code)
		}
		if body := decodeError(t, w); body.Error.Code != "RATE_LIMITED" {
			t.Errorf("error.code = %q, want RATE_LIMITED", body.Error.Code)
		}
	}
	if got := traffic.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount = %d, want 1", got)
	}
}

// TestRateLimitMiddleware_HealthNotLimited verifies probes bypass the limiter.
func TestRateLimitMiddleware_HealthNotLimited(t *testing.T) {
	resetGlobals(t)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	_, router := newTestRouter(t, &mockSnapshots{ds: testDataset(t)}, nil, zap.NewNop(), limiter)

	serve(router, "GET", "/api/report")
	if w := serve(router, "GET", "/api/report"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second report status = %d, want 429", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w := serve(router, "GET", "/health"); w.Code == http.StatusTooManyRequests {
			t.Fatalf("health request %d was rate limited", i)
		}
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	handler := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestWaitForInFlight_ReturnsWhenIdle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WaitForInFlight(ctx, time.Millisecond); err != nil {
		t.Errorf("WaitForInFlight() error = %v, want nil", err)
	}
}
