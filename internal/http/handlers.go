package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/dataset"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/lifecycle"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/observability"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/render"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/report"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/traffic"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/validation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportService produces reports. Implemented by service.DashboardService.
type ReportService interface {
	GetReport(ctx context.Context, r models.DateRange) (models.Report, error)
}

// Snapshots exposes the loaded dataset for health checks. Implemented by dataset.Store.
type Snapshots interface {
	Current() (*dataset.Dataset, error)
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	reports          ReportService
	snapshots        Snapshots
	reloader         dataset.Reloader
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	chartSize        render.Size
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. reloader and rateLimiter may be nil.
func NewHandler(
	reports ReportService,
	snapshots Snapshots,
	reloader dataset.Reloader,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
	chartSize render.Size,
) *Handler {
	return &Handler{
		reports:      reports,
		snapshots:    snapshots,
		reloader:     reloader,
		healthConfig: healthConfig,
		logger:       logger,
		rateLimiter:  rateLimiter,
		chartSize:    chartSize,
	}
}

// GetDashboard handles GET /. Invalid input and an empty range are shown
// on the page rather than as JSON errors.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	dr, err := validation.ParseDateRange(start, end)
	if err != nil {
		writePage(w, r, http.StatusBadRequest, render.ErrorPage(start, end, err.Error()))
		return
	}

	rep, err := h.reports.GetReport(r.Context(), dr)
	switch {
	case err == nil:
		writePage(w, r, http.StatusOK, render.NewPage(rep))
	case errors.Is(err, report.ErrNoData):
		writePage(w, r, http.StatusOK, render.NoDataPage(dr))
	case errors.Is(err, dataset.ErrNotLoaded):
		writePage(w, r, http.StatusServiceUnavailable, render.ErrorPage(start, end, "The dataset is not loaded yet. Try again shortly."))
	case errors.Is(err, context.DeadlineExceeded):
		writePage(w, r, http.StatusServiceUnavailable, render.ErrorPage(start, end, "Building the dashboard timed out. Try again shortly."))
	default:
		logError(r, "dashboard failed", err)
		writePage(w, r, http.StatusInternalServerError, render.ErrorPage(start, end, "Unable to build the dashboard."))
	}
}

// GetReport handles GET /api/report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.reportFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetChart handles GET /api/charts/{view}.svg.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	view := mux.Vars(r)["view"]
	if _, ok := render.LookupView(view); !ok {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_VIEW", "unknown chart view: "+view)
		return
	}
	rep, ok := h.reportFor(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.Chart(&buf, view, rep, h.chartSize); err != nil {
		observability.ChartRendersTotal.WithLabelValues(view, "error").Inc()
		writeReportError(w, r, err)
		return
	}
	observability.ChartRendersTotal.WithLabelValues(view, "success").Inc()
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GetExport handles GET /api/export.xlsx.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.reportFor(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.Workbook(&buf, rep); err != nil {
		observability.ExportsTotal.WithLabelValues("error").Inc()
		writeReportError(w, r, err)
		return
	}
	observability.ExportsTotal.WithLabelValues("success").Inc()
	filename := "bike-sharing_" + rep.Range.Key() + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// reportFor parses the range query and fetches its report. On failure it
// writes the error response and returns false.
func (h *Handler) reportFor(w http.ResponseWriter, r *http.Request) (models.Report, bool) {
	dr, err := validation.ParseDateRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeReportError(w, r, err)
		return models.Report{}, false
	}
	rep, err := h.reports.GetReport(r.Context(), dr)
	if err != nil {
		writeReportError(w, r, err)
		return models.Report{}, false
	}
	return rep, true
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"dataset": "unavailable"}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"uptime":    lifecycle.Uptime().Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if ds, err := h.snapshots.Current(); err == nil {
		checks["dataset"] = "healthy"
		resp["dataset"] = map[string]interface{}{
			"source":   ds.Source,
			"records":  len(ds.Records),
			"version":  ds.Version,
			"loadedAt": ds.LoadedAt.Format(time.RFC3339),
		}
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if _, err := h.snapshots.Current(); err != nil {
		return healthResult{"starting", http.StatusServiceUnavailable, "dataset_not_loaded"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	// Overloaded when rate-limit denials reach the threshold share of traffic.
	if h.healthConfig.OverloadWindow > 0 && h.healthConfig.OverloadThresholdPct > 0 {
		total := traffic.RequestCount(h.healthConfig.OverloadWindow)
		denied := traffic.DenialCount(h.healthConfig.OverloadWindow)
		if total > 0 && denied*100 >= h.healthConfig.OverloadThresholdPct*total {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		failures, total := traffic.FailureRate(h.healthConfig.DegradedWindow)
		if total > 0 && failures*100 >= h.healthConfig.DegradedErrorPct*total {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		corrID = v
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeReportError maps service and render errors to the JSON error envelope.
func writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalidDate):
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE", err.Error())
	case errors.Is(err, validation.ErrInvalidRange):
		writeError(w, r, http.StatusBadRequest, "INVALID_RANGE", err.Error())
	case errors.Is(err, report.ErrNoData):
		writeError(w, r, http.StatusNotFound, "NO_DATA", render.NoDataWarning)
	case errors.Is(err, render.ErrEmptyView):
		writeError(w, r, http.StatusNotFound, "NO_DATA", "No data for this chart in the selected date range.")
	case errors.Is(err, render.ErrUnknownView):
		writeError(w, r, http.StatusNotFound, "UNKNOWN_VIEW", err.Error())
	case errors.Is(err, dataset.ErrNotLoaded):
		writeError(w, r, http.StatusServiceUnavailable, "DATASET_UNAVAILABLE", "Dataset is not loaded")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "DATASET_UNAVAILABLE", "Report generation timed out")
	default:
		logError(r, "request failed", err)
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Internal error")
	}
}

func writePage(w http.ResponseWriter, r *http.Request, status int, p render.Page) {
	var buf bytes.Buffer
	if err := render.WritePage(&buf, p); err != nil {
		logError(r, "render page failed", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// logError logs err with the request-scoped logger when present.
func logError(r *http.Request, msg string, err error) {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	}
}

// GetTestStatus handles GET /test. Returns the sliding-window counters behind health.
func (h *Handler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	window := 60 * time.Second
	cfg := make(map[string]interface{})
	if h.healthConfig != nil {
		if h.healthConfig.DegradedWindow > 0 {
			window = h.healthConfig.DegradedWindow
		}
		cfg["overload_window_seconds"] = h.healthConfig.OverloadWindow.Seconds()
		cfg["overload_threshold_pct"] = h.healthConfig.OverloadThresholdPct
		cfg["degraded_error_pct"] = h.healthConfig.DegradedErrorPct
	}
	failures, _ := traffic.FailureRate(window)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_requests_in_window":  traffic.RequestCount(window),
		"denied_requests_in_window": traffic.DenialCount(window),
		"errors_in_window":          failures,
		"window_length":             window.String(),
		"state":                     h.computeHealthStatus().status,
		"config":                    cfg,
	})
}

// PostTestAction handles POST /test/{action} for load, error, reset, shutdown and reload.
func (h *Handler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	switch action {
	case "load":
		h.postTestLoad(w, r)
	case "error":
		h.postTestError(w, r)
	case "reset":
		traffic.Reset()
		lifecycle.SetShuttingDown(false)
		writeTestResult(w, action, "All simulated state cleared", h.computeHealthStatus().status)
	case "shutdown":
		lifecycle.SetShuttingDown(true)
		writeTestResult(w, action, "Shutting-down flag set", h.computeHealthStatus().status)
	case "reload":
		h.postTestReload(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", "unknown test action: "+action)
	}
}

func readCount(r *http.Request, def int) int {
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		return def
	}
	return body.Count
}

// postTestLoad simulates load by passing count requests through the rate limiter.
func (h *Handler) postTestLoad(w http.ResponseWriter, r *http.Request) {
	count := readCount(r, 10)
	var accepted, denied int
	for i := 0; i < count; i++ {
		if h.rateLimiter == nil || h.rateLimiter.Allow() {
			traffic.RecordSuccess()
			accepted++
		} else {
			traffic.RecordDenied()
			observability.RateLimitDeniedTotal.Inc()
			denied++
		}
	}
	msg := "Recorded " + strconv.Itoa(accepted) + " accepted"
	if denied > 0 {
		msg += ", " + strconv.Itoa(denied) + " denied"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"action":   "load",
		"message":  msg,
		"state":    h.computeHealthStatus().status,
		"accepted": accepted,
		"denied":   denied,
	})
}

// postTestError simulates failed report requests.
func (h *Handler) postTestError(w http.ResponseWriter, r *http.Request) {
	count := readCount(r, 1)
	for i := 0; i < count; i++ {
		traffic.RecordFailure()
	}
	writeTestResult(w, "error", "Recorded "+strconv.Itoa(count)+" errors", h.computeHealthStatus().status)
}

// postTestReload reloads the dataset from its source.
func (h *Handler) postTestReload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		writeError(w, r, http.StatusNotImplemented, "RELOAD_UNAVAILABLE", "no dataset reloader configured")
		return
	}
	if err := h.reloader.Reload(r.Context()); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "RELOAD_FAILED", err.Error())
		return
	}
	writeTestResult(w, "reload", "Dataset reloaded", h.computeHealthStatus().status)
}

func writeTestResult(w http.ResponseWriter, action, message, state string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"action":  action,
		"message": message,
		"state":   state,
	})
}
