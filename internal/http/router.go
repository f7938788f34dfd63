package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/observability"
)

// RouterConfig controls which routes are exposed and how dashboard routes are guarded.
type RouterConfig struct {
	RequestTimeout time.Duration
	TestingMode    bool
}

// NewRouter registers all routes. Dashboard and API routes are rate limited
// and carry a request deadline; /health, /metrics and /test are not.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	guard := func(fn http.HandlerFunc) http.Handler {
		var next http.Handler = fn
		if cfg.RequestTimeout > 0 {
			next = TimeoutMiddleware(cfg.RequestTimeout)(next)
		}
		return RateLimitMiddleware(h.rateLimiter)(next)
	}
	router.Handle("/", guard(h.GetDashboard)).Methods("GET")
	router.Handle("/api/report", guard(h.GetReport)).Methods("GET")
	router.Handle("/api/charts/{view}.svg", guard(h.GetChart)).Methods("GET")
	router.Handle("/api/export.xlsx", guard(h.GetExport)).Methods("GET")

	if cfg.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
		router.HandleFunc("/test", h.GetTestStatus).Methods("GET")
		router.HandleFunc("/test/{action}", h.PostTestAction).Methods("POST")
	}
	return router
}
