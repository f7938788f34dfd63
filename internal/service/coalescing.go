package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// inFlightReport tracks one report generation that several callers may wait for.
type inFlightReport struct {
	done   chan struct{}
	result models.Report
	err    error
}

// requestCoalescer collapses concurrent requests for the same key into a
// single generation.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightReport
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightReport),
		timeout:  timeout,
	}
}

// GetOrDo runs fn for key unless a run is already in flight, in which case it
// waits for that run. shared is true when the caller joined an existing run.
// fn receives a context detached from any single caller and bounded by the
// coalescer timeout, so one caller cancelling does not fail the others.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func(context.Context) (models.Report, error)) (rep models.Report, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightReport{done: make(chan struct{})}
		rc.inFlight[key] = req
		rc.mu.Unlock()

		go func() {
			runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
			defer cancel()
			req.result, req.err = fn(runCtx)
			rc.mu.Lock()
			delete(rc.inFlight, key)
			rc.mu.Unlock()
			close(req.done)
		}()
	} else {
		rc.mu.Unlock()
	}

	select {
	case <-req.done:
		return req.result, exists, req.err
	case <-ctx.Done():
		return models.Report{}, exists, ctx.Err()
	}
}
