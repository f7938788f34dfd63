package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

type mockReportFetcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *mockReportFetcher) GetReport(ctx context.Context, r models.DateRange) (models.Report, error) {
	m.mu.Lock()
	m.calls = append(m.calls, r.Key())
	m.mu.Unlock()
	if m.err != nil {
		return models.Report{}, m.err
	}
	return models.Report{Range: r}, nil
}

func TestDefaultRanges(t *testing.T) {
	got := DefaultRanges()
	want := []string{"2011-01-01_2012-12-31", "2011-01-01_2011-12-31", "2012-01-01_2012-12-31"}
	if len(got) != len(want) {
		t.Fatalf("DefaultRanges() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Key() != want[i] {
			t.Errorf("DefaultRanges()[%d] = %s, want %s", i, got[i].Key(), want[i])
		}
	}
}

func TestWarmer_Warm_Success(t *testing.T) {
	fetcher := &mockReportFetcher{}
	w := NewWarmer(fetcher, nil)

	if err := w.Warm(context.Background(), DefaultRanges()); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if len(fetcher.calls) != 3 {
		t.Errorf("fetcher calls = %d, want 3", len(fetcher.calls))
	}
}

func TestWarmer_Warm_Empty(t *testing.T) {
	w := NewWarmer(&mockReportFetcher{}, nil)
	if err := w.Warm(context.Background(), nil); err != nil {
		t.Fatalf("Warm(nil) error = %v, want nil", err)
	}
}

func TestWarmer_Warm_FetcherError(t *testing.T) {
	sentinel := errors.New("dataset not loaded")
	w := NewWarmer(&mockReportFetcher{err: sentinel}, nil)

	err := w.Warm(context.Background(), DefaultRanges()[:1])
	if !errors.Is(err, sentinel) {
		t.Fatalf("Warm() error = %v, want wrapping sentinel", err)
	}
	if !strings.Contains(err.Error(), "2011-01-01_2012-12-31") {
		t.Errorf("Warm() error = %q, want range key in message", err)
	}
}
