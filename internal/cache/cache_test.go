package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

func testReport(total int) models.Report {
	return models.Report{
		Range:   models.FullRange(),
		Version: "v1",
		Summary: models.Summary{TotalRentals: total, Records: 3},
	}
}

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them correctly with the expected data.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "k", testReport(30), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Summary.TotalRentals != 30 || got.Version != "v1" {
		t.Errorf("Get() = %+v, want total 30 version v1", got.Summary)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when
// the requested key does not exist in cache.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	c := NewInMemoryCache()

	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies that Get returns ok=false for expired
// entries and removes them from cache on access.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", testReport(1), time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	now = now.Add(2 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry evicted", c.Len())
	}
}

func TestKey_ChangesWithVersionAndRange(t *testing.T) {
	full := models.FullRange()
	day := models.DateRange{Start: models.MinDate, End: models.MinDate}

	if got := Key("abc", day); got != "abc:2011-01-01_2011-01-01" {
		t.Errorf("Key() = %q", got)
	}
	if Key("v1", full) == Key("v2", full) {
		t.Error("Key() must differ across dataset versions")
	}
	if Key("v1", full) == Key("v1", day) {
		t.Error("Key() must differ across ranges")
	}
}

func TestExpiration(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int32
	}{
		{5 * time.Minute, 300},
		{0, 3600},
		{31 * 24 * time.Hour, 3600},
	}
	for _, tc := range tests {
		if got := expiration(tc.ttl); got != tc.want {
			t.Errorf("expiration(%v) = %d, want %d", tc.ttl, got, tc.want)
		}
	}
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" a:1, ,b:2,")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("parseAddrs() = %v, want [a:1 b:2]", got)
	}
}

func BenchmarkInMemoryCache_Get_Hit(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	_ = c.Set(ctx, "k", testReport(1), 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, "k")
	}
}
