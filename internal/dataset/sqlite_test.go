package dataset

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/testhelpers"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "rentals.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	weekend := testhelpers.Record(t, "2011-01-02", 5, 4, 6)
	weekend.WorkingDay = false
	weekend.Season = "Winter"
	want := []models.RentalRecord{
		testhelpers.Record(t, "2011-01-01", 23, 1, 2),
		weekend,
		testhelpers.Record(t, "2011-01-01", 3, 0, 9),
	}

	if err := repo.SaveRecords(ctx, want); err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}
	n, err := repo.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count() = %d, %v; want 3", n, err)
	}

	got, err := repo.LoadRecords(ctx)
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	// Ordered by day then hour.
	order := []models.RentalRecord{want[2], want[0], want[1]}
	for i := range order {
		if got[i] != order[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], order[i])
		}
	}
}

func TestSQLiteRepository_SaveRecordsUpserts(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if err := repo.SaveRecords(ctx, []models.RentalRecord{testhelpers.Record(t, "2011-01-01", 0, 1, 1)}); err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}
	if err := repo.SaveRecords(ctx, []models.RentalRecord{testhelpers.Record(t, "2011-01-01", 0, 5, 5)}); err != nil {
		t.Fatalf("SaveRecords() second error = %v", err)
	}

	got, err := repo.LoadRecords(ctx)
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if len(got) != 1 || got[0].Count != 10 {
		t.Errorf("LoadRecords() = %+v, want one updated record with count 10", got)
	}
}

func TestRepositorySource_Load(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	if err := repo.SaveRecords(ctx, []models.RentalRecord{testhelpers.Record(t, "2012-02-29", 12, 2, 3)}); err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}

	store := NewStore(RepositorySource{Repo: repo, Path: repo.Path}, nil)
	if err := store.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	ds, err := store.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if len(ds.Records) != 1 || ds.Source != "sqlite:"+repo.Path {
		t.Errorf("snapshot = %d records from %q", len(ds.Records), ds.Source)
	}
}
