package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/testhelpers"
)

func TestReadCSV_Valid(t *testing.T) {
	want := []models.RentalRecord{
		testhelpers.Record(t, "2011-01-01", 0, 3, 13),
		testhelpers.Record(t, "2012-07-04", 17, 120, 480),
	}

	got, err := ReadCSV(strings.NewReader(testhelpers.CSV(want)))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ReadCSV() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if got[1].Year != 2012 {
		t.Errorf("Year = %d, want 2012 from yr=1", got[1].Year)
	}
}

func TestReadCSV_ExtraColumnsAndFloatInts(t *testing.T) {
	in := "instant,dteday,season_hour,yr,mnth,hr,weekday,workingday,weathersit,temp,casual,registered,cnt\n" +
		"1,2011-01-01 00:00:00,Winter,0.0,1,8.0,Saturday,0,2,0.24,3.0,13,16.0\n"

	got, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	rec := got[0]
	if rec.Hour != 8 || rec.Count != 16 || rec.Weather != 2 || rec.WorkingDay {
		t.Errorf("record = %+v, want hour 8, count 16, weather 2, non-working", rec)
	}
	if rec.Date.Format(models.DateLayout) != "2011-01-01" {
		t.Errorf("Date = %v, want 2011-01-01", rec.Date)
	}
}

func TestReadCSV_MissingColumn(t *testing.T) {
	in := "dteday,hr,cnt\n2011-01-01,0,16\n"

	_, err := ReadCSV(strings.NewReader(in))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("ReadCSV() error = %v, want ErrMalformed", err)
	}
}

func TestReadCSV_InvalidRows(t *testing.T) {
	row := func(fields string) string {
		return testhelpers.CSVHeader + "\n" + fields + "\n"
	}
	tests := []struct {
		name    string
		in      string
		wantMsg string
	}{
		{"count mismatch", row("1,2011-01-01,Spring,0,0,Saturday,0,1,3,13,17"), "cnt 17"},
		{"hour out of range", row("1,2011-01-01,Spring,0,24,Saturday,0,1,3,13,16"), "hr 24"},
		{"bad year flag", row("1,2011-01-01,Spring,2,0,Saturday,0,1,3,13,16"), "yr"},
		{"bad date", row("1,01/01/2011,Spring,0,0,Saturday,0,1,3,13,16"), "dteday"},
		{"negative casual", row("1,2011-01-01,Spring,0,0,Saturday,0,1,-3,19,16"), "casual"},
		{"non-integer", row("1,2011-01-01,Spring,0,0,Saturday,0,1,3.5,13,16"), "casual"},
		{"NA season", row("1,2011-01-01,NA,0,0,Saturday,0,1,3,13,16"), "season_hour is missing"},
		{"NaN weekday", row("1,2011-01-01,Spring,0,0,NaN,0,1,3,13,16"), "weekday is missing"},
		{"empty count", row("1,2011-01-01,Spring,0,0,Saturday,0,1,3,13,"), "cnt is missing"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.in))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("ReadCSV() error = %v, want ErrMalformed", err)
			}
			if !strings.Contains(err.Error(), "line 2") || !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("ReadCSV() error = %q, want line 2 and %q", err, tc.wantMsg)
			}
		})
	}
}

func TestReadCSV_DuplicateHourRejected(t *testing.T) {
	records := []models.RentalRecord{
		testhelpers.Record(t, "2011-01-01", 0, 3, 13),
		testhelpers.Record(t, "2011-01-01", 1, 8, 32),
		testhelpers.Record(t, "2011-01-01", 0, 5, 5),
	}

	_, err := ReadCSV(strings.NewReader(testhelpers.CSV(records)))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("ReadCSV() error = %v, want ErrMalformed", err)
	}
	for _, want := range []string{"line 4", "duplicate dteday 2011-01-01 hr 0", "first on line 2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("ReadCSV() error = %q, want %q", err, want)
		}
	}
}

func TestReadCSV_SameHourOnDifferentDays(t *testing.T) {
	records := []models.RentalRecord{
		testhelpers.Record(t, "2011-01-01", 5, 1, 1),
		testhelpers.Record(t, "2011-01-02", 5, 1, 1),
	}
	got, err := ReadCSV(strings.NewReader(testhelpers.CSV(records)))
	if err != nil || len(got) != 2 {
		t.Errorf("ReadCSV() = %d records, %v; want 2, nil", len(got), err)
	}
}

func TestLoadCSV_FileNotFound(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadCSV() error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadCSV_File(t *testing.T) {
	path := writeCSV(t, t.TempDir(), []models.RentalRecord{testhelpers.Record(t, "2011-05-01", 9, 1, 2)})

	got, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if len(got) != 1 || got[0].Count != 3 {
		t.Errorf("LoadCSV() = %+v, want one record with count 3", got)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"7", 7, false},
		{" 7 ", 7, false},
		{"7.0", 7, false},
		{"7.5", 0, true},
		{"", 0, true},
		{"x", 0, true},
	}
	for _, tc := range tests {
		got, err := parseInt(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("parseInt(%q) = %d, %v; want %d, err=%v", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
}

func writeCSV(t *testing.T, dir string, records []models.RentalRecord) string {
	t.Helper()
	path := filepath.Join(dir, "hour.csv")
	if err := os.WriteFile(path, []byte(testhelpers.CSV(records)), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}
