// Package dataset loads rental records and holds the current snapshot.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// ErrMalformed is wrapped by every error caused by bad input data.
var ErrMalformed = errors.New("malformed rental data")

// Columns lists the CSV columns the loader requires. Others are ignored.
var Columns = []string{
	"dteday", "yr", "hr", "season_hour", "weekday",
	"workingday", "weathersit", "casual", "registered", "cnt",
}

// missingValues are the field values treated as absent. A required column
// holding one of them rejects the row.
var missingValues = []string{"", "NA", "NaN", "<nil>"}

// LoadCSV reads and validates the rental CSV at path.
func LoadCSV(path string) ([]models.RentalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ReadCSV parses rental records from CSV. All columns are read as strings
// and converted here so that row errors can be reported precisely. Each
// (dteday, hr) pair may appear once.
func ReadCSV(r io.Reader) ([]models.RentalRecord, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(missingValues),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, df.Err)
	}
	df = df.Select(Columns)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, df.Err)
	}

	cols := make(map[string][]string, len(Columns))
	missing := make(map[string][]bool, len(Columns))
	for _, name := range Columns {
		cols[name] = df.Col(name).Records()
		missing[name] = df.Col(name).IsNaN()
	}

	type slot struct {
		day  time.Time
		hour int
	}
	seen := make(map[slot]int, df.Nrow())
	records := make([]models.RentalRecord, df.Nrow())
	for i := range records {
		// Line numbers count the header.
		line := i + 2
		for _, name := range Columns {
			if missing[name][i] {
				return nil, fmt.Errorf("%w: line %d: %s is missing", ErrMalformed, line, name)
			}
		}
		rec, err := parseRow(func(col string) string { return cols[col][i] })
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		k := slot{rec.Date, rec.Hour}
		if first, ok := seen[k]; ok {
			return nil, fmt.Errorf("%w: line %d: duplicate dteday %s hr %d (first on line %d)",
				ErrMalformed, line, rec.Date.Format(models.DateLayout), rec.Hour, first)
		}
		seen[k] = line
		records[i] = rec
	}
	return records, nil
}

func parseRow(field func(string) string) (models.RentalRecord, error) {
	var rec models.RentalRecord
	var err error

	raw := strings.TrimSpace(field("dteday"))
	if len(raw) > len(models.DateLayout) {
		raw = raw[:len(models.DateLayout)]
	}
	if rec.Date, err = time.Parse(models.DateLayout, raw); err != nil {
		return rec, fmt.Errorf("dteday %q: %v", field("dteday"), err)
	}

	ints := []struct {
		col    string
		dst    *int
		lo, hi int
	}{
		{"hr", &rec.Hour, 0, 23},
		{"weathersit", &rec.Weather, 1, 4},
		{"casual", &rec.Casual, 0, math.MaxInt32},
		{"registered", &rec.Registered, 0, math.MaxInt32},
		{"cnt", &rec.Count, 0, math.MaxInt32},
	}
	for _, c := range ints {
		v, err := parseInt(field(c.col))
		if err != nil {
			return rec, fmt.Errorf("%s: %v", c.col, err)
		}
		if v < c.lo || v > c.hi {
			return rec, fmt.Errorf("%s %d out of range [%d, %d]", c.col, v, c.lo, c.hi)
		}
		*c.dst = v
	}

	yr, err := parseInt(field("yr"))
	if err != nil || (yr != 0 && yr != 1) {
		return rec, fmt.Errorf("yr %q: want 0 or 1", field("yr"))
	}
	rec.Year = models.MinDate.Year() + yr

	working, err := parseInt(field("workingday"))
	if err != nil || (working != 0 && working != 1) {
		return rec, fmt.Errorf("workingday %q: want 0 or 1", field("workingday"))
	}
	rec.WorkingDay = working == 1

	rec.Season = strings.TrimSpace(field("season_hour"))
	rec.Weekday = strings.TrimSpace(field("weekday"))
	if rec.Season == "" || rec.Weekday == "" {
		return rec, errors.New("season_hour and weekday are required")
	}

	if rec.Casual+rec.Registered != rec.Count {
		return rec, fmt.Errorf("cnt %d != casual %d + registered %d", rec.Count, rec.Casual, rec.Registered)
	}
	return rec, nil
}

// parseInt accepts integers written either plainly or as integral floats
// ("3.0"), which pandas exports produce.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}
