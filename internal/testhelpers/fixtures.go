// Package testhelpers builds rental fixtures shared by package tests.
package testhelpers

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// CSVHeader is the column order written by CSV.
const CSVHeader = "instant,dteday,season_hour,yr,hr,weekday,workingday,weathersit,casual,registered,cnt"

// Date parses a YYYY-MM-DD date or fails the test.
func Date(t testing.TB, s string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

// Range builds an inclusive date range or fails the test.
func Range(t testing.TB, start, end string) models.DateRange {
	t.Helper()
	return models.DateRange{Start: Date(t, start), End: Date(t, end)}
}

// Record builds a working-day record in fair weather with Count derived
// from casual and registered.
func Record(t testing.TB, date string, hour, casual, registered int) models.RentalRecord {
	t.Helper()
	d := Date(t, date)
	return models.RentalRecord{
		Date:       d,
		Year:       d.Year(),
		Hour:       hour,
		Season:     "Spring",
		Weekday:    d.Weekday().String(),
		WorkingDay: true,
		Weather:    1,
		Casual:     casual,
		Registered: registered,
		Count:      casual + registered,
	}
}

// CSV renders records in the dataset's CSV layout.
func CSV(records []models.RentalRecord) string {
	var b strings.Builder
	b.WriteString(CSVHeader + "\n")
	for i, r := range records {
		wd := 0
		if r.WorkingDay {
			wd = 1
		}
		fmt.Fprintf(&b, "%d,%s,%s,%d,%d,%s,%d,%d,%d,%d,%d\n",
			i+1, r.Date.Format(models.DateLayout), r.Season, r.Year-2011, r.Hour,
			r.Weekday, wd, r.Weather, r.Casual, r.Registered, r.Count)
	}
	return b.String()
}
