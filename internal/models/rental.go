package models

import "time"

// DateLayout is the format of dteday values and range query parameters.
const DateLayout = "2006-01-02"

// RentalRecord is one hourly observation from the bike-sharing dataset.
// Records are never modified after loading.
type RentalRecord struct {
	Date       time.Time `json:"date"`
	Year       int       `json:"year"` // calendar year, 2011 or 2012
	Hour       int       `json:"hour"`
	Season     string    `json:"season"`
	Weekday    string    `json:"weekday"`
	WorkingDay bool      `json:"workingDay"`
	Weather    int       `json:"weather"`
	Casual     int       `json:"casual"`
	Registered int       `json:"registered"`
	Count      int       `json:"count"`
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls on a day within r.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Key returns a stable identifier for r, used for cache keys.
func (r DateRange) Key() string {
	return r.Start.Format(DateLayout) + "_" + r.End.Format(DateLayout)
}

// Dataset bounds. The date picker is limited to these.
var (
	MinDate = time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxDate = time.Date(2012, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// FullRange is the default range covering the whole dataset.
func FullRange() DateRange {
	return DateRange{Start: MinDate, End: MaxDate}
}
