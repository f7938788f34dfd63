// Package validation parses and checks dashboard query input.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// ErrInvalidDate is returned when a date parameter is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

// ErrInvalidRange is returned when the start date is after the end date.
var ErrInvalidRange = errors.New("start date is after end date")

// ParseDateRange builds an inclusive range from query values. Empty values
// default to the dataset bounds. Ranges outside the bounds are accepted;
// they simply select no records.
func ParseDateRange(start, end string) (models.DateRange, error) {
	r := models.FullRange()
	var err error
	if r.Start, err = parseDate("start", start, models.MinDate); err != nil {
		return models.DateRange{}, err
	}
	if r.End, err = parseDate("end", end, models.MaxDate); err != nil {
		return models.DateRange{}, err
	}
	if r.Start.After(r.End) {
		return models.DateRange{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout))
	}
	return r, nil
}

func parseDate(name, value string, def time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	d, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s=%q, want YYYY-MM-DD", ErrInvalidDate, name, value)
	}
	return d, nil
}
