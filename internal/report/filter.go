// Package report computes the dashboard's aggregate views from rental records.
package report

import (
	"errors"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// ErrNoData is returned when a date range selects no records. Nothing else
// is computed for that request.
var ErrNoData = errors.New("no data in the selected date range")

// Filter keeps the rows of a record frame whose date falls within r
// (inclusive), in load order. It returns ErrNoData when nothing matches.
func Filter(df dataframe.DataFrame, r models.DateRange) (dataframe.DataFrame, error) {
	// DateLayout sorts lexically in date order.
	start, end := r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout)
	out := df.Filter(dataframe.F{
		Colname:    colDate,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			d := el.String()
			return d >= start && d <= end
		},
	})
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("filter %s: %w", r.Key(), out.Err)
	}
	if out.Nrow() == 0 {
		return dataframe.DataFrame{}, ErrNoData
	}
	return out, nil
}
