package report

import (
	"context"
	"fmt"
	"time"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// Generate filters records to r and computes every view. It returns
// ErrNoData when the range is empty, or the context error if ctx is done
// before all views are computed.
func Generate(ctx context.Context, records []models.RentalRecord, r models.DateRange) (models.Report, error) {
	filtered, err := Filter(Frame(records), r)
	if err != nil {
		return models.Report{}, err
	}

	rep := models.Report{
		Range:       r,
		GeneratedAt: time.Now().UTC(),
		Summary:     Summarize(filtered),
	}
	steps := []struct {
		name string
		run  func() error
	}{
		{"daily", func() (err error) { rep.Daily, err = DailyTotals(filtered); return }},
		{"seasons", func() (err error) { rep.Seasons, err = SeasonAverages(filtered); return }},
		{"users", func() (err error) { rep.Users, err = UserContributions(filtered); return }},
		{"hourly", func() (err error) { rep.Hourly, err = HourlyPattern(filtered); return }},
		{"rush hour", func() (err error) { rep.RushHour, err = RushHourImpact(filtered); return }},
		{"demand", func() (err error) { rep.Demand, err = DemandHistogram(filtered); return }},
		{"clusters", func() (err error) { rep.Clusters, err = ClusterMeans(filtered); return }},
		{"dominance", func() (err error) { rep.Dominance, err = DominanceCounts(filtered); return }},
		{"pivot", func() (err error) { rep.Pivot, err = SeasonWeekday(filtered); return }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return models.Report{}, err
		}
		if err := step.run(); err != nil {
			return models.Report{}, fmt.Errorf("%s view: %w", step.name, err)
		}
	}
	return rep, nil
}
