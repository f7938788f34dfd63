package report

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// Summarize returns the headline totals.
func Summarize(df dataframe.DataFrame) models.Summary {
	return models.Summary{
		Records:      df.Nrow(),
		TotalRentals: roundSum(df.Col(colCount)),
		Casual:       roundSum(df.Col(colCasual)),
		Registered:   roundSum(df.Col(colRegistered)),
	}
}

func roundSum(s series.Series) int {
	if s.Err != nil || s.Len() == 0 {
		return 0
	}
	return int(math.Round(s.Sum()))
}

// DailyTotals sums Count per calendar day in date order. The peak is the
// first day reaching the maximum total.
func DailyTotals(df dataframe.DataFrame) (models.DailyTrend, error) {
	var trend models.DailyTrend
	agg, err := groupBy(df, []string{colDate, colYear}, sumCount)
	if err != nil || agg.Nrow() == 0 {
		return trend, err
	}
	agg = agg.Arrange(dataframe.Sort(colDate))

	c := columns{df: agg}
	dates, years, totals := c.strings(colDate), c.ints(colYear), c.floats(sumCount.name())
	if c.err != nil {
		return trend, fmt.Errorf("daily totals: %w", c.err)
	}
	trend.Points = make([]models.DailyPoint, len(dates))
	for i, d := range dates {
		day, err := time.Parse(models.DateLayout, d)
		if err != nil {
			return models.DailyTrend{}, fmt.Errorf("daily totals: %w", err)
		}
		trend.Points[i] = models.DailyPoint{Date: day, Year: years[i], Total: int(math.Round(totals[i]))}
	}
	trend.Peak = trend.Points[floats.MaxIdx(totals)]
	return trend, nil
}

// SeasonAverages is the mean Count per season, with the first season
// reaching the highest mean marked as Max.
func SeasonAverages(df dataframe.DataFrame) (models.SeasonalAverage, error) {
	var avg models.SeasonalAverage
	bySeason, err := labelMeans(df, colSeason)
	if err != nil {
		return avg, fmt.Errorf("season averages: %w", err)
	}
	if len(bySeason) == 0 {
		return avg, nil
	}
	labels := make([]string, 0, len(bySeason))
	for l := range bySeason {
		labels = append(labels, l)
	}
	SortLabels(labels)

	avg.Seasons = make([]models.LabelMean, len(labels))
	means := make([]float64, len(labels))
	for i, l := range labels {
		means[i] = bySeason[l]
		avg.Seasons[i] = models.LabelMean{Label: l, Mean: means[i]}
	}
	avg.Max = labels[floats.MaxIdx(means)]
	return avg, nil
}

// UserContributions averages casual and registered counts over all records
// and sums them per year.
func UserContributions(df dataframe.DataFrame) (models.UserContribution, error) {
	var uc models.UserContribution
	agg, err := groupBy(df, []string{colYear}, sumCasual, sumRegistered)
	if err != nil || agg.Nrow() == 0 {
		return uc, err
	}
	uc.MeanCasual = stat.Mean(df.Col(colCasual).Float(), nil)
	uc.MeanRegistered = stat.Mean(df.Col(colRegistered).Float(), nil)

	agg = agg.Arrange(dataframe.Sort(colYear))
	c := columns{df: agg}
	years, casual, registered := c.ints(colYear), c.ints(sumCasual.name()), c.ints(sumRegistered.name())
	if c.err != nil {
		return uc, fmt.Errorf("user contributions: %w", c.err)
	}
	uc.ByYear = make([]models.YearUsers, len(years))
	for i, y := range years {
		uc.ByYear[i] = models.YearUsers{Year: y, Casual: casual[i], Registered: registered[i]}
	}
	return uc, nil
}

// HourlyPattern is the mean Count per (hour, working day), ordered by hour
// with non-working days first.
func HourlyPattern(df dataframe.DataFrame) ([]models.HourlyPoint, error) {
	agg, err := groupBy(df, []string{colHour, colWorking}, meanCount)
	if err != nil || agg.Nrow() == 0 {
		return nil, err
	}
	agg = agg.Arrange(dataframe.Sort(colHour), dataframe.Sort(colWorking))

	c := columns{df: agg}
	hours, working, means := c.ints(colHour), c.ints(colWorking), c.floats(meanCount.name())
	if c.err != nil {
		return nil, fmt.Errorf("hourly pattern: %w", c.err)
	}
	out := make([]models.HourlyPoint, len(hours))
	for i, h := range hours {
		out[i] = models.HourlyPoint{Hour: h, WorkingDay: working[i] == 1, Mean: means[i]}
	}
	return out, nil
}

// RushHourImpact restricts to rush hours and averages Count per weather
// code and per (weather code, hour).
func RushHourImpact(df dataframe.DataFrame) (models.RushHourWeather, error) {
	var out models.RushHourWeather
	rush := df.Filter(dataframe.F{
		Colname:    colHour,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			h, err := el.Int()
			return err == nil && IsRushHour(h)
		},
	})
	if rush.Err != nil {
		return out, fmt.Errorf("rush hours: %w", rush.Err)
	}

	byWeather, err := groupBy(rush, []string{colWeather}, meanCount)
	if err != nil {
		return out, err
	}
	if byWeather.Nrow() > 0 {
		byWeather = byWeather.Arrange(dataframe.Sort(colWeather))
		c := columns{df: byWeather}
		codes, means := c.ints(colWeather), c.floats(meanCount.name())
		if c.err != nil {
			return out, fmt.Errorf("rush hour by weather: %w", c.err)
		}
		for i, code := range codes {
			out.ByWeather = append(out.ByWeather, models.WeatherMean{Weather: code, Mean: means[i]})
		}
	}

	byHour, err := groupBy(rush, []string{colWeather, colHour}, meanCount)
	if err != nil {
		return out, err
	}
	if byHour.Nrow() > 0 {
		byHour = byHour.Arrange(dataframe.Sort(colWeather), dataframe.Sort(colHour))
		c := columns{df: byHour}
		codes, hours, means := c.ints(colWeather), c.ints(colHour), c.floats(meanCount.name())
		if c.err != nil {
			return out, fmt.Errorf("rush hour by weather and hour: %w", c.err)
		}
		for i, code := range codes {
			out.ByHour = append(out.ByHour, models.WeatherHourMean{Weather: code, Hour: hours[i], Mean: means[i]})
		}
	}
	return out, nil
}

// DemandHistogram counts days per demand level using daily totals. All
// levels are reported.
func DemandHistogram(df dataframe.DataFrame) ([]models.DemandBucket, error) {
	trend, err := DailyTotals(df)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(DemandOrder))
	for _, p := range trend.Points {
		counts[DemandLevel(p.Total)]++
	}
	out := make([]models.DemandBucket, len(DemandOrder))
	for i, level := range DemandOrder {
		out[i] = models.DemandBucket{Level: level, Days: counts[level]}
	}
	return out, nil
}

// ClusterMeans averages Count per time-of-day cluster in display order.
// Clusters without records are left out.
func ClusterMeans(df dataframe.DataFrame) ([]models.ClusterMean, error) {
	byCluster, err := labelMeans(df, colCluster)
	if err != nil {
		return nil, fmt.Errorf("cluster means: %w", err)
	}
	var out []models.ClusterMean
	for _, c := range ClusterOrder {
		if m, ok := byCluster[c]; ok {
			out = append(out, models.ClusterMean{Cluster: c, Mean: m})
		}
	}
	return out, nil
}

// DominanceCounts counts records per user dominance label.
func DominanceCounts(df dataframe.DataFrame) ([]models.DominanceCount, error) {
	out := []models.DominanceCount{{Label: RegisteredDominant}, {Label: CasualDominant}}
	agg, err := groupBy(df, []string{colDominance}, countRows)
	if err != nil || agg.Nrow() == 0 {
		return out, err
	}
	c := columns{df: agg}
	labels, counts := c.strings(colDominance), c.ints(countRows.name())
	if c.err != nil {
		return nil, fmt.Errorf("dominance counts: %w", c.err)
	}
	for i, l := range labels {
		for j := range out {
			if out[j].Label == l {
				out[j].Hours = counts[i]
			}
		}
	}
	return out, nil
}

// SeasonWeekday builds the season x weekday table of mean Count.
func SeasonWeekday(df dataframe.DataFrame) (models.SeasonWeekdayPivot, error) {
	var p models.SeasonWeekdayPivot
	agg, err := groupBy(df, []string{colSeason, colWeekday}, meanCount)
	if err != nil || agg.Nrow() == 0 {
		return p, err
	}

	c := columns{df: agg}
	seasons, weekdays, means := c.strings(colSeason), c.strings(colWeekday), c.floats(meanCount.name())
	if c.err != nil {
		return p, fmt.Errorf("season weekday: %w", c.err)
	}
	type cell struct{ season, weekday string }
	cells := make(map[cell]float64, len(means))
	seenSeason := make(map[string]bool)
	seenWeekday := make(map[string]bool)
	for i := range means {
		cells[cell{seasons[i], weekdays[i]}] = means[i]
		if !seenSeason[seasons[i]] {
			seenSeason[seasons[i]] = true
			p.Seasons = append(p.Seasons, seasons[i])
		}
		if !seenWeekday[weekdays[i]] {
			seenWeekday[weekdays[i]] = true
			p.Weekdays = append(p.Weekdays, weekdays[i])
		}
	}
	SortLabels(p.Seasons)
	SortLabels(p.Weekdays)
	for _, s := range p.Seasons {
		for _, w := range p.Weekdays {
			if m, ok := cells[cell{s, w}]; ok {
				p.Cells = append(p.Cells, models.PivotCell{Season: s, Weekday: w, Mean: m})
			}
		}
	}
	return p, nil
}

// labelMeans is the mean Count per value of a string column.
func labelMeans(df dataframe.DataFrame, col string) (map[string]float64, error) {
	agg, err := groupBy(df, []string{col}, meanCount)
	if err != nil || agg.Nrow() == 0 {
		return nil, err
	}
	c := columns{df: agg}
	labels, means := c.strings(col), c.floats(meanCount.name())
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]float64, len(labels))
	for i, l := range labels {
		out[l] = means[i]
	}
	return out, nil
}
