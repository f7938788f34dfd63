package report

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// Record frame columns.
const (
	colDate       = "date"
	colYear       = "year"
	colHour       = "hour"
	colSeason     = "season"
	colWeekday    = "weekday"
	colWorking    = "working" // 1 on working days, 0 otherwise
	colWeather    = "weather"
	colCasual     = "casual"
	colRegistered = "registered"
	colCount      = "count"
	colCluster    = "cluster"
	colDominance  = "dominance"
)

// Frame lays records out as a dataframe, one row per record in load order.
// Derived labels (time cluster, dominance) are materialised as columns so
// the views can group on them.
func Frame(records []models.RentalRecord) dataframe.DataFrame {
	n := len(records)
	var (
		years, hours, working       = make([]int, n), make([]int, n), make([]int, n)
		weather, casual, registered = make([]int, n), make([]int, n), make([]int, n)
		counts                      = make([]int, n)
		dates, seasons, weekdays    = make([]string, n), make([]string, n), make([]string, n)
		clusters, dominance         = make([]string, n), make([]string, n)
	)
	for i, r := range records {
		dates[i] = r.Date.Format(models.DateLayout)
		years[i] = r.Year
		hours[i] = r.Hour
		seasons[i] = r.Season
		weekdays[i] = r.Weekday
		if r.WorkingDay {
			working[i] = 1
		}
		weather[i] = r.Weather
		casual[i] = r.Casual
		registered[i] = r.Registered
		counts[i] = r.Count
		clusters[i] = TimeCluster(r.Hour)
		dominance[i] = Dominance(r.Casual, r.Registered)
	}
	return dataframe.New(
		series.New(dates, series.String, colDate),
		series.New(years, series.Int, colYear),
		series.New(hours, series.Int, colHour),
		series.New(seasons, series.String, colSeason),
		series.New(weekdays, series.String, colWeekday),
		series.New(working, series.Int, colWorking),
		series.New(weather, series.Int, colWeather),
		series.New(casual, series.Int, colCasual),
		series.New(registered, series.Int, colRegistered),
		series.New(counts, series.Int, colCount),
		series.New(clusters, series.String, colCluster),
		series.New(dominance, series.String, colDominance),
	)
}

// aggregation pairs a value column with the reduction applied per group.
// The result column is named "<col>_<TYPE>", e.g. count_MEAN.
type aggregation struct {
	col string
	typ dataframe.AggregationType
}

func (a aggregation) name() string {
	return fmt.Sprintf("%s_%s", a.col, a.typ)
}

var (
	meanCount     = aggregation{colCount, dataframe.Aggregation_MEAN}
	sumCount      = aggregation{colCount, dataframe.Aggregation_SUM}
	countRows     = aggregation{colCount, dataframe.Aggregation_COUNT}
	sumCasual     = aggregation{colCasual, dataframe.Aggregation_SUM}
	sumRegistered = aggregation{colRegistered, dataframe.Aggregation_SUM}
)

// groupBy reduces df to one row per distinct combination of keys. Only the
// key and value columns are carried into the groups. Group order is not
// defined; callers sort the result. An empty df yields an empty result
// with no columns.
func groupBy(df dataframe.DataFrame, keys []string, aggs ...aggregation) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	cols := append([]string(nil), keys...)
	typs := make([]dataframe.AggregationType, len(aggs))
	values := make([]string, len(aggs))
	seen := make(map[string]bool, len(cols))
	for _, k := range keys {
		seen[k] = true
	}
	for i, a := range aggs {
		typs[i], values[i] = a.typ, a.col
		if !seen[a.col] {
			seen[a.col] = true
			cols = append(cols, a.col)
		}
	}

	sel := df.Select(cols)
	if sel.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("select %v: %w", cols, sel.Err)
	}
	if sel.Nrow() == 0 {
		return dataframe.DataFrame{}, nil
	}
	groups := sel.GroupBy(keys...)
	if groups.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("group by %v: %w", keys, groups.Err)
	}
	out := groups.Aggregation(typs, values)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("aggregate by %v: %w", keys, out.Err)
	}
	return out, nil
}

// columns reads typed columns out of an aggregated frame, keeping the first
// error so callers check once after all reads.
type columns struct {
	df  dataframe.DataFrame
	err error
}

func (c *columns) col(name string) series.Series {
	if c.err != nil {
		return series.Series{}
	}
	s := c.df.Col(name)
	if s.Err != nil {
		c.err = fmt.Errorf("column %s: %w", name, s.Err)
	}
	return s
}

// ints reads an integer column, including float aggregates of integer
// columns such as sums.
func (c *columns) ints(name string) []int {
	s := c.col(name)
	if c.err != nil {
		return nil
	}
	if s.Type() == series.Float {
		fs := s.Float()
		out := make([]int, len(fs))
		for i, f := range fs {
			out[i] = int(math.Round(f))
		}
		return out
	}
	out, err := s.Int()
	if err != nil {
		c.err = fmt.Errorf("column %s: %w", name, err)
	}
	return out
}

func (c *columns) floats(name string) []float64 {
	s := c.col(name)
	if c.err != nil {
		return nil
	}
	return s.Float()
}

func (c *columns) strings(name string) []string {
	s := c.col(name)
	if c.err != nil {
		return nil
	}
	return s.Records()
}
