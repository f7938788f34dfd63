// Package render turns reports into SVG charts, XLSX workbooks and the
// dashboard page.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/aclements/go-gg/gg"
	"github.com/aclements/go-gg/table"
	"gonum.org/v1/gonum/floats"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// ErrUnknownView is returned for a chart name not in Views.
var ErrUnknownView = errors.New("unknown chart view")

// ErrEmptyView is returned when a view has nothing to plot for the range,
// e.g. rush-hour weather for a range with no rush-hour records.
var ErrEmptyView = errors.New("view has no data")

// View describes one chart of the dashboard.
type View struct {
	Name   string
	Title  string
	XLabel string
	YLabel string
}

// Views lists the dashboard charts in display order.
var Views = []View{
	{"daily", "Daily Rental Trend", "Date", "Total Rentals"},
	{"seasons", "Average Rentals per Season", "Season", "Average Rentals"},
	{"users", "Casual vs Registered Contribution", "User Type", "Average Rentals"},
	{"hourly", "Hourly Pattern: Working Day (blue) vs Weekend/Holiday (orange)", "Hour", "Average Rentals"},
	{"rush-hour", "Weather Impact During Rush Hours", "Weather", "Average Rentals"},
	{"demand", "Daily Demand Levels", "Demand Level", "Days"},
	{"clusters", "Rentals by Time-of-Day Cluster", "Time Cluster", "Average Rentals"},
	{"dominance", "User Dominance per Hour", "Dominance", "Hours"},
	{"pivot", "Average Rentals by Season and Weekday", "Weekday", "Season"},
}

// LookupView returns the view named name.
func LookupView(name string) (View, bool) {
	for _, v := range Views {
		if v.Name == name {
			return v, true
		}
	}
	return View{}, false
}

// Size is the pixel size of a rendered chart.
type Size struct {
	Width, Height int
}

// DefaultSize is used when a Size field is zero.
var DefaultSize = Size{Width: 640, Height: 400}

var (
	highlightColor = color.RGBA{0x72, 0xBC, 0xD4, 0xFF}
	baseColor      = color.RGBA{0xD3, 0xD3, 0xD3, 0xFF}
	weekendColor   = color.RGBA{0xF2, 0x8E, 0x2B, 0xFF}
)

// weatherNames are the display names of weather codes 1 to 4.
var weatherNames = map[int]string{
	1: "Clear",
	2: "Mist",
	3: "Light Rain/Snow",
	4: "Heavy Rain",
}

// WeatherName returns the display name of a weather code.
func WeatherName(code int) string {
	if n, ok := weatherNames[code]; ok {
		return n
	}
	return strconv.Itoa(code)
}

// Chart writes the SVG chart for the named view of rep to w.
func Chart(w io.Writer, name string, rep models.Report, size Size) error {
	v, ok := LookupView(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	if size.Width <= 0 {
		size.Width = DefaultSize.Width
	}
	if size.Height <= 0 {
		size.Height = DefaultSize.Height
	}

	p, err := buildPlot(v, rep)
	if err != nil {
		return err
	}
	p.Add(gg.Title(v.Title), gg.AxisLabel("x", v.XLabel), gg.AxisLabel("y", v.YLabel))

	// Render to a buffer so a failed render never leaves a partial SVG on w.
	var buf bytes.Buffer
	if err := writeSVG(&buf, p, size); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// writeSVG converts go-gg panics on degenerate layouts into errors.
func writeSVG(w io.Writer, p *gg.Plot, size Size) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plot layout: %v", r)
		}
	}()
	return p.WriteSVG(w, size.Width, size.Height)
}

func buildPlot(v View, rep models.Report) (*gg.Plot, error) {
	switch v.Name {
	case "daily":
		return dailyPlot(rep.Daily)
	case "seasons":
		labels := make([]string, len(rep.Seasons.Seasons))
		values := make([]float64, len(rep.Seasons.Seasons))
		for i, s := range rep.Seasons.Seasons {
			labels[i], values[i] = s.Label, s.Mean
		}
		return categoryPlot(labels, values)
	case "users":
		return categoryPlot(
			[]string{"Casual", "Registered"},
			[]float64{rep.Users.MeanCasual, rep.Users.MeanRegistered},
		)
	case "hourly":
		return hourlyPlot(rep.Hourly)
	case "rush-hour":
		labels := make([]string, len(rep.RushHour.ByWeather))
		values := make([]float64, len(rep.RushHour.ByWeather))
		for i, w := range rep.RushHour.ByWeather {
			labels[i], values[i] = WeatherName(w.Weather), w.Mean
		}
		return categoryPlot(labels, values)
	case "demand":
		labels := make([]string, len(rep.Demand))
		values := make([]float64, len(rep.Demand))
		for i, d := range rep.Demand {
			labels[i], values[i] = d.Level, float64(d.Days)
		}
		return categoryPlot(labels, values)
	case "clusters":
		labels := make([]string, len(rep.Clusters))
		values := make([]float64, len(rep.Clusters))
		for i, c := range rep.Clusters {
			labels[i], values[i] = c.Cluster, c.Mean
		}
		return categoryPlot(labels, values)
	case "dominance":
		labels := make([]string, len(rep.Dominance))
		values := make([]float64, len(rep.Dominance))
		for i, d := range rep.Dominance {
			labels[i], values[i] = d.Label, float64(d.Hours)
		}
		return categoryPlot(labels, values)
	case "pivot":
		return pivotPlot(rep.Pivot)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownView, v.Name)
}

// dailyPlot draws totals against days since the dataset start, so the x
// formatter converts whole-day offsets back to dates. A single day is
// padded by a day either side and drawn as a point.
func dailyPlot(d models.DailyTrend) (*gg.Plot, error) {
	if len(d.Points) == 0 {
		return nil, ErrEmptyView
	}
	days := make([]float64, len(d.Points))
	totals := make([]float64, len(d.Points))
	for i, pt := range d.Points {
		days[i] = pt.Date.Sub(models.MinDate).Hours() / 24
		totals[i] = float64(pt.Total)
	}
	tab := table.NewBuilder(nil).Add("day", days).Add("total", totals).Done()

	p := gg.NewPlot(tab)
	x := gg.NewLinearScaler()
	if first, last := floats.Min(days), floats.Max(days); first == last {
		x.SetMin(first - 1).SetMax(last + 1)
	}
	x.SetFormatter(func(day float64) string {
		if day != math.Trunc(day) {
			return ""
		}
		return models.MinDate.AddDate(0, 0, int(day)).Format(models.DateLayout)
	})
	p.SetScale("x", x)
	p.SetScale("y", valueScale(totals))
	p.Add(gg.LayerLines{X: "day", Y: "total", Color: p.Const(highlightColor)})
	p.Add(gg.LayerPoints{X: "day", Y: "total", Color: p.Const(highlightColor)})
	return p, nil
}

// categoryPlot draws one point per label in the given order, with the
// maximum highlighted. Labels are indexed by position because go-gg's
// ordinal scale would otherwise sort them alphabetically.
func categoryPlot(labels []string, values []float64) (*gg.Plot, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyView
	}
	idx := make([]int, len(labels))
	colors := make([]color.Color, len(labels))
	top := floats.MaxIdx(values)
	for i := range labels {
		idx[i] = i
		colors[i] = baseColor
		if i == top {
			colors[i] = highlightColor
		}
	}
	tab := table.NewBuilder(nil).
		Add("category", idx).
		Add("value", values).
		Add("color", colors).
		Done()

	p := gg.NewPlot(tab)
	x := gg.NewOrdinalScale()
	x.SetFormatter(func(i int) string { return labels[i] })
	p.SetScale("x", x)
	p.SetScale("y", valueScale(values))
	p.Add(gg.LayerPoints{X: "category", Y: "value", Color: "color"})
	return p, nil
}

// hourlyPlot draws one line per day type, blue for working days and orange
// otherwise, with a point per hour so a lone hour still shows.
func hourlyPlot(points []models.HourlyPoint) (*gg.Plot, error) {
	if len(points) == 0 {
		return nil, ErrEmptyView
	}
	hours := make([]int, len(points))
	means := make([]float64, len(points))
	colors := make([]color.Color, len(points))
	for i, pt := range points {
		hours[i], means[i] = pt.Hour, pt.Mean
		colors[i] = weekendColor
		if pt.WorkingDay {
			colors[i] = highlightColor
		}
	}
	tab := table.NewBuilder(nil).
		Add("hour", hours).
		Add("mean", means).
		Add("day type", colors).
		Done()

	p := gg.NewPlot(tab)
	p.SetScale("x", gg.NewLinearScaler().SetMin(0).SetMax(23))
	p.SetScale("y", valueScale(means))
	p.Add(gg.LayerLines{X: "hour", Y: "mean", Color: "day type"})
	p.Add(gg.LayerPoints{X: "hour", Y: "mean", Color: "day type"})
	return p, nil
}

// valueScale is a y scale starting at zero. go-gg cannot lay out a zero
// width domain, so all-zero values get a unit domain.
func valueScale(values []float64) gg.ContinuousScaler {
	y := gg.NewLinearScaler().Include(0)
	if floats.Max(values) <= 0 {
		y.Include(1)
	}
	return y
}

// pivotPlot draws the season x weekday means as a heatmap. Absent cells
// are left blank.
func pivotPlot(pv models.SeasonWeekdayPivot) (*gg.Plot, error) {
	if len(pv.Cells) == 0 {
		return nil, ErrEmptyView
	}
	seasonIdx := indexOf(pv.Seasons)
	weekdayIdx := indexOf(pv.Weekdays)
	xs := make([]int, len(pv.Cells))
	ys := make([]int, len(pv.Cells))
	means := make([]float64, len(pv.Cells))
	for i, c := range pv.Cells {
		xs[i], ys[i], means[i] = weekdayIdx[c.Weekday], seasonIdx[c.Season], c.Mean
	}
	tab := table.NewBuilder(nil).
		Add("weekday", xs).
		Add("season", ys).
		Add("mean", means).
		Done()

	p := gg.NewPlot(tab)
	x := gg.NewOrdinalScale()
	x.SetFormatter(func(i int) string { return pv.Weekdays[i] })
	y := gg.NewOrdinalScale()
	y.SetFormatter(func(i int) string { return pv.Seasons[i] })
	p.SetScale("x", x)
	p.SetScale("y", y)
	p.Add(gg.LayerTiles{X: "weekday", Y: "season", Fill: "mean"})
	return p, nil
}

func indexOf(labels []string) map[string]int {
	m := make(map[string]int, len(labels))
	for i, l := range labels {
		m[l] = i
	}
	return m
}
