package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// Sheet names of the exported workbook, in order.
const (
	SheetSummary       = "Summary"
	SheetDaily         = "Daily Trend"
	SheetSeasons       = "Seasons"
	SheetUsers         = "Users"
	SheetUsersByYear   = "Users by Year"
	SheetHourly        = "Hourly Pattern"
	SheetRushHour      = "Rush Hour Weather"
	SheetRushHourByHr  = "Rush Hour by Hour"
	SheetDemand        = "Demand Levels"
	SheetClusters      = "Time Clusters"
	SheetDominance     = "User Dominance"
	SheetSeasonWeekday = "Season x Weekday"
)

// sheet is one tab of the workbook: a header row followed by data rows.
type sheet struct {
	name   string
	header []interface{}
	rows   [][]interface{}
}

// Workbook writes rep as an XLSX workbook to w: a summary tab and one tab
// per view.
func Workbook(w io.Writer, rep models.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	for i, s := range workbookSheets(rep) {
		if i > 0 {
			if _, err := f.NewSheet(s.name); err != nil {
				return fmt.Errorf("create sheet %s: %w", s.name, err)
			}
		}
		if err := writeSheet(f, s); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet) error {
	rows := append([][]interface{}{s.header}, s.rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", s.name, i+1, err)
		}
	}
	return nil
}

func workbookSheets(rep models.Report) []sheet {
	summary := sheet{
		name:   SheetSummary,
		header: []interface{}{"Metric", "Value"},
		rows: [][]interface{}{
			{"Start Date", rep.Range.Start.Format(models.DateLayout)},
			{"End Date", rep.Range.End.Format(models.DateLayout)},
			{"Total Rentals", rep.Summary.TotalRentals},
			{"Casual Users", rep.Summary.Casual},
			{"Registered Users", rep.Summary.Registered},
			{"Hourly Records", rep.Summary.Records},
			{"Peak Day", rep.Daily.Peak.Date.Format(models.DateLayout)},
			{"Peak Day Rentals", rep.Daily.Peak.Total},
			{"Top Season", rep.Seasons.Max},
			{"Dataset Version", rep.Version},
		},
	}

	daily := sheet{name: SheetDaily, header: []interface{}{"Date", "Year", "Total Rentals"}}
	for _, p := range rep.Daily.Points {
		daily.rows = append(daily.rows, []interface{}{p.Date.Format(models.DateLayout), p.Year, p.Total})
	}

	seasons := sheet{name: SheetSeasons, header: []interface{}{"Season", "Average Rentals", "Highest"}}
	for _, s := range rep.Seasons.Seasons {
		seasons.rows = append(seasons.rows, []interface{}{s.Label, s.Mean, s.Label == rep.Seasons.Max})
	}

	users := sheet{
		name:   SheetUsers,
		header: []interface{}{"User Type", "Average Rentals"},
		rows: [][]interface{}{
			{"Casual", rep.Users.MeanCasual},
			{"Registered", rep.Users.MeanRegistered},
		},
	}
	byYear := sheet{name: SheetUsersByYear, header: []interface{}{"Year", "Casual", "Registered"}}
	for _, y := range rep.Users.ByYear {
		byYear.rows = append(byYear.rows, []interface{}{y.Year, y.Casual, y.Registered})
	}

	hourly := sheet{name: SheetHourly, header: []interface{}{"Hour", "Day Type", "Average Rentals"}}
	for _, h := range rep.Hourly {
		dayType := "Weekend"
		if h.WorkingDay {
			dayType = "Working Day"
		}
		hourly.rows = append(hourly.rows, []interface{}{h.Hour, dayType, h.Mean})
	}

	rush := sheet{name: SheetRushHour, header: []interface{}{"Weather", "Condition", "Average Rentals"}}
	for _, w := range rep.RushHour.ByWeather {
		rush.rows = append(rush.rows, []interface{}{w.Weather, WeatherName(w.Weather), w.Mean})
	}
	rushByHour := sheet{name: SheetRushHourByHr, header: []interface{}{"Weather", "Hour", "Average Rentals"}}
	for _, w := range rep.RushHour.ByHour {
		rushByHour.rows = append(rushByHour.rows, []interface{}{w.Weather, w.Hour, w.Mean})
	}

	demand := sheet{name: SheetDemand, header: []interface{}{"Demand Level", "Days"}}
	for _, d := range rep.Demand {
		demand.rows = append(demand.rows, []interface{}{d.Level, d.Days})
	}

	clusters := sheet{name: SheetClusters, header: []interface{}{"Time Cluster", "Average Rentals"}}
	for _, c := range rep.Clusters {
		clusters.rows = append(clusters.rows, []interface{}{c.Cluster, c.Mean})
	}

	dominance := sheet{name: SheetDominance, header: []interface{}{"Dominance", "Hours"}}
	for _, d := range rep.Dominance {
		dominance.rows = append(dominance.rows, []interface{}{d.Label, d.Hours})
	}

	pivot := sheet{name: SheetSeasonWeekday, header: []interface{}{"Season"}}
	for _, wd := range rep.Pivot.Weekdays {
		pivot.header = append(pivot.header, wd)
	}
	for _, s := range rep.Pivot.Seasons {
		row := []interface{}{s}
		for _, wd := range rep.Pivot.Weekdays {
			if mean, ok := rep.Pivot.Cell(s, wd); ok {
				row = append(row, mean)
			} else {
				row = append(row, nil)
			}
		}
		pivot.rows = append(pivot.rows, row)
	}

	return []sheet{
		summary, daily, seasons, users, byYear, hourly,
		rush, rushByHour, demand, clusters, dominance, pivot,
	}
}
