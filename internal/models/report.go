package models

import "time"

// Report holds every view computed for one date range.
type Report struct {
	Range       DateRange          `json:"range"`
	Version     string             `json:"datasetVersion"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Summary     Summary            `json:"summary"`
	Daily       DailyTrend         `json:"dailyTrend"`
	Seasons     SeasonalAverage    `json:"seasonalAverage"`
	Users       UserContribution   `json:"userContribution"`
	Hourly      []HourlyPoint      `json:"hourlyPattern"`
	RushHour    RushHourWeather    `json:"rushHourWeather"`
	Demand      []DemandBucket     `json:"demandLevels"`
	Clusters    []ClusterMean      `json:"timeClusters"`
	Dominance   []DominanceCount   `json:"userDominance"`
	Pivot       SeasonWeekdayPivot `json:"seasonWeekday"`
}

// Summary is the three headline totals.
type Summary struct {
	TotalRentals int `json:"totalRentals"`
	Casual       int `json:"casual"`
	Registered   int `json:"registered"`
	Records      int `json:"records"`
}

// DailyPoint is the total count of one calendar day.
type DailyPoint struct {
	Date  time.Time `json:"date"`
	Year  int       `json:"year"`
	Total int       `json:"total"`
}

// DailyTrend is the per-day series with its peak day.
type DailyTrend struct {
	Points []DailyPoint `json:"points"`
	Peak   DailyPoint   `json:"peak"`
}

// LabelMean is a mean count for one categorical label.
type LabelMean struct {
	Label string  `json:"label"`
	Mean  float64 `json:"mean"`
}

// SeasonalAverage is the mean count per season with the highest season.
type SeasonalAverage struct {
	Seasons []LabelMean `json:"seasons"`
	Max     string      `json:"max"`
}

// YearUsers is the casual/registered split for one year.
type YearUsers struct {
	Year       int `json:"year"`
	Casual     int `json:"casual"`
	Registered int `json:"registered"`
}

// UserContribution compares casual and registered users.
type UserContribution struct {
	MeanCasual     float64     `json:"meanCasual"`
	MeanRegistered float64     `json:"meanRegistered"`
	ByYear         []YearUsers `json:"byYear"`
}

// HourlyPoint is the mean count at one hour for one day type.
type HourlyPoint struct {
	Hour       int     `json:"hour"`
	WorkingDay bool    `json:"workingDay"`
	Mean       float64 `json:"mean"`
}

// WeatherMean is the mean count for one weather code.
type WeatherMean struct {
	Weather int     `json:"weather"`
	Mean    float64 `json:"mean"`
}

// WeatherHourMean is the mean count for one weather code at one hour.
type WeatherHourMean struct {
	Weather int     `json:"weather"`
	Hour    int     `json:"hour"`
	Mean    float64 `json:"mean"`
}

// RushHourWeather is the weather impact restricted to rush hours.
type RushHourWeather struct {
	ByWeather []WeatherMean     `json:"byWeather"`
	ByHour    []WeatherHourMean `json:"byWeatherHour"`
}

// DemandBucket is the number of days in one demand level.
type DemandBucket struct {
	Level string `json:"level"`
	Days  int    `json:"days"`
}

// ClusterMean is the mean count for one time-of-day cluster.
type ClusterMean struct {
	Cluster string  `json:"cluster"`
	Mean    float64 `json:"mean"`
}

// DominanceCount is the number of records with a dominance label.
type DominanceCount struct {
	Label string `json:"label"`
	Hours int    `json:"hours"`
}

// PivotCell is one populated cell of the season x weekday table.
type PivotCell struct {
	Season  string  `json:"season"`
	Weekday string  `json:"weekday"`
	Mean    float64 `json:"mean"`
}

// SeasonWeekdayPivot is the mean count indexed by season and weekday.
type SeasonWeekdayPivot struct {
	Seasons  []string    `json:"seasons"`
	Weekdays []string    `json:"weekdays"`
	Cells    []PivotCell `json:"cells"`
}

// Cell returns the mean for season and weekday, if present.
func (p SeasonWeekdayPivot) Cell(season, weekday string) (float64, bool) {
	for _, c := range p.Cells {
		if c.Season == season && c.Weekday == weekday {
			return c.Mean, true
		}
	}
	return 0, false
}
