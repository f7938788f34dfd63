package report

import (
	"sort"
	"strconv"
	"strings"
)

// Time-of-day clusters in display order.
const (
	ClusterMorningRush = "Morning Rush"
	ClusterDaytime     = "Daytime"
	ClusterEveningRush = "Evening Rush"
	ClusterNight       = "Night / Off Peak"
)

// ClusterOrder is the fixed display order of time-of-day clusters.
var ClusterOrder = []string{ClusterMorningRush, ClusterDaytime, ClusterEveningRush, ClusterNight}

// Demand levels in display order.
const (
	DemandLow    = "Low Demand"
	DemandMedium = "Medium Demand"
	DemandHigh   = "High Demand"
)

// DemandOrder is the fixed display order of demand levels.
var DemandOrder = []string{DemandLow, DemandMedium, DemandHigh}

// Demand level upper bounds (inclusive).
const (
	LowDemandMax    = 2000
	MediumDemandMax = 5000
)

// User dominance labels.
const (
	RegisteredDominant = "Registered Dominant"
	CasualDominant     = "Casual Dominant"
)

// TimeCluster maps an hour of day to its cluster. Every hour belongs to
// exactly one cluster.
func TimeCluster(hour int) string {
	switch {
	case hour >= 7 && hour <= 9:
		return ClusterMorningRush
	case hour >= 10 && hour <= 15:
		return ClusterDaytime
	case hour >= 16 && hour <= 18:
		return ClusterEveningRush
	default:
		return ClusterNight
	}
}

// IsRushHour reports whether hour is in 7-9 or 16-18.
func IsRushHour(hour int) bool {
	c := TimeCluster(hour)
	return c == ClusterMorningRush || c == ClusterEveningRush
}

// DemandLevel buckets a daily total.
func DemandLevel(total int) string {
	switch {
	case total <= LowDemandMax:
		return DemandLow
	case total <= MediumDemandMax:
		return DemandMedium
	default:
		return DemandHigh
	}
}

// Dominance labels a record by which user type rented more.
func Dominance(casual, registered int) string {
	if registered > casual {
		return RegisteredDominant
	}
	return CasualDominant
}

var calendarOrder = map[string]int{
	"spring": 0, "summer": 1, "fall": 2, "autumn": 2, "winter": 3,

	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3,
	"thursday": 4, "friday": 5, "saturday": 6,
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// SortLabels orders season and weekday labels: integer codes numerically,
// known season and weekday names in calendar order, anything else
// lexicographically after them.
func SortLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		return labelLess(labels[i], labels[j])
	})
}

func labelLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	ar, aok := calendarOrder[strings.ToLower(strings.TrimSpace(a))]
	br, bok := calendarOrder[strings.ToLower(strings.TrimSpace(b))]
	switch {
	case aok && bok:
		return ar < br
	case aok != bok:
		return aok
	}
	return a < b
}
