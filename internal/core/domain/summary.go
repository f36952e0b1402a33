package domain

import (
	"fmt"
	"time"

	"finsite/pkg/vitals"
)

// TimeRange selects the window of an analytics summary
type TimeRange string

const (
	Range1h  TimeRange = "1h"
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"

	DefaultTimeRange = Range24h
)

var timeRanges = map[TimeRange]time.Duration{
	Range1h:  time.Hour,
	Range24h: 24 * time.Hour,
	Range7d:  7 * 24 * time.Hour,
	Range30d: 30 * 24 * time.Hour,
}

// ParseTimeRange accepts 1h, 24h, 7d and 30d. Empty means the default.
func ParseTimeRange(s string) (TimeRange, error) {
	if s == "" {
		return DefaultTimeRange, nil
	}
	tr := TimeRange(s)
	if _, ok := timeRanges[tr]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeRange, s)
	}
	return tr, nil
}

// Duration returns the window length
func (tr TimeRange) Duration() time.Duration {
	return timeRanges[tr]
}

// MetricStats aggregates one vital over a window
type MetricStats struct {
	Count            int           `json:"count"`
	P50              float64       `json:"p50"`
	P75              float64       `json:"p75"`
	P95              float64       `json:"p95"`
	Good             int           `json:"good"`
	NeedsImprovement int           `json:"needs_improvement"`
	Poor             int           `json:"poor"`
	Rating           vitals.Rating `json:"rating"`
}

// Summary is the analytics response of GET /api/rum
type Summary struct {
	TimeRange   TimeRange                          `json:"timeRange"`
	Metric      string                             `json:"metric,omitempty"`
	GeneratedAt time.Time                          `json:"generatedAt"`
	Records     int                                `json:"records"`
	Sessions    int                                `json:"sessions"`
	Errors      int                                `json:"errors"`
	Metrics     map[vitals.MetricName]*MetricStats `json:"summary"`
	Alerts      map[AlertType]int                  `json:"alerts"`
	TopPages    []PageStats                        `json:"topPages"`
}

// PageStats counts views of one URL path
type PageStats struct {
	Path  string  `json:"path"`
	Views int     `json:"views"`
	LCP75 float64 `json:"lcp_p75,omitempty"`
}
