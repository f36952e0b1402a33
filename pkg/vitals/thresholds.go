package vitals

import (
	"strings"
	"time"
)

// MetricName identifies a web vital or related timing metric
type MetricName string

const (
	LCP  MetricName = "LCP"  // Largest Contentful Paint, ms
	FID  MetricName = "FID"  // First Input Delay, ms
	CLS  MetricName = "CLS"  // Cumulative Layout Shift, unitless score
	FCP  MetricName = "FCP"  // First Contentful Paint, ms
	TTFB MetricName = "TTFB" // Time To First Byte, ms
	INP  MetricName = "INP"  // Interaction to Next Paint, ms
)

// Rating classifies a metric value against its thresholds
type Rating string

const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs-improvement"
	RatingPoor             Rating = "poor"
	RatingUnknown          Rating = "unknown"
)

// Threshold holds the upper bound of the good band and the bound above which a value is poor.
type Threshold struct {
	Good float64
	Poor float64
}

var thresholds = map[MetricName]Threshold{
	LCP:  {Good: 2500, Poor: 4000},
	FID:  {Good: 100, Poor: 300},
	CLS:  {Good: 0.1, Poor: 0.25},
	FCP:  {Good: 1800, Poor: 3000},
	TTFB: {Good: 800, Poor: 1800},
	INP:  {Good: 200, Poor: 500},
}

// AllMetrics lists the metric names with known thresholds in reporting order.
var AllMetrics = []MetricName{LCP, FID, CLS, FCP, TTFB, INP}

// ThresholdFor returns the fixed thresholds for a metric.
func ThresholdFor(name MetricName) (Threshold, bool) {
	t, ok := thresholds[name]
	return t, ok
}

// Rate classifies value for the named metric. Unknown metrics yield RatingUnknown and false.
func Rate(name MetricName, value float64) (Rating, bool) {
	t, ok := thresholds[name]
	if !ok {
		return RatingUnknown, false
	}
	switch {
	case value <= t.Good:
		return RatingGood, true
	case value <= t.Poor:
		return RatingNeedsImprovement, true
	default:
		return RatingPoor, true
	}
}

// ParseMetricName accepts names in any case ("lcp", "LCP").
func ParseMetricName(s string) (MetricName, bool) {
	name := MetricName(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := thresholds[name]
	return name, ok
}

// Metric is a single rated observation of a performance metric.
type Metric struct {
	Name      MetricName `json:"name"`
	Value     float64    `json:"value"`
	Rating    Rating     `json:"rating"`
	Timestamp time.Time  `json:"timestamp"`
	URL       string     `json:"url"`
	UserAgent string     `json:"userAgent"`
}

// NewMetric builds a rated metric sample.
func NewMetric(name MetricName, value float64, at time.Time, url, userAgent string) Metric {
	rating, _ := Rate(name, value)
	return Metric{
		Name:      name,
		Value:     value,
		Rating:    rating,
		Timestamp: at,
		URL:       url,
		UserAgent: userAgent,
	}
}
