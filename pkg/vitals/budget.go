package vitals

import "time"

// Severity of a budget violation
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is emitted when a metric exceeds its performance budget.
type Alert struct {
	Metric    MetricName `json:"metric"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
	Severity  Severity   `json:"severity"`
	Timestamp time.Time  `json:"timestamp"`
	URL       string     `json:"url"`
}

// Budget maps a metric to its numeric ceiling.
type Budget map[MetricName]float64

// DefaultBudget returns the site's performance budget.
func DefaultBudget() Budget {
	return Budget{
		LCP:  2500,
		FID:  100,
		CLS:  0.1,
		FCP:  1800,
		TTFB: 600,
		INP:  200,
	}
}

// Checker compares metrics against a budget.
type Checker struct {
	budget Budget
}

// NewChecker creates a checker. A nil budget falls back to DefaultBudget.
func NewChecker(budget Budget) *Checker {
	if budget == nil {
		budget = DefaultBudget()
	}
	b := make(Budget, len(budget))
	for k, v := range budget {
		b[k] = v
	}
	return &Checker{budget: b}
}

// Check returns an alert when m exceeds its budget. Metrics without a budget never alert.
func (c *Checker) Check(m Metric) (Alert, bool) {
	limit, ok := c.budget[m.Name]
	if !ok || m.Value <= limit {
		return Alert{}, false
	}
	return Alert{
		Metric:    m.Name,
		Value:     m.Value,
		Threshold: limit,
		Severity:  severityFor(m),
		Timestamp: m.Timestamp,
		URL:       m.URL,
	}, true
}

func severityFor(m Metric) Severity {
	rating := m.Rating
	if rating == "" {
		rating, _ = Rate(m.Name, m.Value)
	}
	switch rating {
	case RatingPoor:
		return SeverityHigh
	case RatingNeedsImprovement:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
