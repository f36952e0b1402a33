package vitals

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EntryType names a performance timeline entry type.
type EntryType string

const (
	EntryLargestContentfulPaint EntryType = "largest-contentful-paint"
	EntryFirstInput             EntryType = "first-input"
	EntryLayoutShift            EntryType = "layout-shift"
	EntryPaint                  EntryType = "paint"
	EntryNavigation             EntryType = "navigation"
	EntryEvent                  EntryType = "event"
)

const firstContentfulPaint = "first-contentful-paint"

// ErrUnsupportedEntryType is returned by an EntrySource that cannot observe a type.
var ErrUnsupportedEntryType = errors.New("unsupported entry type")

// Entry is a performance timeline entry. Only the fields relevant to its Type are set.
type Entry struct {
	Type            EntryType `json:"entryType"`
	Name            string    `json:"name"`
	StartTime       float64   `json:"startTime"`
	Duration        float64   `json:"duration"`
	ProcessingStart float64   `json:"processingStart,omitempty"`
	Value           float64   `json:"value,omitempty"`
	HadRecentInput  bool      `json:"hadRecentInput,omitempty"`
	RequestStart    float64   `json:"requestStart,omitempty"`
	ResponseStart   float64   `json:"responseStart,omitempty"`
}

// EntrySource delivers entries of a type to a callback once subscribed.
type EntrySource interface {
	Observe(t EntryType, fn func(Entry)) error
}

// Reporter is the analytics sink for rated metrics.
type Reporter interface {
	Report(m Metric)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(m Metric)

// Report calls f(m).
func (f ReporterFunc) Report(m Metric) { f(m) }

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	URL       string
	UserAgent string
	Budget    Budget
	OnAlert   func(Alert)
	Reporter  Reporter
	Logger    *zap.Logger
	Now       func() time.Time
}

// Monitor turns observed entries into rated metrics, checks them against the
// budget and forwards them to the alert callback and reporter.
type Monitor struct {
	source  EntrySource
	opts    MonitorOptions
	checker *Checker
	logger  *zap.Logger
	now     func() time.Time

	mu         sync.Mutex
	cls        float64
	inp        float64
	subscribed []EntryType
}

// NewMonitor creates a monitor reading from source.
func NewMonitor(source EntrySource, opts MonitorOptions) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		source:  source,
		opts:    opts,
		checker: NewChecker(opts.Budget),
		logger:  logger.With(zap.String("component", "vitals_monitor")),
		now:     now,
	}
}

// Init attaches the observer subscriptions and returns how many succeeded.
// An unsupported entry type is logged and skipped.
func (m *Monitor) Init() int {
	types := []EntryType{
		EntryLargestContentfulPaint,
		EntryFirstInput,
		EntryLayoutShift,
		EntryPaint,
		EntryEvent,
		EntryNavigation,
	}
	attached := 0
	for _, t := range types {
		if err := m.source.Observe(t, m.handle); err != nil {
			m.logger.Warn("performance observer not supported",
				zap.String("entry_type", string(t)),
				zap.Error(err),
			)
			continue
		}
		m.mu.Lock()
		m.subscribed = append(m.subscribed, t)
		m.mu.Unlock()
		attached++
	}
	return attached
}

// Subscribed returns the entry types attached by Init.
func (m *Monitor) Subscribed() []EntryType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EntryType, len(m.subscribed))
	copy(out, m.subscribed)
	return out
}

func (m *Monitor) handle(e Entry) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("failed to process performance entry",
				zap.String("entry_type", string(e.Type)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	switch e.Type {
	case EntryLargestContentfulPaint:
		m.emit(LCP, e.StartTime)
	case EntryFirstInput:
		m.emit(FID, e.ProcessingStart-e.StartTime)
	case EntryLayoutShift:
		if e.HadRecentInput {
			return
		}
		m.mu.Lock()
		m.cls += e.Value
		cls := m.cls
		m.mu.Unlock()
		m.emit(CLS, cls)
	case EntryPaint:
		if e.Name == firstContentfulPaint {
			m.emit(FCP, e.StartTime)
		}
	case EntryEvent:
		m.mu.Lock()
		if e.Duration <= m.inp {
			m.mu.Unlock()
			return
		}
		m.inp = e.Duration
		m.mu.Unlock()
		m.emit(INP, e.Duration)
	case EntryNavigation:
		if e.ResponseStart > 0 && e.ResponseStart >= e.RequestStart {
			m.emit(TTFB, e.ResponseStart-e.RequestStart)
		}
	}
}

func (m *Monitor) emit(name MetricName, value float64) {
	metric := NewMetric(name, value, m.now(), m.opts.URL, m.opts.UserAgent)

	if alert, exceeded := m.checker.Check(metric); exceeded {
		m.logger.Debug("performance budget exceeded",
			zap.String("metric", string(alert.Metric)),
			zap.Float64("value", alert.Value),
			zap.Float64("threshold", alert.Threshold),
		)
		if m.opts.OnAlert != nil {
			m.opts.OnAlert(alert)
		}
	}
	if m.opts.Reporter != nil {
		m.opts.Reporter.Report(metric)
	}
}
