package vitals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSource struct {
	unsupported map[EntryType]bool
	callbacks   map[EntryType]func(Entry)
}

func newFakeSource(unsupported ...EntryType) *fakeSource {
	s := &fakeSource{
		unsupported: make(map[EntryType]bool),
		callbacks:   make(map[EntryType]func(Entry)),
	}
	for _, t := range unsupported {
		s.unsupported[t] = true
	}
	return s
}

func (s *fakeSource) Observe(t EntryType, fn func(Entry)) error {
	if s.unsupported[t] {
		return ErrUnsupportedEntryType
	}
	s.callbacks[t] = fn
	return nil
}

func (s *fakeSource) emit(e Entry) {
	if fn, ok := s.callbacks[e.Type]; ok {
		fn(e)
	}
}

func fixedNow() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

func TestMonitor_UnsupportedTypeIsLoggedNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := newFakeSource(EntryLayoutShift, EntryEvent)

	m := NewMonitor(src, MonitorOptions{Logger: zap.New(core)})
	attached := m.Init()

	assert.Equal(t, 4, attached)
	assert.NotContains(t, m.Subscribed(), EntryLayoutShift)
	assert.Equal(t, 2, logs.FilterMessage("performance observer not supported").Len())
}

func TestMonitor_ConvertsEntries(t *testing.T) {
	src := newFakeSource()
	var reported []Metric
	m := NewMonitor(src, MonitorOptions{
		URL:       "https://example.com/about",
		UserAgent: "test-agent",
		Reporter:  ReporterFunc(func(m Metric) { reported = append(reported, m) }),
		Now:       fixedNow,
	})
	require.Equal(t, 6, m.Init())

	src.emit(Entry{Type: EntryLargestContentfulPaint, StartTime: 2100})
	src.emit(Entry{Type: EntryFirstInput, StartTime: 1000, ProcessingStart: 1040})
	src.emit(Entry{Type: EntryLayoutShift, Value: 0.05})
	src.emit(Entry{Type: EntryLayoutShift, Value: 0.5, HadRecentInput: true})
	src.emit(Entry{Type: EntryLayoutShift, Value: 0.1})
	src.emit(Entry{Type: EntryPaint, Name: "first-paint", StartTime: 500})
	src.emit(Entry{Type: EntryPaint, Name: "first-contentful-paint", StartTime: 900})
	src.emit(Entry{Type: EntryNavigation, RequestStart: 100, ResponseStart: 350})

	require.Len(t, reported, 6)
	assert.Equal(t, LCP, reported[0].Name)
	assert.Equal(t, 2100.0, reported[0].Value)
	assert.Equal(t, RatingGood, reported[0].Rating)
	assert.Equal(t, FID, reported[1].Name)
	assert.Equal(t, 40.0, reported[1].Value)
	assert.Equal(t, CLS, reported[2].Name)
	assert.InDelta(t, 0.05, reported[2].Value, 1e-9)
	assert.Equal(t, CLS, reported[3].Name)
	assert.InDelta(t, 0.15, reported[3].Value, 1e-9)
	assert.Equal(t, RatingNeedsImprovement, reported[3].Rating)
	assert.Equal(t, FCP, reported[4].Name)
	assert.Equal(t, 900.0, reported[4].Value)
	assert.Equal(t, TTFB, reported[5].Name)
	assert.Equal(t, 250.0, reported[5].Value)

	for _, r := range reported {
		assert.Equal(t, "https://example.com/about", r.URL)
		assert.Equal(t, "test-agent", r.UserAgent)
		assert.Equal(t, fixedNow(), r.Timestamp)
	}
}

func TestMonitor_InteractionReportsOnlyNewMaximum(t *testing.T) {
	src := newFakeSource()
	var reported []Metric
	m := NewMonitor(src, MonitorOptions{
		Reporter: ReporterFunc(func(m Metric) { reported = append(reported, m) }),
	})
	m.Init()

	src.emit(Entry{Type: EntryEvent, Duration: 120})
	src.emit(Entry{Type: EntryEvent, Duration: 80})
	src.emit(Entry{Type: EntryEvent, Duration: 260})

	require.Len(t, reported, 2)
	assert.Equal(t, 120.0, reported[0].Value)
	assert.Equal(t, 260.0, reported[1].Value)
}

func TestMonitor_AlertCallback(t *testing.T) {
	src := newFakeSource()
	var alerts []Alert
	m := NewMonitor(src, MonitorOptions{
		URL:     "/onboarding",
		OnAlert: func(a Alert) { alerts = append(alerts, a) },
	})
	m.Init()

	src.emit(Entry{Type: EntryLargestContentfulPaint, StartTime: 4500})
	src.emit(Entry{Type: EntryFirstInput, StartTime: 10, ProcessingStart: 20})

	require.Len(t, alerts, 1)
	assert.Equal(t, LCP, alerts[0].Metric)
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Equal(t, 2500.0, alerts[0].Threshold)
}

func TestMonitor_PanickingReporterIsRecovered(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := newFakeSource()
	m := NewMonitor(src, MonitorOptions{
		Logger:   zap.New(core),
		Reporter: ReporterFunc(func(Metric) { panic("sink exploded") }),
	})
	m.Init()

	assert.NotPanics(t, func() {
		src.emit(Entry{Type: EntryLargestContentfulPaint, StartTime: 1000})
	})
	assert.Equal(t, 1, logs.FilterMessage("failed to process performance entry").Len())
}
