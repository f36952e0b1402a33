package services

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"time"

	"finsite/internal/core/domain"
	"finsite/internal/core/ports"
	"finsite/pkg/cache"
	"finsite/pkg/vitals"

	"go.uber.org/zap"
)

const topPagesLimit = 5

type analyticsService struct {
	records ports.RUMRepository
	alerts  ports.AlertRepository
	cache   *cache.Cache[*domain.Summary]
	logger  *zap.Logger
	now     func() time.Time
}

func NewAnalyticsService(records ports.RUMRepository, alerts ports.AlertRepository, cacheTTL time.Duration, logger *zap.Logger) ports.AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &analyticsService{
		records: records,
		alerts:  alerts,
		cache:   cache.New[*domain.Summary](cacheTTL),
		logger:  logger.With(zap.String("service", "rum_analytics")),
		now:     time.Now,
	}
}

// Summary aggregates the stored records of the window. An empty metric means
// every vital.
func (s *analyticsService) Summary(ctx context.Context, tr domain.TimeRange, metric string) (*domain.Summary, error) {
	var only vitals.MetricName
	if metric != "" {
		name, ok := vitals.ParseMetricName(metric)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMetric, metric)
		}
		only = name
	}

	key := string(tr) + "|" + string(only)
	return s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (*domain.Summary, error) {
		return s.compute(ctx, tr, only)
	})
}

func (s *analyticsService) compute(ctx context.Context, tr domain.TimeRange, only vitals.MetricName) (*domain.Summary, error) {
	now := s.now()
	since := now.Add(-tr.Duration())

	records, err := s.records.ListSince(ctx, since)
	if err != nil {
		s.logger.Error("failed to load RUM records", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	alerts, err := s.alerts.ListAlertsSince(ctx, since)
	if err != nil {
		s.logger.Error("failed to load alerts", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	summary := &domain.Summary{
		TimeRange:   tr,
		Metric:      string(only),
		GeneratedAt: now,
		Records:     len(records),
		Metrics:     make(map[vitals.MetricName]*domain.MetricStats),
		Alerts:      make(map[domain.AlertType]int),
	}

	values := make(map[vitals.MetricName][]float64)
	sessions := make(map[string]struct{})
	pages := make(map[string][]float64)
	views := make(map[string]int)

	for _, rec := range records {
		sessions[rec.Data.SessionID] = struct{}{}
		summary.Errors += len(rec.Data.Errors)

		path := pagePath(rec.Data.URL)
		views[path]++

		for name, v := range rec.Vitals() {
			if name == vitals.LCP {
				pages[path] = append(pages[path], v)
			}
			if only != "" && name != only {
				continue
			}
			values[name] = append(values[name], v)
		}
	}
	summary.Sessions = len(sessions)

	for name, vs := range values {
		summary.Metrics[name] = metricStats(name, vs)
	}
	for _, a := range alerts {
		summary.Alerts[a.Type]++
	}
	summary.TopPages = topPages(views, pages)

	return summary, nil
}

func metricStats(name vitals.MetricName, vs []float64) *domain.MetricStats {
	sort.Float64s(vs)
	st := &domain.MetricStats{
		Count: len(vs),
		P50:   percentile(vs, 0.50),
		P75:   percentile(vs, 0.75),
		P95:   percentile(vs, 0.95),
	}
	for _, v := range vs {
		r, _ := vitals.Rate(name, v)
		switch r {
		case vitals.RatingGood:
			st.Good++
		case vitals.RatingNeedsImprovement:
			st.NeedsImprovement++
		case vitals.RatingPoor:
			st.Poor++
		}
	}
	st.Rating, _ = vitals.Rate(name, st.P75)
	return st
}

// percentile uses the nearest-rank method on sorted values
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}

func pagePath(raw string) string {
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		return raw
	case u.Path != "":
		return u.Path
	case u.Host != "" || raw == "":
		return "/"
	}
	return raw
}

func topPages(views map[string]int, lcp map[string][]float64) []domain.PageStats {
	out := make([]domain.PageStats, 0, len(views))
	for path, n := range views {
		ps := domain.PageStats{Path: path, Views: n}
		if vs := lcp[path]; len(vs) > 0 {
			sort.Float64s(vs)
			ps.LCP75 = percentile(vs, 0.75)
		}
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > topPagesLimit {
		out = out[:topPagesLimit]
	}
	return out
}
