package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"finsite/internal/core/domain"
	"finsite/pkg/vitals"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finsite"

type PrometheusCollector struct {
	gatherer prometheus.Gatherer

	// Ingestion
	batchesTotal prometheus.Counter
	recordsTotal prometheus.Counter
	clientsTotal *prometheus.CounterVec

	// Web vitals
	vitalTimings  *prometheus.HistogramVec
	layoutShift   prometheus.Histogram
	vitalRatings  *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
	storageErrors *prometheus.CounterVec

	// Site
	leadsTotal         *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	headerFallbacks    prometheus.Counter
	rateLimited        *prometheus.CounterVec
	alertStreamClients prometheus.Gauge
}

// NewPrometheusCollector registers the site metrics on reg. A fresh registry
// per collector keeps tests independent of the global one.
func NewPrometheusCollector(reg *prometheus.Registry) *PrometheusCollector {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusCollector{
		gatherer: reg,

		batchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rum_batches_total",
			Help:      "Total number of accepted RUM batches",
		}),

		recordsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rum_records_total",
			Help:      "Total number of sanitized RUM records",
		}),

		clientsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rum_clients_total",
			Help:      "RUM records by browser and device class",
		}, []string{"browser", "device"}),

		vitalTimings: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "web_vital_milliseconds",
			Help:      "Timing web vitals reported by browsers",
			Buckets:   []float64{100, 250, 500, 800, 1000, 1800, 2500, 3000, 4000, 6000, 10000},
		}, []string{"metric"}),

		layoutShift: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "web_vital_cls",
			Help:      "Cumulative layout shift reported by browsers",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.15, 0.25, 0.5, 1},
		}),

		vitalRatings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "web_vital_ratings_total",
			Help:      "Web vital observations by rating",
		}, []string{"metric", "rating"}),

		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "performance_alerts_total",
			Help:      "Performance alerts raised during ingestion",
		}, []string{"type", "severity"}),

		storageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failures_total",
			Help:      "Failed storage operations",
		}, []string{"operation"}),

		leadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Contact requests received",
		}, []string{"service"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route"}),

		headerFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_header_fallbacks_total",
			Help:      "Responses served with the minimal header set after a policy build failure",
		}),

		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by rate limiting",
		}, []string{"scope"}),

		alertStreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_stream_clients",
			Help:      "Connected live alert subscribers",
		}),
	}
}

func (p *PrometheusCollector) RecordIngest(records int, alerts int) {
	p.batchesTotal.Inc()
	p.recordsTotal.Add(float64(records))
}

func (p *PrometheusCollector) ObserveVital(name vitals.MetricName, value float64, rating vitals.Rating) {
	if name == vitals.CLS {
		p.layoutShift.Observe(value)
	} else {
		p.vitalTimings.WithLabelValues(string(name)).Observe(value)
	}
	p.vitalRatings.WithLabelValues(string(name), string(rating)).Inc()
}

func (p *PrometheusCollector) RecordAlert(alertType domain.AlertType, severity vitals.Severity) {
	p.alertsTotal.WithLabelValues(string(alertType), string(severity)).Inc()
}

func (p *PrometheusCollector) RecordStorageFailure(operation string) {
	p.storageErrors.WithLabelValues(operation).Inc()
}

func (p *PrometheusCollector) RecordLead(service string) {
	if service == "" {
		service = "unspecified"
	}
	p.leadsTotal.WithLabelValues(service).Inc()
}

func (p *PrometheusCollector) RecordClient(browser string, mobile bool) {
	device := "desktop"
	if mobile {
		device = "mobile"
	}
	p.clientsTotal.WithLabelValues(browser, device).Inc()
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, never the raw path.
func (p *PrometheusCollector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (p *PrometheusCollector) RecordHeaderFallback() {
	p.headerFallbacks.Inc()
}

func (p *PrometheusCollector) RecordRateLimited(scope string) {
	p.rateLimited.WithLabelValues(scope).Inc()
}

func (p *PrometheusCollector) SetAlertStreamClients(n int) {
	p.alertStreamClients.Set(float64(n))
}

// Handler exposes the registry for scraping
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
