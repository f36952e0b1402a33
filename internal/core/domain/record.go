package domain

import (
	"time"

	"finsite/pkg/formats/rum"
	"finsite/pkg/vitals"
)

// RUMRecord is one sanitized page-view report as it is stored
type RUMRecord struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	ObservedAt time.Time `json:"observed_at"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	Mobile     bool      `json:"mobile"`
	Data       rum.Data  `json:"data"`
}

// Vitals returns the web vitals present on the record
func (r *RUMRecord) Vitals() map[vitals.MetricName]float64 {
	wv := r.Data.Performance.WebVitals
	if wv == nil {
		return nil
	}

	out := make(map[vitals.MetricName]float64, 6)
	for name, v := range map[vitals.MetricName]*float64{
		vitals.LCP:  wv.LCP,
		vitals.FID:  wv.FID,
		vitals.CLS:  wv.CLS,
		vitals.FCP:  wv.FCP,
		vitals.TTFB: wv.TTFB,
		vitals.INP:  wv.INP,
	} {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}

// IngestResult is what one accepted batch produced
type IngestResult struct {
	Processed int
	Alerts    []*PerformanceAlert
	Stored    bool
}
