package services

import (
	"testing"
	"time"

	"finsite/internal/core/domain"
	"finsite/pkg/formats/rum"
	"finsite/pkg/vitals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordWith(wv *rum.WebVitals, errs int) *domain.RUMRecord {
	return &domain.RUMRecord{Data: rum.Data{
		SessionID:   "s1",
		URL:         "https://example.com/",
		Performance: rum.Performance{WebVitals: wv},
		Errors:      make([]rum.ErrorEntry, errs),
	}}
}

func TestDeriveAlerts_CLSPoorIsMedium(t *testing.T) {
	alerts := DeriveAlerts(recordWith(&rum.WebVitals{CLS: rum.Float(0.3)}, 0), time.Now())

	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertCLSPoor, alerts[0].Type)
	assert.Equal(t, vitals.SeverityMedium, alerts[0].Severity)
	assert.Equal(t, 0.3, alerts[0].Value)
	assert.Equal(t, 0.25, alerts[0].Threshold)
	assert.Equal(t, "s1", alerts[0].SessionID)
}

func TestDeriveAlerts_Rules(t *testing.T) {
	tests := []struct {
		name string
		rec  *domain.RUMRecord
		want map[domain.AlertType]vitals.Severity
	}{
		{"no vitals", recordWith(nil, 0), map[domain.AlertType]vitals.Severity{}},
		{"all good", recordWith(&rum.WebVitals{LCP: rum.Float(1200), FID: rum.Float(20), CLS: rum.Float(0.01)}, 0), map[domain.AlertType]vitals.Severity{}},
		{"at poor boundary", recordWith(&rum.WebVitals{LCP: rum.Float(4000), FID: rum.Float(300), CLS: rum.Float(0.25)}, 0), map[domain.AlertType]vitals.Severity{}},
		{
			"lcp and fid poor",
			recordWith(&rum.WebVitals{LCP: rum.Float(4001), FID: rum.Float(301)}, 0),
			map[domain.AlertType]vitals.Severity{
				domain.AlertLCPPoor: vitals.SeverityHigh,
				domain.AlertFIDPoor: vitals.SeverityHigh,
			},
		},
		{
			"errors only",
			recordWith(nil, 3),
			map[domain.AlertType]vitals.Severity{domain.AlertJavaScriptErrors: vitals.SeverityMedium},
		},
		{
			"poor fcp and inp raise nothing",
			recordWith(&rum.WebVitals{FCP: rum.Float(9000), INP: rum.Float(900), TTFB: rum.Float(5000)}, 0),
			map[domain.AlertType]vitals.Severity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make(map[domain.AlertType]vitals.Severity)
			for _, a := range DeriveAlerts(tt.rec, time.Now()) {
				got[a.Type] = a.Severity
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveAlerts_ErrorCountIsValue(t *testing.T) {
	alerts := DeriveAlerts(recordWith(nil, 4), time.Now())
	require.Len(t, alerts, 1)
	assert.Equal(t, 4.0, alerts[0].Value)
	assert.Contains(t, alerts[0].Message(), "4 JavaScript error(s)")
}
