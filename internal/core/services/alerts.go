package services

import (
	"time"

	"finsite/internal/core/domain"
	"finsite/pkg/utils"
	"finsite/pkg/vitals"
)

type alertRule struct {
	alertType domain.AlertType
	metric    vitals.MetricName
	severity  vitals.Severity
}

// A vital above its poor threshold raises an alert of the rule's severity.
var alertRules = []alertRule{
	{domain.AlertLCPPoor, vitals.LCP, vitals.SeverityHigh},
	{domain.AlertFIDPoor, vitals.FID, vitals.SeverityHigh},
	{domain.AlertCLSPoor, vitals.CLS, vitals.SeverityMedium},
}

// DeriveAlerts returns the alerts a sanitized record raises
func DeriveAlerts(rec *domain.RUMRecord, now time.Time) []*domain.PerformanceAlert {
	var alerts []*domain.PerformanceAlert

	values := rec.Vitals()
	for _, rule := range alertRules {
		v, ok := values[rule.metric]
		if !ok {
			continue
		}
		th, _ := vitals.ThresholdFor(rule.metric)
		if v <= th.Poor {
			continue
		}
		alerts = append(alerts, newAlert(rec, rule.alertType, rule.severity, v, th.Poor, now))
	}

	if n := len(rec.Data.Errors); n > 0 {
		alerts = append(alerts, newAlert(rec, domain.AlertJavaScriptErrors, vitals.SeverityMedium, float64(n), 0, now))
	}

	return alerts
}

func newAlert(rec *domain.RUMRecord, t domain.AlertType, sev vitals.Severity, value, threshold float64, now time.Time) *domain.PerformanceAlert {
	return &domain.PerformanceAlert{
		ID:        utils.GenerateAlertID(),
		Type:      t,
		Severity:  sev,
		Value:     value,
		Threshold: threshold,
		URL:       rec.Data.URL,
		SessionID: rec.Data.SessionID,
		CreatedAt: now,
	}
}
