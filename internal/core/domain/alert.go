package domain

import (
	"fmt"
	"time"

	"finsite/pkg/vitals"
)

type AlertType string

const (
	AlertLCPPoor          AlertType = "lcp_poor"
	AlertFIDPoor          AlertType = "fid_poor"
	AlertCLSPoor          AlertType = "cls_poor"
	AlertJavaScriptErrors AlertType = "javascript_errors"
)

// PerformanceAlert is raised by the server for a record that crossed a poor
// threshold or carried script errors.
type PerformanceAlert struct {
	ID        string          `json:"id"`
	Type      AlertType       `json:"type"`
	Severity  vitals.Severity `json:"severity"`
	Value     float64         `json:"value"`
	Threshold float64         `json:"threshold"`
	URL       string          `json:"url"`
	SessionID string          `json:"session_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// Message is a human readable summary for logs and dashboards
func (a *PerformanceAlert) Message() string {
	switch a.Type {
	case AlertJavaScriptErrors:
		return fmt.Sprintf("%d JavaScript error(s) on %s", int(a.Value), a.URL)
	case AlertCLSPoor:
		return fmt.Sprintf("%s %.3f exceeds %.2f on %s", a.Type, a.Value, a.Threshold, a.URL)
	default:
		return fmt.Sprintf("%s %.0fms exceeds %.0fms on %s", a.Type, a.Value, a.Threshold, a.URL)
	}
}
