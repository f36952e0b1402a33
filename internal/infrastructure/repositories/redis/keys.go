package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"finsite/internal/core/domain"
)

const (
	recordsKey   = keyPrefix + "rum:records"
	alertsKey    = keyPrefix + "rum:alerts"
	leadIndexKey = keyPrefix + "leads:by_created"
)

func leadKey(id string) string {
	return keyPrefix + "lead:" + id
}

// score orders members by millisecond timestamp
func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// minScore is the inclusive lower bound for a range query
func minScore(t time.Time) string {
	if t.IsZero() {
		return "-inf"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// maxScoreBefore is the exclusive upper bound used when pruning
func maxScoreBefore(t time.Time) string {
	return "(" + strconv.FormatInt(t.UnixMilli(), 10)
}

func decodeRecord(raw string) (*domain.RUMRecord, error) {
	var rec domain.RUMRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

func decodeAlert(raw string) (*domain.PerformanceAlert, error) {
	var alert domain.PerformanceAlert
	if err := json.Unmarshal([]byte(raw), &alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	return &alert, nil
}

func decodeLead(raw []byte) (*domain.Lead, error) {
	var lead domain.Lead
	if err := json.Unmarshal(raw, &lead); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead: %w", err)
	}
	return &lead, nil
}
