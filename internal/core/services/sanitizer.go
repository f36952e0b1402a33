package services

import (
	"time"

	"finsite/internal/core/domain"
	"finsite/pkg/formats/rum"
	"finsite/pkg/utils"

	"github.com/google/uuid"
)

// Bounds applied to every incoming record
const (
	maxSessionIDLen     = 50
	maxURLLen           = 500
	maxUserAgentLen     = 500
	maxEffectiveTypeLen = 20
	maxErrorMessageLen  = 500
	maxErrorSourceLen   = 500
	maxStackLen         = 2000
	maxInteractionType  = 50
	maxTargetLen        = 200
	maxResourceNameLen  = 500
	maxInitiatorLen     = 50

	maxTimingMs   = 60000.0
	maxCLS        = 10.0
	maxViewport   = 10000.0
	maxDownlink   = 10000.0
	maxRTTMs      = 60000.0
	maxSizeBytes  = 100 << 20
	maxResCount   = 100000.0
	maxLineNumber = 10000000.0

	maxErrorsPerRecord       = 50
	maxInteractionsPerRecord = 100
	maxSlowestResources      = 20
)

// Sanitizer turns untrusted client records into bounded domain records
type Sanitizer struct {
	maxRecords int
}

func NewSanitizer(maxRecords int) *Sanitizer {
	if maxRecords <= 0 {
		maxRecords = 100
	}
	return &Sanitizer{maxRecords: maxRecords}
}

// SanitizeBatch cleans every record of the batch. Records beyond the batch
// limit are dropped and counted.
func (s *Sanitizer) SanitizeBatch(batch rum.Batch, receivedAt time.Time) (records []*domain.RUMRecord, dropped int) {
	data := batch.Data
	if len(data) > s.maxRecords {
		dropped = len(data) - s.maxRecords
		data = data[:s.maxRecords]
	}

	records = make([]*domain.RUMRecord, 0, len(data))
	for i := range data {
		records = append(records, s.SanitizeRecord(data[i], receivedAt))
	}
	return records, dropped
}

// SanitizeRecord bounds every string, number and list of d
func (s *Sanitizer) SanitizeRecord(d rum.Data, receivedAt time.Time) *domain.RUMRecord {
	observed := utils.FromUnixMilli(d.Timestamp, receivedAt)

	clean := rum.Data{
		SessionID: line(d.SessionID, maxSessionIDLen),
		Timestamp: float64(observed.UnixMilli()),
		URL:       line(d.URL, maxURLLen),
		UserAgent: line(d.UserAgent, maxUserAgentLen),
		Viewport: rum.Viewport{
			Width:  utils.ClampWhole(d.Viewport.Width, 0, maxViewport),
			Height: utils.ClampWhole(d.Viewport.Height, 0, maxViewport),
		},
		Performance:  sanitizePerformance(d.Performance),
		Errors:       sanitizeErrors(d.Errors, observed),
		Interactions: sanitizeInteractions(d.Interactions, observed),
	}

	if d.Connection != nil {
		clean.Connection = &rum.Connection{
			EffectiveType: line(d.Connection.EffectiveType, maxEffectiveTypeLen),
			Downlink:      utils.ClampFloat(d.Connection.Downlink, 0, maxDownlink),
			RTT:           utils.ClampFloat(d.Connection.RTT, 0, maxRTTMs),
			SaveData:      d.Connection.SaveData,
		}
	}

	ua := utils.ParseUserAgent(clean.UserAgent)
	return &domain.RUMRecord{
		ID:         uuid.NewString(),
		ReceivedAt: receivedAt,
		ObservedAt: observed,
		Browser:    ua.Browser,
		OS:         ua.OS,
		Mobile:     ua.Mobile,
		Data:       clean,
	}
}

func line(s string, max int) string {
	return utils.Truncate(utils.SanitizeString(s), max)
}

// millis bounds a client timestamp the way FromUnixMilli does and keeps it
// in wire form.
func millis(ms float64, fallback time.Time) float64 {
	return float64(utils.FromUnixMilli(ms, fallback).UnixMilli())
}

func timing(v float64) float64 {
	return utils.ClampFloat(v, 0, maxTimingMs)
}

func optionalTiming(v *float64, max float64) *float64 {
	if v == nil {
		return nil
	}
	return rum.Float(utils.ClampFloat(*v, 0, max))
}

func sanitizePerformance(p rum.Performance) rum.Performance {
	var out rum.Performance

	if nt := p.NavigationTiming; nt != nil {
		out.NavigationTiming = &rum.NavigationTiming{
			DNSLookup:        timing(nt.DNSLookup),
			TCPConnect:       timing(nt.TCPConnect),
			TLSHandshake:     timing(nt.TLSHandshake),
			TTFB:             timing(nt.TTFB),
			ResponseTime:     timing(nt.ResponseTime),
			DOMInteractive:   timing(nt.DOMInteractive),
			DOMContentLoaded: timing(nt.DOMContentLoaded),
			LoadComplete:     timing(nt.LoadComplete),
		}
	}

	if wv := p.WebVitals; wv != nil {
		out.WebVitals = &rum.WebVitals{
			LCP:  optionalTiming(wv.LCP, maxTimingMs),
			FID:  optionalTiming(wv.FID, maxTimingMs),
			CLS:  optionalTiming(wv.CLS, maxCLS),
			FCP:  optionalTiming(wv.FCP, maxTimingMs),
			TTFB: optionalTiming(wv.TTFB, maxTimingMs),
			INP:  optionalTiming(wv.INP, maxTimingMs),
		}
	}

	if res := p.Resources; res != nil {
		slowest := res.Slowest
		if len(slowest) > maxSlowestResources {
			slowest = slowest[:maxSlowestResources]
		}
		clean := make([]rum.Resource, 0, len(slowest))
		for _, r := range slowest {
			clean = append(clean, rum.Resource{
				Name:          line(r.Name, maxResourceNameLen),
				InitiatorType: line(r.InitiatorType, maxInitiatorLen),
				Duration:      timing(r.Duration),
				Size:          utils.ClampWhole(r.Size, 0, maxSizeBytes),
			})
		}
		out.Resources = &rum.Resources{
			Count:        utils.ClampWhole(res.Count, 0, maxResCount),
			TransferSize: utils.ClampWhole(res.TransferSize, 0, maxSizeBytes),
			DecodedSize:  utils.ClampWhole(res.DecodedSize, 0, maxSizeBytes),
			Slowest:      clean,
		}
	}

	return out
}

func sanitizeErrors(in []rum.ErrorEntry, observed time.Time) []rum.ErrorEntry {
	if len(in) == 0 {
		return nil
	}
	if len(in) > maxErrorsPerRecord {
		in = in[:maxErrorsPerRecord]
	}
	out := make([]rum.ErrorEntry, 0, len(in))
	for _, e := range in {
		out = append(out, rum.ErrorEntry{
			Message:   line(e.Message, maxErrorMessageLen),
			Source:    line(e.Source, maxErrorSourceLen),
			Line:      utils.ClampWhole(e.Line, 0, maxLineNumber),
			Column:    utils.ClampWhole(e.Column, 0, maxLineNumber),
			Stack:     utils.Truncate(utils.SanitizeMultiline(e.Stack), maxStackLen),
			Timestamp: millis(e.Timestamp, observed),
		})
	}
	return out
}

func sanitizeInteractions(in []rum.Interaction, observed time.Time) []rum.Interaction {
	if len(in) == 0 {
		return nil
	}
	if len(in) > maxInteractionsPerRecord {
		in = in[:maxInteractionsPerRecord]
	}
	out := make([]rum.Interaction, 0, len(in))
	for _, i := range in {
		out = append(out, rum.Interaction{
			Type:      line(i.Type, maxInteractionType),
			Target:    line(i.Target, maxTargetLen),
			Timestamp: millis(i.Timestamp, observed),
			Duration:  timing(i.Duration),
		})
	}
	return out
}
