// Package rum defines the wire format shared by the RUM client buffer and the
// ingestion endpoint.
package rum

// Data is the telemetry collected for a single page view. It is mutated while
// the view is alive and sent as one element of a Batch.
//
// Every number on the wire decodes as float64. A fractional or oversized value
// is clamped by the ingestion sanitizer instead of failing the batch.
type Data struct {
	SessionID    string        `json:"sessionId"`
	Timestamp    float64       `json:"timestamp"` // ms since epoch
	URL          string        `json:"url"`
	UserAgent    string        `json:"userAgent"`
	Connection   *Connection   `json:"connection,omitempty"`
	Viewport     Viewport      `json:"viewport"`
	Performance  Performance   `json:"performance"`
	Errors       []ErrorEntry  `json:"errors,omitempty"`
	Interactions []Interaction `json:"interactions,omitempty"`
}

// Connection mirrors the Network Information API.
type Connection struct {
	EffectiveType string  `json:"effectiveType"`
	Downlink      float64 `json:"downlink"`
	RTT           float64 `json:"rtt"`
	SaveData      bool    `json:"saveData"`
}

type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Performance struct {
	NavigationTiming *NavigationTiming `json:"navigationTiming,omitempty"`
	WebVitals        *WebVitals        `json:"webVitals,omitempty"`
	Resources        *Resources        `json:"resources,omitempty"`
}

// NavigationTiming holds phase durations in milliseconds derived from the
// Navigation Timing API.
type NavigationTiming struct {
	DNSLookup        float64 `json:"dnsLookup"`
	TCPConnect       float64 `json:"tcpConnect"`
	TLSHandshake     float64 `json:"tlsHandshake"`
	TTFB             float64 `json:"ttfb"`
	ResponseTime     float64 `json:"responseTime"`
	DOMInteractive   float64 `json:"domInteractive"`
	DOMContentLoaded float64 `json:"domContentLoaded"`
	LoadComplete     float64 `json:"loadComplete"`
}

// WebVitals carries the latest value observed for each vital. Unobserved
// vitals stay nil.
type WebVitals struct {
	LCP  *float64 `json:"lcp,omitempty"`
	FID  *float64 `json:"fid,omitempty"`
	CLS  *float64 `json:"cls,omitempty"`
	FCP  *float64 `json:"fcp,omitempty"`
	TTFB *float64 `json:"ttfb,omitempty"`
	INP  *float64 `json:"inp,omitempty"`
}

type Resources struct {
	Count        float64    `json:"count"`
	TransferSize float64    `json:"transferSize"`
	DecodedSize  float64    `json:"decodedSize"`
	Slowest      []Resource `json:"slowest,omitempty"`
}

type Resource struct {
	Name          string  `json:"name"`
	InitiatorType string  `json:"initiatorType"`
	Duration      float64 `json:"duration"`
	Size          float64 `json:"size"`
}

type ErrorEntry struct {
	Message   string  `json:"message"`
	Source    string  `json:"source,omitempty"`
	Line      float64 `json:"line,omitempty"`
	Column    float64 `json:"column,omitempty"`
	Stack     string  `json:"stack,omitempty"`
	Timestamp float64 `json:"timestamp"`
}

type Interaction struct {
	Type      string  `json:"type"`
	Target    string  `json:"target"`
	Timestamp float64 `json:"timestamp"`
	Duration  float64 `json:"duration,omitempty"`
}

// Batch is the request body accepted by POST /api/rum.
type Batch struct {
	Data      []Data  `json:"data"`
	Timestamp float64 `json:"timestamp"`
}

// IngestResponse acknowledges an accepted batch.
type IngestResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Alerts    int  `json:"alerts"`
}

// Float returns a pointer to v, for filling WebVitals.
func Float(v float64) *float64 {
	return &v
}
