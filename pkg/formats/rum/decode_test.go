package rum

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatch_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty object", `{}`, ErrDataNotArray},
		{"null data", `{"data":null}`, ErrDataNotArray},
		{"object data", `{"data":{"sessionId":"s"}}`, ErrDataNotArray},
		{"string data", `{"data":"[]"}`, ErrDataNotArray},
		{"top level array", `[{"sessionId":"s"}]`, ErrMalformed},
		{"empty body", ``, ErrMalformed},
		{"broken json", `{"data":[`, ErrMalformed},
		{"record not object", `{"data":[1,2]}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBatch([]byte(tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseBatch_DecodesRecords(t *testing.T) {
	body := `{
		"timestamp": 1700000000000,
		"data": [{
			"sessionId": "abc",
			"timestamp": 1700000000000,
			"url": "https://example.com/services",
			"userAgent": "Mozilla/5.0",
			"viewport": {"width": 390, "height": 844},
			"connection": {"effectiveType": "4g", "downlink": 10, "rtt": 50, "saveData": false},
			"performance": {"webVitals": {"lcp": 2100.5, "cls": 0.02}},
			"errors": [{"message": "x is undefined", "timestamp": 1700000000001}]
		}]
	}`

	got, err := ParseBatch([]byte(body))
	require.NoError(t, err)

	want := Batch{
		Timestamp: 1700000000000,
		Data: []Data{{
			SessionID:  "abc",
			Timestamp:  1700000000000,
			URL:        "https://example.com/services",
			UserAgent:  "Mozilla/5.0",
			Viewport:   Viewport{Width: 390, Height: 844},
			Connection: &Connection{EffectiveType: "4g", Downlink: 10, RTT: 50},
			Performance: Performance{WebVitals: &WebVitals{
				LCP: Float(2100.5),
				CLS: Float(0.02),
			}},
			Errors: []ErrorEntry{{Message: "x is undefined", Timestamp: 1700000000001}},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseBatch() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBatch_EmptyArray(t *testing.T) {
	got, err := ParseBatch([]byte(`{"data": []}`))
	require.NoError(t, err)
	assert.Empty(t, got.Data)
}

func TestParseBatch_KeepsOutOfRangeNumbers(t *testing.T) {
	body := `{"timestamp": 1730000000000.5, "data": [{
		"timestamp": 1e20,
		"viewport": {"width": 1280.5, "height": 1e20},
		"performance": {"resources": {"count": 2.5, "transferSize": 1e30, "decodedSize": -4,
			"slowest": [{"name": "app.js", "size": 1e25}]}},
		"errors": [{"message": "m", "line": 12.7, "column": 1e20, "timestamp": -1.5}],
		"interactions": [{"type": "click", "timestamp": 1e300}]
	}]}`

	got, err := ParseBatch([]byte(body))
	require.NoError(t, err)
	require.Len(t, got.Data, 1)

	d := got.Data[0]
	assert.Equal(t, 1730000000000.5, got.Timestamp)
	assert.Equal(t, 1280.5, d.Viewport.Width)
	assert.Equal(t, 1e20, d.Viewport.Height)
	assert.Equal(t, 1e30, d.Performance.Resources.TransferSize)
	assert.Equal(t, 1e25, d.Performance.Resources.Slowest[0].Size)
	assert.Equal(t, 12.7, d.Errors[0].Line)
	assert.Equal(t, 1e300, d.Interactions[0].Timestamp)
}
