package rum

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformed means the body is not a JSON object.
	ErrMalformed = errors.New("malformed RUM payload")
	// ErrDataNotArray means the object has no "data" array.
	ErrDataNotArray = errors.New("data must be an array")
)

// ParseBatch decodes a POST /api/rum body. The top level must be an object
// whose "data" member is an array; a record that does not decode as an
// object fails the whole batch.
func ParseBatch(body []byte) (Batch, error) {
	var envelope struct {
		Data      json.RawMessage `json:"data"`
		Timestamp float64         `json:"timestamp"`
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Batch{}, ErrMalformed
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || data[0] != '[' {
		return Batch{}, ErrDataNotArray
	}

	batch := Batch{Timestamp: envelope.Timestamp}
	if err := json.Unmarshal(data, &batch.Data); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return batch, nil
}
