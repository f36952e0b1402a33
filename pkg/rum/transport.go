package rum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	format "finsite/pkg/formats/rum"

	"go.uber.org/zap"
)

const defaultBeaconTimeout = 10 * time.Second

// HTTPTransport posts batches as JSON to the ingestion endpoint.
type HTTPTransport struct {
	endpoint      string
	client        *http.Client
	logger        *zap.Logger
	beaconTimeout time.Duration

	inflight sync.WaitGroup
}

// NewHTTPTransport creates a transport for endpoint. A nil client uses one
// with a 10s timeout.
func NewHTTPTransport(endpoint string, client *http.Client, logger *zap.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPTransport{
		endpoint:      endpoint,
		client:        client,
		logger:        logger,
		beaconTimeout: defaultBeaconTimeout,
	}
}

// Send posts the batch and waits for a 2xx answer.
func (t *HTTPTransport) Send(ctx context.Context, batch format.Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	return t.post(ctx, body)
}

// Beacon posts the batch from a detached goroutine and returns at once. The
// batch is encoded before returning so later buffer changes cannot leak in.
func (t *HTTPTransport) Beacon(batch format.Batch) bool {
	body, err := json.Marshal(batch)
	if err != nil {
		t.logger.Warn("failed to encode beacon batch", zap.Error(err))
		return false
	}

	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.beaconTimeout)
		defer cancel()
		if err := t.post(ctx, body); err != nil {
			t.logger.Debug("beacon delivery failed", zap.Error(err))
		}
	}()
	return true
}

// Wait blocks until every beacon started so far has finished.
func (t *HTTPTransport) Wait() {
	t.inflight.Wait()
}

func (t *HTTPTransport) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingestion endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
