package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finsite/internal/core/domain"
	"finsite/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// AlertChannel carries alerts between site instances
	AlertChannel = "finsite:alerts"

	publishTimeout = 500 * time.Millisecond
)

// envelope is the pub/sub payload
type envelope struct {
	InstanceID string                   `json:"instance_id"`
	SentAt     time.Time                `json:"sent_at"`
	Alert      *domain.PerformanceAlert `json:"alert"`
}

// AlertBus fans alerts out to the local subscribers and, through Redis
// pub/sub, to the subscribers of every other instance.
type AlertBus struct {
	client     redis.UniversalClient
	instanceID string
	local      ports.AlertPublisher
	logger     *zap.SugaredLogger
}

// NewAlertBus wraps local. A nil client makes the bus local only.
func NewAlertBus(client redis.UniversalClient, instanceID string, local ports.AlertPublisher, logger *zap.SugaredLogger) *AlertBus {
	return &AlertBus{
		client:     client,
		instanceID: instanceID,
		local:      local,
		logger:     logger,
	}
}

// Publish delivers alert locally and broadcasts it to the other instances
func (b *AlertBus) Publish(alert *domain.PerformanceAlert) {
	b.local.Publish(alert)
	if b.client == nil {
		return
	}

	data, err := encodeEnvelope(b.instanceID, alert, time.Now())
	if err != nil {
		b.logger.Errorw("failed to encode alert for broadcast", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, AlertChannel, data).Err(); err != nil {
		b.logger.Warnw("failed to broadcast alert",
			"alert_id", alert.ID,
			"error", err,
		)
	}
}

// Run forwards alerts published by other instances to the local subscribers
// until ctx is done.
func (b *AlertBus) Run(ctx context.Context) error {
	if b.client == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := b.client.Subscribe(ctx, AlertChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", AlertChannel, err)
	}
	b.logger.Infow("subscribed to alert broadcasts", "channel", AlertChannel, "instance_id", b.instanceID)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(msg.Payload)
		}
	}
}

func (b *AlertBus) deliver(payload string) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		b.logger.Warnw("failed to decode alert broadcast", "error", err)
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}
	b.local.Publish(env.Alert)
}

func encodeEnvelope(instanceID string, alert *domain.PerformanceAlert, now time.Time) ([]byte, error) {
	return json.Marshal(envelope{InstanceID: instanceID, SentAt: now, Alert: alert})
}

func decodeEnvelope(payload string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return envelope{}, err
	}
	if env.Alert == nil {
		return envelope{}, fmt.Errorf("broadcast without alert")
	}
	return env, nil
}
