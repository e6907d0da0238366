package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/execution"
	"github.com/Checker-Finance/tradix-adapter/internal/metrics"
	"github.com/Checker-Finance/tradix-adapter/pkg/eventbus"
	"github.com/Checker-Finance/tradix-adapter/pkg/model"
)

// Publisher forwards order status batches from the in-process bus to NATS as
// canonical event envelopes.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	service string
	logger  *zap.Logger
}

// New creates a new Publisher with JetStream enabled.
func New(nc *nats.Conn, subject, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		subject: subject,
		service: service,
		logger:  logger,
	}, nil
}

// AttachBus subscribes the publisher to order status batches. Delivery to
// NATS happens in dispatch order because the tracker publishes synchronously.
func (p *Publisher) AttachBus(bus *eventbus.EventBus) {
	bus.Subscribe(execution.OrdersStatusChangedEvent{}, func(event interface{}) {
		batch, ok := event.(execution.OrdersStatusChangedEvent)
		if !ok {
			if ptr, okPtr := event.(*execution.OrdersStatusChangedEvent); okPtr {
				batch = *ptr
			} else {
				return
			}
		}
		if err := p.PublishOrdersStatusChanged(context.Background(), batch); err != nil {
			p.logger.Error("publisher.orders_status_failed", zap.Error(err))
		}
	})
}

// PublishOrdersStatusChanged emits one orders.status.changed envelope.
func (p *Publisher) PublishOrdersStatusChanged(ctx context.Context, batch execution.OrdersStatusChangedEvent) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         p.subject,
		EventType:     "orders.status.changed",
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
	}

	return p.publishEnvelope(ctx, p.subject, env)
}

func (p *Publisher) publishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	p.logger.Debug("publisher.publish_success",
		zap.String("subject", subject),
		zap.String("event_type", env.EventType))

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
