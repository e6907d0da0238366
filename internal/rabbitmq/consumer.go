package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/order"
)

// Consumer consumes order commands from RabbitMQ
type Consumer struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	orderService OrderService
	provider     string
	logger       *zap.Logger
	done         chan struct{}
}

// OrderService defines the order service interface
type OrderService interface {
	SubmitOrder(ctx context.Context, cmd *order.SubmitOrderCommand) error
	CancelOrder(ctx context.Context, orderRef string) error
}

// NewConsumer creates a new RabbitMQ consumer
func NewConsumer(url, provider string, orderService OrderService, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Consumer{
		conn:         conn,
		channel:      channel,
		orderService: orderService,
		provider:     provider,
		logger:       logger,
		done:         make(chan struct{}),
	}, nil
}

// Start starts consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	createdQueue := fmt.Sprintf("outbound.orders.created.%s", c.provider)
	canceledQueue := fmt.Sprintf("outbound.orders.canceled.%s", c.provider)

	if _, err := c.channel.QueueDeclare(createdQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", createdQueue, err)
	}

	if _, err := c.channel.QueueDeclare(canceledQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", canceledQueue, err)
	}

	createdMsgs, err := c.channel.Consume(createdQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", createdQueue, err)
	}

	canceledMsgs, err := c.channel.Consume(canceledQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", canceledQueue, err)
	}

	c.logger.Info("rabbitmq.consuming",
		zap.String("createdQueue", createdQueue),
		zap.String("canceledQueue", canceledQueue),
	)

	go c.consumeSubmits(ctx, createdMsgs)
	go c.consumeCancels(ctx, canceledMsgs)

	return nil
}

func (c *Consumer) consumeSubmits(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("rabbitmq.submit_channel_closed")
				return
			}

			var cmd order.SubmitOrderCommand
			if err := json.Unmarshal(msg.Body, &cmd); err != nil {
				c.logger.Error("rabbitmq.unmarshal_submit_failed", zap.Error(err))
				msg.Nack(false, false)
				continue
			}

			if err := c.orderService.SubmitOrder(ctx, &cmd); err != nil {
				c.logger.Error("rabbitmq.submit_failed", zap.Error(err))
				msg.Nack(false, true) // Requeue on failure
				continue
			}

			msg.Ack(false)
		}
	}
}

func (c *Consumer) consumeCancels(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("rabbitmq.cancel_channel_closed")
				return
			}

			var cmd order.CancelOrderCommand
			if err := json.Unmarshal(msg.Body, &cmd); err != nil {
				c.logger.Error("rabbitmq.unmarshal_cancel_failed", zap.Error(err))
				msg.Nack(false, false)
				continue
			}

			if err := c.orderService.CancelOrder(ctx, cmd.OrderRef); err != nil {
				c.logger.Error("rabbitmq.cancel_failed", zap.Error(err))
				msg.Nack(false, true) // Requeue on failure
				continue
			}

			msg.Ack(false)
		}
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	close(c.done)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
