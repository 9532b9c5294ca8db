package rabbit

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConsumerConfig holds configuration for a queue consumer.
type ConsumerConfig struct {
	// Queue is the queue to consume from
	Queue string
	// Tag identifies this consumer on the channel
	Tag string
	// Prefetch bounds unacknowledged deliveries; 1 means one in-flight
	// message processed to completion before the next receive
	Prefetch int
	// ReconnectDelay is the wait before retrying after a channel failure
	ReconnectDelay time.Duration
}

// DefaultConsumerConfig returns defaults for the single-consumer intake loop.
func DefaultConsumerConfig(queue string) ConsumerConfig {
	return ConsumerConfig{
		Queue:          queue,
		Tag:            "pharma-" + queue,
		Prefetch:       1,
		ReconnectDelay: 2 * time.Second,
	}
}

// Delivery is one received message with its acknowledgment controls.
type Delivery interface {
	// Body returns the raw message payload.
	Body() []byte
	// RetryCount returns the bounded-retry counter carried in headers.
	RetryCount() int
	// Redelivered reports whether the broker delivered this message before.
	Redelivered() bool
	// Ack removes the message from the queue permanently.
	Ack() error
	// NackRequeue returns the message to the queue for redelivery.
	NackRequeue() error
	// Reject discards the message without requeue; the broker routes it
	// to the dead-letter queue.
	Reject() error
}

// HandlerFunc processes one delivery. The handler owns acknowledgment; a
// returned error is logged and counted but deliberately does not ack or
// nack on the handler's behalf.
type HandlerFunc func(ctx context.Context, d Delivery) error

// Consumer runs a blocking receive loop over one queue.
type Consumer struct {
	client  *Client
	config  ConsumerConfig
	handler HandlerFunc
	logger  *zap.Logger
	tracer  trace.Tracer

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	mu           sync.RWMutex
	messagesRead int64
	errorCount   int64
}

// NewConsumer creates a consumer for the given queue.
func NewConsumer(client *Client, cfg ConsumerConfig, handler HandlerFunc, logger *zap.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("message handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		client:  client,
		config:  cfg,
		handler: handler,
		logger:  logger,
		tracer:  otel.Tracer("rabbit-consumer"),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins consuming messages.
func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.consumeLoop()
}

// Stop stops the receive loop and waits for the in-flight message to finish,
// so an acknowledgment for an already-committed order is never lost.
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

// consumeLoop obtains a channel and drains deliveries until shutdown.
// A broken channel is replaced after ReconnectDelay.
func (c *Consumer) consumeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		ch, err := c.client.ConsumerChannel(c.config.Prefetch)
		if err != nil {
			c.logger.Warn("consumer channel unavailable", zap.Error(err))
			c.sleep()
			continue
		}

		deliveries, err := ch.Consume(c.config.Queue, c.config.Tag, false, false, false, false, nil)
		if err != nil {
			c.logger.Error("consume failed",
				zap.String("queue", c.config.Queue),
				zap.Error(err))
			ch.Close()
			c.sleep()
			continue
		}

		c.logger.Info("consuming", zap.String("queue", c.config.Queue))
		c.drain(ch, deliveries)
		ch.Close()

		select {
		case <-c.ctx.Done():
			return
		default:
			c.sleep()
		}
	}
}

// drain processes deliveries sequentially until cancellation or channel loss.
func (c *Consumer) drain(ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-c.ctx.Done():
			// Stop receiving; deliveries in flight were already handled
			// to completion before this select was reached.
			_ = ch.Cancel(c.config.Tag, false)
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.process(d)
		}
	}
}

// process handles a single delivery. The handler context is detached from
// the shutdown context so an in-flight message runs to completion, including
// its acknowledgment; cancellation only stops the receive loop.
func (c *Consumer) process(d amqp.Delivery) {
	ctx, span := c.tracer.Start(context.Background(), "process_message",
		trace.WithAttributes(
			attribute.String("queue", c.config.Queue),
			attribute.Bool("redelivered", d.Redelivered),
		))
	defer span.End()

	if err := c.handler(ctx, &amqpDelivery{d: d}); err != nil {
		c.logger.Error("message handler failed",
			zap.String("queue", c.config.Queue),
			zap.Error(err))
		span.RecordError(err)
		c.incrementErrorCount()
		return
	}

	c.incrementRead()
}

func (c *Consumer) sleep() {
	select {
	case <-c.ctx.Done():
	case <-time.After(c.config.ReconnectDelay):
	}
}

// Stats returns current consumer statistics.
func (c *Consumer) Stats() ConsumerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConsumerStats{
		MessagesRead: c.messagesRead,
		ErrorCount:   c.errorCount,
	}
}

// ConsumerStats holds consumer statistics.
type ConsumerStats struct {
	MessagesRead int64
	ErrorCount   int64
}

func (c *Consumer) incrementRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesRead++
}

func (c *Consumer) incrementErrorCount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCount++
}

// amqpDelivery adapts amqp.Delivery to the Delivery interface.
type amqpDelivery struct {
	d amqp.Delivery
}

func (a *amqpDelivery) Body() []byte      { return a.d.Body }
func (a *amqpDelivery) RetryCount() int   { return RetryCountFromHeaders(a.d.Headers) }
func (a *amqpDelivery) Redelivered() bool { return a.d.Redelivered }
func (a *amqpDelivery) Ack() error        { return a.d.Ack(false) }
func (a *amqpDelivery) NackRequeue() error {
	return a.d.Nack(false, true)
}
func (a *amqpDelivery) Reject() error { return a.d.Reject(false) }
