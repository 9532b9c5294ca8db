// Package rabbit provides the AMQP broker infrastructure: connection
// management, queue topology, and the consumer/publisher wrappers.
package rabbit

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names used by the order pipeline.
const (
	QueueOrders        = "orders"
	QueueOrderUpdates  = "order_updates"
	QueueNewMedication = "new_medication"
	QueueDeadLetter    = "pharma.dead_letter"
)

// DeadLetterExchange receives messages rejected without requeue from any of
// the work queues.
const DeadLetterExchange = "pharma.dlx"

// HeaderRetryCount tracks how many times an intake message has been
// republished after a transient failure.
const HeaderRetryCount = "x-retry-count"

// DeclareTopology declares the durable queues and the dead-letter wiring.
// Safe to call repeatedly; declarations are idempotent.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(QueueDeadLetter, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(QueueDeadLetter, "", DeadLetterExchange, false, nil); err != nil {
		return err
	}

	// Work queues dead-letter rejected messages into the fanout exchange.
	args := amqp.Table{"x-dead-letter-exchange": DeadLetterExchange}
	for _, q := range []string{QueueOrders, QueueOrderUpdates, QueueNewMedication} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, args); err != nil {
			return err
		}
	}
	return nil
}

// RetryCountFromHeaders extracts the retry counter from message headers.
// Missing or malformed headers count as zero.
func RetryCountFromHeaders(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[HeaderRetryCount].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
