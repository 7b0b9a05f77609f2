package queue

import "context"

// Publisher publishes order messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg OrderMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg OrderMessage) error

// Consumer consumes order messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// ForwardQueue carries orders awaiting upstream placement.
	ForwardQueue = "orders.forward"
	// ForwardDLQ collects messages rejected as unprocessable.
	ForwardDLQ = "dlq.orders.forward"

	// queueMaxPriority is the RabbitMQ x-max-priority value for work queues.
	queueMaxPriority int32 = 2
)

// WorkQueueNames returns all work queues consumed by forward workers.
func WorkQueueNames() []string {
	return []string{ForwardQueue}
}

// PriorityValue maps message priority to RabbitMQ message priority.
// Resubmitted orders jump ahead of freshly placed ones.
func PriorityValue(resubmit bool) uint8 {
	if resubmit {
		return 2
	}
	return 1
}
