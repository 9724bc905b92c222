// Package queue moves run events between the forecaster and its watchers
// over NATS JetStream, Redis Streams, Kafka or an in-process channel.
package queue

import "context"

// Type names a queue backend
type Type string

const (
	// TypeNATS represents NATS JetStream (default)
	TypeNATS Type = "nats"

	// TypeRedis represents Redis Streams
	TypeRedis Type = "redis"

	// TypeKafka represents Apache Kafka
	TypeKafka Type = "kafka"

	// TypeMemory represents the in-process queue used by tests and the CLI
	TypeMemory Type = "memory"
)

// Publisher publishes messages to a queue
type Publisher interface {
	// Publish publishes a message to a subject/topic
	Publish(ctx context.Context, subject string, data []byte) error

	// Close closes the connection
	Close() error
}

// Subscriber subscribes to messages from a queue
type Subscriber interface {
	// Subscribe subscribes to a subject/topic with a handler
	Subscribe(subject string, handler MessageHandler) error

	// Unsubscribe unsubscribes from a subject/topic
	Unsubscribe(subject string) error

	// Close closes the connection
	Close() error
}

// MessageHandler handles incoming messages. A non-nil error leaves the
// message unacknowledged where the backend supports redelivery.
type MessageHandler func(data []byte) error

// Queue combines Publisher and Subscriber interfaces
type Queue interface {
	Publisher
	Subscriber
}
