package queue

import (
	"fmt"
	"strings"

	"github.com/ratecast/ratecast/internal/config"
)

// New creates a Queue for the configured backend. NATS is used when the
// type is empty.
func New(cfg config.QueueConfig) (Queue, error) {
	queueType := Type(strings.ToLower(cfg.Type))
	if queueType == "" {
		queueType = TypeNATS
	}

	switch queueType {
	case TypeNATS:
		return newNATSQueue(NATSConfig{
			URL:      cfg.URL,
			Username: cfg.Username,
			Password: cfg.Password,
		})

	case TypeRedis:
		return newRedisQueue(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
			Group:    cfg.Group,
		})

	case TypeKafka:
		return newKafkaQueue(KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.Group,
		})

	case TypeMemory:
		return newMemoryQueue(), nil

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: nats, redis, kafka, memory)", queueType)
	}
}

// NewPublisher creates a Publisher for the configured backend
func NewPublisher(cfg config.QueueConfig) (Publisher, error) {
	return New(cfg)
}

// NewSubscriber creates a Subscriber for the configured backend
func NewSubscriber(cfg config.QueueConfig) (Subscriber, error) {
	return New(cfg)
}
