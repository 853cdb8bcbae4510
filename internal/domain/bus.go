package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (local) or NATS (cluster).
// Messages are scoped by an owner ID; "_global" is used for service-wide topics.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, ownerID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, ownerID string, topic string, handler MessageHandler) (Subscription, error)

	// QueueSubscribe registers a handler as a member of a queue group.
	// Each message is delivered to one member of the group.
	QueueSubscribe(ctx context.Context, ownerID string, topic string, group string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, ownerID string, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"ownerId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// GlobalOwner scopes messages that are not tied to a single user.
const GlobalOwner = "_global"

// Standard topic names for the assessment pipeline.
const (
	TopicAssessmentSubmitted = "heartcare.assessment.submitted"
	TopicAssessmentScored    = "heartcare.assessment.scored"
	TopicRiskHigh            = "heartcare.risk.high"
	TopicContactReceived     = "heartcare.contact.received"
)
