package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/heartcare-ai/heartcare/internal/domain"
)

var (
	// ErrOwnerRequired is returned when a call omits the owner scope.
	ErrOwnerRequired = errors.New("ownerID is required")

	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("bus is closed")

	// ErrGroupRequired is returned by QueueSubscribe without a group name.
	ErrGroupRequired = errors.New("queue group is required")
)

// New creates a new event bus based on configuration.
// The local profile uses ChannelBus, the cluster profile uses NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// MetaReplyTo is the metadata key holding the topic a responder answers on.
const MetaReplyTo = "reply_to"

func newMessage(ownerID, topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
}
