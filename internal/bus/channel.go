// Package bus provides the HeartCare event bus implementations.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/heartcare-ai/heartcare/internal/domain"
)

// ChannelBus implements EventBus using Go channels.
// Used by the single-process local profile.
type ChannelBus struct {
	mu            sync.RWMutex
	bufferSize    int
	subscriptions map[string][]*channelSubscription
	closed        bool
	dropped       atomic.Int64
	next          atomic.Uint64
}

type channelSubscription struct {
	bus     *ChannelBus
	id      string
	key     string
	topic   string
	group   string
	handler domain.MessageHandler
	msgCh   chan *domain.Message
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewChannelBus creates a new channel-based event bus.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize:    bufferSize,
		subscriptions: make(map[string][]*channelSubscription),
	}
}

// Publish delivers a message to every plain subscriber of the owner's topic
// and to one member of each queue group.
// Delivery never blocks: a full subscriber buffer drops the message.
func (b *ChannelBus) Publish(ctx context.Context, ownerID string, topic string, payload []byte) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}

	return b.deliver(newMessage(ownerID, topic, payload))
}

func (b *ChannelBus) deliver(msg *domain.Message) error {
	// Sends happen under the read lock so Close cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	var groups map[string][]*channelSubscription
	for _, sub := range b.subscriptions[makeKey(msg.OwnerID, msg.Topic)] {
		if sub.group != "" {
			if groups == nil {
				groups = make(map[string][]*channelSubscription)
			}
			groups[sub.group] = append(groups[sub.group], sub)
			continue
		}
		b.send(sub, msg)
	}
	for _, members := range groups {
		b.send(members[b.next.Add(1)%uint64(len(members))], msg)
	}

	return nil
}

func (b *ChannelBus) send(sub *channelSubscription, msg *domain.Message) {
	select {
	case sub.msgCh <- msg:
	default:
		b.dropped.Add(1)
		slog.Warn("event dropped, subscriber buffer full",
			"topic", msg.Topic,
			"subscription", sub.id,
		)
	}
}

// Subscribe registers a handler for a topic.
// Each subscription runs its handler on its own goroutine, in publish order.
func (b *ChannelBus) Subscribe(ctx context.Context, ownerID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	return b.subscribe(ctx, ownerID, topic, "", handler)
}

// QueueSubscribe registers a handler in a queue group. Members of a group
// take turns receiving the topic's messages.
func (b *ChannelBus) QueueSubscribe(ctx context.Context, ownerID string, topic string, group string, handler domain.MessageHandler) (domain.Subscription, error) {
	if group == "" {
		return nil, ErrGroupRequired
	}
	return b.subscribe(ctx, ownerID, topic, group, handler)
}

func (b *ChannelBus) subscribe(ctx context.Context, ownerID, topic, group string, handler domain.MessageHandler) (domain.Subscription, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)

	sub := &channelSubscription{
		bus:     b,
		id:      uuid.New().String(),
		key:     makeKey(ownerID, topic),
		topic:   topic,
		group:   group,
		handler: handler,
		msgCh:   make(chan *domain.Message, b.bufferSize),
		ctx:     subCtx,
		cancel:  cancel,
	}

	go sub.run()

	b.subscriptions[sub.key] = append(b.subscriptions[sub.key], sub)

	return sub, nil
}

func (s *channelSubscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.msgCh:
			if !ok {
				return
			}
			if err := s.handler(s.ctx, msg); err != nil {
				slog.Error("handler error",
					"topic", s.topic,
					"message_id", msg.ID,
					"error", err,
				)
			}
		}
	}
}

// Request publishes a message carrying a private reply topic in its
// metadata and waits for the first answer published there.
func (b *ChannelBus) Request(ctx context.Context, ownerID string, topic string, payload []byte) ([]byte, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	replyCh := make(chan []byte, 1)
	replyTopic := topic + ".reply." + uuid.New().String()

	sub, err := b.Subscribe(ctx, ownerID, replyTopic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	msg := newMessage(ownerID, topic, payload)
	msg.Metadata[MetaReplyTo] = replyTopic
	if err := b.deliver(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(30 * time.Second)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("request timeout on %s", topic)
	}
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops every subscription. Close is idempotent.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			sub.cancel()
			close(sub.msgCh)
		}
	}

	b.subscriptions = make(map[string][]*channelSubscription)
	return nil
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (b *ChannelBus) Dropped() int64 {
	return b.dropped.Load()
}

func makeKey(ownerID, topic string) string {
	return ownerID + ":" + topic
}

// Unsubscribe stops the handler and detaches it from the bus.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()

	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[s.key]
	for i, other := range subs {
		if other == s {
			b.subscriptions[s.key] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscriptions[s.key]) == 0 {
		delete(b.subscriptions, s.key)
	}
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
