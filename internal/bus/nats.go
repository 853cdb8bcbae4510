package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/nats-io/nats.go"
)

// subjectPrefix namespaces HeartCare subjects on a shared NATS server.
const subjectPrefix = "heartcare"

// NATSBus implements EventBus using NATS.
// Used by the cluster profile so events reach every replica.
type NATSBus struct {
	mu            sync.Mutex
	conn          *nats.Conn
	subscriptions map[*nats.Subscription]struct{}
}

type natsSubscription struct {
	bus   *NATSBus
	topic string
	sub   *nats.Subscription
}

// NewNATSBus connects to NATS, retrying up to NATSMaxReconnects times.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects == 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait == 0 {
		cfg.NATSReconnectWait = 5
	}
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second

	opts := []nats.Option{
		nats.Name("heartcare"),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(wait),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected",
				"error", err,
				"will_reconnect", !nc.IsClosed(),
			)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("NATS error", "error", err, "subject", subject)
		}),
	}

	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	var conn *nats.Conn
	var err error
	for attempt := 1; attempt <= cfg.NATSMaxReconnects; attempt++ {
		conn, err = nats.Connect(cfg.NATSUrl, opts...)
		if err == nil {
			break
		}
		slog.Warn("NATS connection attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.NATSMaxReconnects,
			"error", err,
		)
		if attempt < cfg.NATSMaxReconnects {
			time.Sleep(wait)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", cfg.NATSMaxReconnects, err)
	}

	slog.Info("NATS connected",
		"url", conn.ConnectedUrl(),
		"server_id", conn.ConnectedServerId(),
	)

	return &NATSBus{
		conn:          conn,
		subscriptions: make(map[*nats.Subscription]struct{}),
	}, nil
}

// Publish sends a JSON envelope to the owner's subject.
// A topic that is a NATS inbox is treated as a reply and sent unprefixed.
func (b *NATSBus) Publish(ctx context.Context, ownerID string, topic string, payload []byte) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}

	data, err := json.Marshal(newMessage(ownerID, topic, payload))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	subject := makeSubject(ownerID, topic)
	if strings.HasPrefix(topic, nats.InboxPrefix) {
		subject = topic
	}
	return b.conn.Publish(subject, data)
}

// Subscribe registers a handler for the owner's subject.
func (b *NATSBus) Subscribe(ctx context.Context, ownerID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	natsSub, err := b.conn.Subscribe(makeSubject(ownerID, topic), natsHandler(ctx, handler))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return b.track(natsSub, topic), nil
}

// QueueSubscribe joins a NATS queue group on the owner's subject.
// The server delivers each message to one member across all connections.
func (b *NATSBus) QueueSubscribe(ctx context.Context, ownerID string, topic string, group string, handler domain.MessageHandler) (domain.Subscription, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if group == "" {
		return nil, ErrGroupRequired
	}

	natsSub, err := b.conn.QueueSubscribe(makeSubject(ownerID, topic), group, natsHandler(ctx, handler))
	if err != nil {
		return nil, fmt.Errorf("failed to queue subscribe: %w", err)
	}
	return b.track(natsSub, topic), nil
}

func (b *NATSBus) track(natsSub *nats.Subscription, topic string) domain.Subscription {
	b.mu.Lock()
	b.subscriptions[natsSub] = struct{}{}
	b.mu.Unlock()

	return &natsSubscription{bus: b, topic: topic, sub: natsSub}
}

func natsHandler(ctx context.Context, handler domain.MessageHandler) nats.MsgHandler {
	return func(m *nats.Msg) {
		var msg domain.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Error("failed to unmarshal NATS message",
				"subject", m.Subject,
				"error", err,
			)
			return
		}
		if m.Reply != "" {
			if msg.Metadata == nil {
				msg.Metadata = make(map[string]string)
			}
			msg.Metadata[MetaReplyTo] = m.Reply
		}

		if err := handler(ctx, &msg); err != nil {
			slog.Error("handler error",
				"subject", m.Subject,
				"message_id", msg.ID,
				"error", err,
			)
		}
	}
}

// Request sends a request and waits for the reply, bounded by ctx or 30s.
func (b *NATSBus) Request(ctx context.Context, ownerID string, topic string, payload []byte) ([]byte, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	data, err := json.Marshal(newMessage(ownerID, topic, payload))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	reply, err := b.conn.RequestWithContext(ctx, makeSubject(ownerID, topic), data)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	var replyMsg domain.Message
	if err := json.Unmarshal(reply.Data, &replyMsg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	return replyMsg.Payload, nil
}

// Ping checks NATS connectivity.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drains nothing: pending messages are dropped with the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscriptions {
		_ = sub.Unsubscribe()
	}
	b.subscriptions = make(map[*nats.Subscription]struct{})

	b.conn.Close()
	return nil
}

// Stats returns NATS connection statistics.
func (b *NATSBus) Stats() nats.Statistics {
	return b.conn.Stats()
}

// makeSubject builds "heartcare.<owner>.<topic>".
func makeSubject(ownerID, topic string) string {
	return subjectPrefix + "." + ownerID + "." + topic
}

// Unsubscribe removes the subscription.
func (s *natsSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subscriptions, s.sub)
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}

// Topic returns the subscribed topic.
func (s *natsSubscription) Topic() string {
	return s.topic
}
