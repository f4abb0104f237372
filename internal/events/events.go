// Package events publishes domain events (registrations, task changes) to a
// message broker and lets tools subscribe to them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tasklane/apiserver/config"
)

const (
	TypeUserRegistered = "user.registered"
	TypeTaskCreated    = "task.created"
	TypeTaskUpdated    = "task.updated"
	TypeTaskDeleted    = "task.deleted"
)

// Event is the envelope written to the broker as JSON.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New builds an event of the given type with payload encoded as JSON.
func New(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}, nil
}

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend is the transport a Bus publishes through.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Bus publishes and consumes Events on a single channel.
type Bus struct {
	backend Backend
	channel string
	log     *slog.Logger
}

func NewBus(backend Backend, channel string, log *slog.Logger) *Bus {
	return &Bus{backend: backend, channel: channel, log: log}
}

// Open selects the backend named in cfg. An empty backend yields a bus that
// drops every event.
func Open(ctx context.Context, cfg config.EventsConfig, log *slog.Logger) (*Bus, error) {
	var backend Backend
	switch strings.TrimSpace(cfg.Backend) {
	case "", "none":
		backend = NopBackend{}
	case "rabbitmq":
		rb, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		backend = rb
	case "pubsub":
		ps, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		backend = ps
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
	return NewBus(backend, cfg.Channel, log.With("channel", cfg.Channel)), nil
}

// Publish sends evt to the bus channel.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	id, err := b.backend.Publish(ctx, b.channel, data, map[string]string{"type": evt.Type})
	if err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	b.log.DebugContext(ctx, "event published", "type", evt.Type, "event_id", evt.ID, "message_id", id)
	return nil
}

// Subscribe delivers decoded events to handler until ctx is done. Messages
// that are not valid events are logged and acknowledged.
func (b *Bus) Subscribe(ctx context.Context, handler func(ctx context.Context, evt Event) error) error {
	return b.backend.Subscribe(ctx, b.channel, func(ctx context.Context, msg Message) error {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			b.log.WarnContext(ctx, "dropping malformed event", "message_id", msg.ID, "error", err)
			return nil
		}
		return handler(ctx, evt)
	})
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}

// ErrNoBackend is returned when subscribing without a configured broker.
var ErrNoBackend = errors.New("no events backend configured")

// NopBackend discards published messages.
type NopBackend struct{}

func (NopBackend) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (NopBackend) Subscribe(context.Context, string, Handler) error {
	return ErrNoBackend
}

func (NopBackend) Close() error { return nil }
