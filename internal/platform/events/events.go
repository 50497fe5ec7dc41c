// Package events publishes domain events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every published payload.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func NewEnvelope(eventType string, data interface{}) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher sends an envelope with the given routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, env Envelope) error
}

// Nop discards events. Used when AMQP_URL is unset.
type Nop struct{}

func (Nop) Publish(context.Context, string, Envelope) error { return nil }
