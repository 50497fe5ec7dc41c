package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// confirmation is the broker's answer to one publishing, matched by
// delivery tag.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	Close() error
}

type amqpChannel struct {
	*amqp.Channel
}

func (c amqpChannel) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("amqp channel is not in confirm mode")
	}
	return dc, nil
}

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange and waits for the broker's confirm of each message.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   zerolog.Logger
}

func Dial(url, exchange string, logger zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return newPublisher(conn, amqpChannel{ch}, exchange, logger), nil
}

func newPublisher(conn *amqp.Connection, ch channel, exchange string, logger zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "events").Str("exchange", exchange).Logger(),
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", env.Type, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    env.ID,
		Type:         env.Type,
		Timestamp:    env.OccurredAt,
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	confirm, err := p.ch.publish(ctx, p.exchange, routingKey, msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	// an abandoned wait leaves its confirm with its own delivery tag
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: broker nacked message", routingKey)
	}

	p.logger.Debug().Str("routing_key", routingKey).Str("event_id", env.ID).Msg("event published")
	return nil
}

func (p *AMQPPublisher) Name() string { return "amqp" }

func (p *AMQPPublisher) Ping(context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("amqp connection closed")
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		if p.conn != nil {
			p.conn.Close()
		}
		return err
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
