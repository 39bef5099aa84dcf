package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/raysh454/compliscan/internal/logging"
)

const (
	DefaultExchange = "compliscan.events"
	cloudEventType  = "io.compliscan."
	cloudSource     = "/compliscan"
	publishTimeout  = 5 * time.Second
)

// CloudEvent is the CloudEvents 1.0 envelope published to the exchange.
type CloudEvent struct {
	SpecVersion     string `json:"specversion"`
	Type            string `json:"type"`
	Source          string `json:"source"`
	ID              string `json:"id"`
	Time            string `json:"time"`
	DataContentType string `json:"datacontenttype"`
	Data            Event  `json:"data"`
}

func newCloudEvent(ev Event) CloudEvent {
	return CloudEvent{
		SpecVersion:     "1.0",
		Type:            cloudEventType + string(ev.Type),
		Source:          cloudSource,
		ID:              ev.ID,
		Time:            ev.OccurredAt.UTC().Format(time.RFC3339),
		DataContentType: "application/json",
		Data:            ev,
	}
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes CloudEvents to a topic exchange, routed by event type.
type AMQP struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   logging.Logger
}

// NewAMQP dials url and declares a durable topic exchange.
func NewAMQP(url, exchange string, logger logging.Logger) (*AMQP, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}
	p := newAMQP(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newAMQP(ch channel, exchange string, logger logging.Logger) *AMQP {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AMQP{ch: ch, exchange: exchange, logger: logger.With(logging.Component("events.amqp"))}
}

func (p *AMQP) Publish(ctx context.Context, ev Event) error {
	ce := newCloudEvent(ev)
	body, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, string(ev.Type), false, false, amqp.Publishing{
		ContentType:  "application/cloudevents+json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}

	p.logger.Debug("event published",
		logging.Field{Key: "type", Value: ce.Type},
		logging.Field{Key: "id", Value: ce.ID},
		logging.Field{Key: "routing_key", Value: string(ev.Type)})
	return nil
}

func (p *AMQP) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
