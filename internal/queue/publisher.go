package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends reward events to RabbitMQ.  Each publish dials, declares
// the queue and closes again: events are rare (one per redeem or toggle) and
// a short-lived connection never has to be health-checked or reconnected.
// Failures are logged and returned so the caller can ignore them without
// interrupting the request; the database is the source of truth.
type Publisher struct {
	url         string
	dialTimeout time.Duration
	log         *logrus.Logger
}

// DefaultDialTimeout bounds the TCP connect and AMQP handshake when no
// timeout is configured.  amqp.Dial alone waits up to 30s.
const DefaultDialTimeout = 2 * time.Second

// NewPublisher returns a Publisher for the given AMQP URL.  A non-positive
// dialTimeout falls back to DefaultDialTimeout.
func NewPublisher(url string, dialTimeout time.Duration, log *logrus.Logger) *Publisher {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &Publisher{url: url, dialTimeout: dialTimeout, log: log}
}

// dial connects with a bounded connect and handshake deadline so an
// unreachable broker cannot hold up the request that emitted the event.
func dial(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// PublishRedeemed publishes a reward.redeemed event.
func (p *Publisher) PublishRedeemed(ctx context.Context, ev RewardRedeemedEvent) error {
	return p.publish(ctx, TypeRewardRedeemed, ev)
}

// PublishEquipToggled publishes a reward.equip_toggled event.
func (p *Publisher) PublishEquipToggled(ctx context.Context, ev EquipToggledEvent) error {
	return p.publish(ctx, TypeRewardEquipToggle, ev)
}

func (p *Publisher) publish(ctx context.Context, typ string, payload any) error {
	body, err := encode(typ, payload)
	if err != nil {
		return err
	}

	conn, err := dial(p.url, p.dialTimeout)
	if err != nil {
		p.log.WithError(err).Warn("rabbitmq: dial failed")
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).Warn("rabbitmq: channel open failed")
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		p.log.WithError(err).Warn("rabbitmq: queue declare failed")
		return fmt.Errorf("declare queue: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         typ,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", EventsQueue, false, false, pub); err != nil {
		p.log.WithError(err).WithField("type", typ).Warn("rabbitmq: publish failed")
		return fmt.Errorf("publish %s: %w", typ, err)
	}
	return nil
}

func encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	body, err := json.Marshal(Envelope{Type: typ, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

// NopPublisher drops every event.  It is used when RABBITMQ_URL is unset.
type NopPublisher struct{}

func (NopPublisher) PublishRedeemed(context.Context, RewardRedeemedEvent) error    { return nil }
func (NopPublisher) PublishEquipToggled(context.Context, EquipToggledEvent) error { return nil }
