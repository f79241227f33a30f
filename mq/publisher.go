// Package mq publishes appointment events and payout orders to RabbitMQ.
//
// Publisher implements both gp.Notifier and generic.Payments. Payout orders
// are published with publisher confirms: Send returns only once the broker
// has accepted the order, so a withdrawal whose order was not accepted is
// rolled back.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// Routing keys.
const (
	KeyPayoutRequested = "payout.requested"
)

// ErrNacked is returned when the broker refuses a confirmed publish.
var ErrNacked = errors.New("publish not acknowledged by broker")

type publishFunc func(ctx context.Context, key string, msg amqp.Publishing) error

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	publish  publishFunc
	now      func() time.Time
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	p := &Publisher{conn: conn, ch: ch, exchange: exchange, now: time.Now}
	p.publish = p.publishConfirmed
	return p, nil
}

func (p *Publisher) publishConfirmed(ctx context.Context, key string, msg amqp.Publishing) error {
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("publish %s: %w", key, ErrNacked)
	}
	return nil
}

// PublishJSON publishes v as a persistent JSON message.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	msg, err := p.message(v)
	if err != nil {
		return err
	}
	return p.publish(ctx, key, msg)
}

func (p *Publisher) message(v any) (amqp.Publishing, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    p.now().UTC(),
		Body:         b,
	}, nil
}

// EventMessage is the body of appointment.* messages.
type EventMessage struct {
	Type      string    `json:"type"`
	BookingID uint64    `json:"booking_id"`
	Doctor    string    `json:"doctor"`
	Date      time.Time `json:"appointment_date"`
}

// Notify publishes the event under its type as routing key.
func (p *Publisher) Notify(ctx context.Context, ev gp.Event) error {
	return p.PublishJSON(ctx, string(ev.Type), EventMessage{
		Type:      string(ev.Type),
		BookingID: uint64(ev.BookingID),
		Doctor:    ev.Doctor.String(),
		Date:      ev.Date.UTC(),
	})
}

// PayoutMessage is the body of payout.requested messages.
type PayoutMessage struct {
	To          string         `json:"to"`
	Amount      generic.Amount `json:"amount"`
	RequestedAt time.Time      `json:"requested_at"`
}

// Send publishes a payout order and waits for the broker to confirm it.
func (p *Publisher) Send(ctx context.Context, to generic.Address, amount generic.Amount) error {
	return p.PublishJSON(ctx, KeyPayoutRequested, PayoutMessage{
		To:          to.String(),
		Amount:      amount,
		RequestedAt: p.now().UTC(),
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
