package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

type sent struct {
	key string
	msg amqp.Publishing
}

func newTestPublisher(fail error) (*Publisher, *[]sent) {
	var out []sent
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := &Publisher{
		exchange: "gp.events",
		now:      func() time.Time { return now },
		publish: func(_ context.Context, key string, msg amqp.Publishing) error {
			if fail != nil {
				return fail
			}
			out = append(out, sent{key: key, msg: msg})
			return nil
		},
	}
	return p, &out
}

func TestNotify_PublishesUnderEventType(t *testing.T) {
	p, out := newTestPublisher(nil)
	date := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	err := p.Notify(context.Background(), gp.Event{
		Type:      gp.EventAppointmentBooked,
		BookingID: 7,
		Doctor:    "0xdoc",
		Date:      date,
	})
	require.NoError(t, err)
	require.Len(t, *out, 1)

	got := (*out)[0]
	assert.Equal(t, "appointment.booked", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.NotEmpty(t, got.msg.MessageId)

	var body EventMessage
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, uint64(7), body.BookingID)
	assert.Equal(t, "0xdoc", body.Doctor)
	assert.True(t, body.Date.Equal(date))
}

func TestSend_PublishesPayoutOrder(t *testing.T) {
	p, out := newTestPublisher(nil)

	err := p.Send(context.Background(), "0xpatient", generic.NewAmount(1100))
	require.NoError(t, err)
	require.Len(t, *out, 1)
	assert.Equal(t, KeyPayoutRequested, (*out)[0].key)

	var body map[string]any
	require.NoError(t, json.Unmarshal((*out)[0].msg.Body, &body))
	assert.Equal(t, "0xpatient", body["to"])
	assert.Equal(t, "1100", body["amount"], "amounts travel as strings")
}

func TestSend_PropagatesBrokerRefusal(t *testing.T) {
	p, _ := newTestPublisher(ErrNacked)

	err := p.Send(context.Background(), "0xpatient", generic.NewAmount(5))
	assert.True(t, errors.Is(err, ErrNacked))
}
