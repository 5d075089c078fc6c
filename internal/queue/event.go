// Package queue carries the push channel over RabbitMQ. Server events are
// fanned out on an exchange; console emits go to a durable commands queue.
package queue

import (
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/storefront-live/internal/push"
)

const contentTypeJSON = "application/json"

// EventFromDelivery maps a broker delivery onto a push event. The event name
// travels in the AMQP "type" property and the body is the bare payload.
// Publishers that do not set a type may send a full {"event","data"}
// envelope instead.
func EventFromDelivery(d amqp.Delivery) (push.Event, error) {
	if d.Type != "" {
		ev := push.Event{Name: d.Type}
		if len(d.Body) > 0 {
			ev.Data = append([]byte(nil), d.Body...)
		}
		return ev, nil
	}
	ev, err := push.UnmarshalFrame(d.Body)
	if err != nil {
		return push.Event{}, errors.Wrap(err, "delivery without type")
	}
	return ev, nil
}

// PublishingFromEvent is the inverse of EventFromDelivery.
func PublishingFromEvent(ev push.Event, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		Type:         ev.Name,
		Body:         ev.Data,
	}
}
