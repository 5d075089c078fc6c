package queue

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/storefront-live/internal/push"
)

// publisher sends console events to the commands queue on its own channel so
// publishing never interleaves with the consumer's acks.
type publisher struct {
	mu  sync.Mutex
	ch  *amqp.Channel
	key string
	now func() time.Time
}

func newPublisher(conn *amqp.Connection, key string) (*publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "publish channel open")
	}
	// durable so commands survive a broker restart
	if _, err := ch.QueueDeclare(key, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "commands queue declare")
	}
	return &publisher{ch: ch, key: key, now: time.Now}, nil
}

func (p *publisher) publish(ctx context.Context, ev push.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.PublishWithContext(ctx,
		"",    // default exchange
		p.key, // routing key = queue name
		false, // mandatory
		false, // immediate
		PublishingFromEvent(ev, p.now()),
	)
	return errors.Wrapf(err, "publish %q", ev.Name)
}

func (p *publisher) close() error {
	return p.ch.Close()
}
