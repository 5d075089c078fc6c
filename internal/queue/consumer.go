package queue

import (
	"context"
	"net/url"
	"sync"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/push"
)

// AMQP is a push.Transport over RabbitMQ. Each Dial declares the fanout
// exchange, binds a fresh exclusive auto-delete queue to it and consumes with
// manual acks. Reconnecting is left to the push manager.
type AMQP struct {
	URL           string
	Exchange      string
	CommandsQueue string
	Prefetch      int
}

func (a *AMQP) Dial(ctx context.Context, token string) (push.Conn, error) {
	addr, err := withToken(a.URL, token)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(addr, amqp.Config{Properties: amqp.Table{"connection_name": "storefront-live"}})
	if err != nil {
		if refused(err) {
			return nil, errors.Wrap(push.ErrUnauthorized, err.Error())
		}
		return nil, errors.Wrap(err, "amqp dial")
	}
	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c, err := a.open(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (a *AMQP) open(conn *amqp.Connection) (*amqpConn, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "channel open")
	}
	prefetch := a.Prefetch
	if prefetch <= 0 {
		prefetch = 50
	}
	log := logger.Named("queue")
	if err := ch.Qos(prefetch, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}
	if err := ch.ExchangeDeclare(a.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, errors.Wrap(err, "exchange declare")
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "queue declare")
	}
	if err := ch.QueueBind(q.Name, "", a.Exchange, false, nil); err != nil {
		return nil, errors.Wrap(err, "queue bind")
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "queue consume")
	}
	pub, err := newPublisher(conn, a.CommandsQueue)
	if err != nil {
		return nil, err
	}
	return &amqpConn{conn: conn, ch: ch, msgs: msgs, pub: pub, log: log}, nil
}

type amqpConn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	msgs <-chan amqp.Delivery
	pub  *publisher
	log  *zap.Logger
	once sync.Once
}

func (c *amqpConn) Read(ctx context.Context) (push.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return push.Event{}, ctx.Err()
		case d, ok := <-c.msgs:
			if !ok {
				return push.Event{}, errors.New("deliveries channel closed")
			}
			ev, err := EventFromDelivery(d)
			if err != nil {
				c.log.Warn("reject delivery", zap.Error(err))
				_ = d.Nack(false, false) // do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
			return ev, nil
		}
	}
}

func (c *amqpConn) Emit(ctx context.Context, ev push.Event) error {
	return c.pub.publish(ctx, ev)
}

func (c *amqpConn) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.pub.close()
		_ = c.ch.Close()
		err = c.conn.Close()
	})
	return err
}

// withToken puts token in the password slot of the broker url. The broker
// is expected to validate it through an auth backend.
func withToken(raw, token string) (string, error) {
	if token == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "amqp url")
	}
	user := "console"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, token)
	return u.String(), nil
}

func refused(err error) bool {
	if errors.Is(err, amqp.ErrSASL) || errors.Is(err, amqp.ErrCredentials) {
		return true
	}
	var ae *amqp.Error
	if errors.As(err, &ae) {
		return ae.Code == amqp.AccessRefused
	}
	return false
}
