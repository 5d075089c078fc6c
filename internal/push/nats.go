package push

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// NATS carries the push channel over NATS subjects. Server events arrive on
// "<prefix>.events" and console emits go to "<prefix>.commands", both as
// JSON envelopes. Reconnects are driven by the Manager, so the client's own
// reconnect logic is disabled.
type NATS struct {
	URL     string
	Prefix  string
	Name    string
	Timeout time.Duration
}

func (n *NATS) eventsSubject() string   { return n.Prefix + ".events" }
func (n *NATS) commandsSubject() string { return n.Prefix + ".commands" }

func (n *NATS) Dial(ctx context.Context, token string) (Conn, error) {
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left < timeout {
			timeout = left
		}
	}
	closed := make(chan struct{})
	opts := []nats.Option{
		nats.Name(n.Name),
		nats.Timeout(timeout),
		nats.NoReconnect(),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	nc, err := nats.Connect(n.URL, opts...)
	if err != nil {
		return nil, natsDialError(err)
	}

	msgs := make(chan *nats.Msg, 256)
	sub, err := nc.ChanSubscribe(n.eventsSubject(), msgs)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "nats subscribe")
	}
	return &natsConn{nc: nc, sub: sub, msgs: msgs, closed: closed, commands: n.commandsSubject()}, nil
}

// natsDialError maps a rejected token to ErrUnauthorized so the Manager
// refreshes it before the next attempt.
func natsDialError(err error) error {
	if errors.Is(err, nats.ErrAuthorization) || errors.Is(err, nats.ErrAuthExpired) {
		return errors.Wrap(ErrUnauthorized, err.Error())
	}
	return errors.Wrap(err, "nats connect")
}

type natsConn struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	msgs     chan *nats.Msg
	closed   chan struct{}
	commands string
}

func (c *natsConn) Read(ctx context.Context) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-c.closed:
			return Event{}, errors.New("nats connection closed")
		case msg := <-c.msgs:
			ev, err := UnmarshalFrame(msg.Data)
			if err != nil {
				continue
			}
			return ev, nil
		}
	}
}

func (c *natsConn) Emit(_ context.Context, ev Event) error {
	frame, err := ev.MarshalFrame()
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	return errors.Wrap(c.nc.Publish(c.commands, frame), "nats publish")
}

func (c *natsConn) Close() error {
	_ = c.sub.Unsubscribe()
	c.nc.Close()
	return nil
}
