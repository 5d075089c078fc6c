// Package pushtest provides an in-memory push transport for tests.
package pushtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/push"
	"github.com/iliyamo/storefront-live/internal/session"
)

// Conn is a push.Conn fed from the In channel.
type Conn struct {
	In      chan push.Event
	Emitted chan push.Event

	closed chan struct{}
	once   sync.Once
}

func NewConn() *Conn {
	return &Conn{
		In:      make(chan push.Event, 64),
		Emitted: make(chan push.Event, 64),
		closed:  make(chan struct{}),
	}
}

func (c *Conn) Read(ctx context.Context) (push.Event, error) {
	select {
	case ev := <-c.In:
		return ev, nil
	case <-c.closed:
		return push.Event{}, errors.New("pushtest: closed")
	case <-ctx.Done():
		return push.Event{}, ctx.Err()
	}
}

func (c *Conn) Emit(_ context.Context, ev push.Event) error {
	select {
	case <-c.closed:
		return errors.New("pushtest: closed")
	case c.Emitted <- ev:
		return nil
	}
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Transport hands out a new Conn per dial.
type Transport struct {
	Dialed chan *Conn
}

func NewTransport() *Transport {
	return &Transport{Dialed: make(chan *Conn, 16)}
}

func (t *Transport) Dial(context.Context, string) (push.Conn, error) {
	c := NewConn()
	t.Dialed <- c
	return c, nil
}

// Conn waits for the next dial.
func (t *Transport) Conn(tb testing.TB) *Conn {
	tb.Helper()
	select {
	case c := <-t.Dialed:
		return c
	case <-time.After(2 * time.Second):
		tb.Fatal("pushtest: no dial")
		return nil
	}
}

// NewManager returns a manager for role over a fresh Transport. The manager
// is closed when the test ends.
func NewManager(tb testing.TB, role model.Role) (*push.Manager, *Transport) {
	tb.Helper()
	tr := NewTransport()
	m := push.NewManager(push.Options{
		Transport: tr,
		Tokens:    session.StaticToken("test"),
		Role:      role,
		Backoff:   push.Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2},
	})
	tb.Cleanup(m.Close)
	return m, tr
}

// Event builds an event or fails the test.
func Event(tb testing.TB, name string, payload interface{}) push.Event {
	tb.Helper()
	ev, err := push.NewEvent(name, payload)
	if err != nil {
		tb.Fatal(err)
	}
	return ev
}

// Eventually polls cond for up to two seconds.
func Eventually(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %s", what)
}
