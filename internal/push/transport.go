package push

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized is returned by Transport.Dial when the server rejected
	// the token. The manager refreshes the token before the next attempt.
	ErrUnauthorized = errors.New("push: unauthorized")
	// ErrNotConnected is returned by Emit while no connection is live.
	ErrNotConnected = errors.New("push: not connected")
	// ErrClosed is returned after Manager.Close.
	ErrClosed = errors.New("push: manager closed")
	// ErrForbidden is returned by Subscribe for events the session role may not see.
	ErrForbidden = errors.New("push: event not visible to role")
)

// Transport opens connections to the push channel.
type Transport interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Conn is one live connection. Read is called from a single goroutine;
// Emit may be called concurrently with Read. Close unblocks a pending Read.
type Conn interface {
	Read(ctx context.Context) (Event, error)
	Emit(ctx context.Context, ev Event) error
	Close() error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, token string) (Conn, error)

func (f TransportFunc) Dial(ctx context.Context, token string) (Conn, error) { return f(ctx, token) }
