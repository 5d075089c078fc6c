package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/logger"
)

// Scope groups the subscriptions of one view so they can be detached
// together when the view goes away. Closing a scope never affects listeners
// attached through other scopes.
type Scope struct {
	m    *Manager
	name string

	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// Scope returns a new subscription group labelled name.
func (m *Manager) Scope(name string) *Scope {
	return &Scope{m: m, name: name}
}

func (s *Scope) Name() string { return s.name }

func (s *Scope) Subscribe(event string, h Handler) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	sub, err := s.m.Subscribe(event, h)
	if err != nil {
		return nil, err
	}
	s.subs = append(s.subs, sub)
	return sub, nil
}

// Len is the number of listeners the scope still holds.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.active.Load() {
			n++
		}
	}
	return n
}

// Close detaches every listener of this scope.
func (s *Scope) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.closed = true
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// On subscribes fn to event with the payload decoded into T. Payloads that
// do not decode are logged and dropped.
func On[T any](s Subscriber, event string, fn func(ctx context.Context, v T)) (*Subscription, error) {
	return s.Subscribe(event, func(ctx context.Context, ev Event) {
		var v T
		if err := Decode(ev, &v); err != nil {
			logger.Named("push").Warn("drop undecodable payload", zap.String("event", ev.Name), zap.Error(err))
			return
		}
		fn(ctx, v)
	})
}

// Decode converts the JSON payload into out. Numbers and strings are
// converted weakly ("1042" and 1042 both fit a string or int field) and
// RFC 3339 strings decode into time.Time.
func Decode(ev Event, out interface{}) error {
	if len(ev.Data) == 0 {
		return errors.Errorf("event %q has no payload", ev.Name)
	}
	var raw interface{}
	if err := json.Unmarshal(ev.Data, &raw); err != nil {
		return errors.Wrapf(err, "event %q payload", ev.Name)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return errors.Wrap(err, "decoder")
	}
	return errors.Wrapf(dec.Decode(raw), "event %q payload", ev.Name)
}
