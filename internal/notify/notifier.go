package notify

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/push"
	"github.com/iliyamo/storefront-live/internal/session"
)

// Options configures a Notifier. Zero values fall back to the defaults.
type Options struct {
	Policy      push.Policy
	Renderer    Renderer
	Sound       Sound
	DedupeTTL   time.Duration
	DedupeSize  int
	HistorySize int
	Now         func() time.Time
}

// Notifier decides whether an event is shown to the session, plays the
// sound once and renders the toast. A toast whose dedupe key was seen (or
// suppressed) within the TTL is dropped silently.
type Notifier struct {
	policy   push.Policy
	renderer Renderer
	sound    Sound
	now      func() time.Time
	seen     *expirable.LRU[string, struct{}]
	history  *History
	log      *zap.Logger

	mu sync.Mutex // serialises check-and-mark on seen
}

func New(opts Options) *Notifier {
	if opts.Policy == nil {
		opts.Policy = push.DefaultPolicy
	}
	if opts.Renderer == nil {
		opts.Renderer = Discard{}
	}
	if opts.Sound == nil {
		opts.Sound = Discard{}
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 2 * time.Minute
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = 1024
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Notifier{
		policy:   opts.Policy,
		renderer: opts.Renderer,
		sound:    opts.Sound,
		now:      opts.Now,
		seen:     expirable.NewLRU[string, struct{}](opts.DedupeSize, nil, opts.DedupeTTL),
		history:  NewHistory(opts.HistorySize),
		log:      logger.Named("notify"),
	}
}

// Handle processes one event for sess and reports whether a toast was shown.
func (n *Notifier) Handle(ev push.Event, sess session.Identity) (Toast, bool) {
	if !n.policy.CanSee(ev.Name, sess.Role) {
		return Toast{}, false
	}
	t, ok, err := build(ev, sess)
	if err != nil {
		n.log.Warn("drop undecodable event", zap.String("event", ev.Name), zap.Error(err))
		return Toast{}, false
	}
	if !ok || !n.mark(t.key) {
		return Toast{}, false
	}
	t.At = n.now()
	n.sound.Play()
	if err := n.renderer.Render(t); err != nil {
		n.log.Warn("render toast", zap.String("event", ev.Name), zap.Error(err))
	}
	n.history.Add(t)
	return t, true
}

// Suppress marks key as already shown, so the push echo of a mutation this
// console made itself stays quiet.
func (n *Notifier) Suppress(key string) {
	n.mu.Lock()
	n.seen.Add(key, struct{}{})
	n.mu.Unlock()
}

// SuppressOrderStatus suppresses the status echo for o under both its id and
// its number, since status payloads may carry either.
func (n *Notifier) SuppressOrderStatus(o model.Order, st model.OrderStatus) {
	if o.ID != "" {
		n.Suppress(OrderStatusKey(o.ID, st))
	}
	if o.Number != "" {
		n.Suppress(OrderStatusKey("#"+o.Number, st))
	}
}

// ReleaseOrderStatus undoes SuppressOrderStatus after a failed mutation.
func (n *Notifier) ReleaseOrderStatus(o model.Order, st model.OrderStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if o.ID != "" {
		n.seen.Remove(OrderStatusKey(o.ID, st))
	}
	if o.Number != "" {
		n.seen.Remove(OrderStatusKey("#"+o.Number, st))
	}
}

// mark records key and reports whether it was new.
func (n *Notifier) mark(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.seen.Contains(key) {
		return false
	}
	n.seen.Add(key, struct{}{})
	return true
}

// History returns the most recent toasts, newest first.
func (n *Notifier) History() []Toast { return n.history.List() }

// Attach subscribes the notifier to every toast event through s. Events the
// session role may not see are skipped.
func (n *Notifier) Attach(s push.Subscriber, sess session.Identity) error {
	for _, name := range Events {
		_, err := s.Subscribe(name, func(_ context.Context, ev push.Event) {
			n.Handle(ev, sess)
		})
		if errors.Is(err, push.ErrForbidden) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "subscribe %q", name)
		}
	}
	return nil
}
