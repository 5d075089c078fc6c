package push

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/session"
)

// State is the lifecycle of the shared connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Handler receives events for one subscription. Handlers run on the
// manager's read goroutine in arrival order and must not block for long.
type Handler func(ctx context.Context, ev Event)

// Subscriber is implemented by Manager and Scope.
type Subscriber interface {
	Subscribe(event string, h Handler) (*Subscription, error)
}

// Options configures a Manager.
type Options struct {
	Transport Transport
	Tokens    session.TokenSource
	Role      model.Role
	Policy    Policy      // nil uses DefaultPolicy
	Backoff   Backoff     // zero value uses DefaultBackoff
	Logger    *zap.Logger // nil discards
	OnState   func(State) // called outside the manager lock
}

// Subscription is one attached listener.
type Subscription struct {
	m      *Manager
	id     uint64
	event  string
	h      Handler
	active atomic.Bool
}

func (s *Subscription) Event() string { return s.event }

// Unsubscribe detaches this listener only. It is safe to call more than once
// and from inside a handler.
func (s *Subscription) Unsubscribe() {
	if s != nil {
		s.m.remove(s)
	}
}

// Manager owns the one push connection of the process. The transport is
// dialled when the first subscriber (or Connect pin) arrives and closed when
// the last one leaves; while referenced it reconnects with backoff.
type Manager struct {
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	subs    map[string]map[uint64]*Subscription
	refs    int
	pins    int
	nextID  uint64
	state   State
	conn    Conn
	gen     uint64
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

func NewManager(opts Options) *Manager {
	if opts.Policy == nil {
		opts.Policy = DefaultPolicy
	}
	if opts.Backoff.Initial == 0 && opts.Backoff.Max == 0 {
		opts.Backoff = DefaultBackoff
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		opts: opts,
		log:  log.With(zap.String("component", "push")),
		subs: make(map[string]map[uint64]*Subscription),
	}
}

// Role is the session role the manager filters for.
func (m *Manager) Role() model.Role { return m.opts.Role }

// Subscribe attaches h to event. Events the session role may not see are
// refused with ErrForbidden, so no handler ever observes them.
func (m *Manager) Subscribe(event string, h Handler) (*Subscription, error) {
	if h == nil {
		return nil, errors.New("push: nil handler")
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if !m.opts.Policy.CanSee(event, m.opts.Role) {
		m.mu.Unlock()
		return nil, errors.Wrapf(ErrForbidden, "%q as %s", event, m.opts.Role)
	}
	m.nextID++
	s := &Subscription{m: m, id: m.nextID, event: event, h: h}
	s.active.Store(true)
	if m.subs[event] == nil {
		m.subs[event] = make(map[uint64]*Subscription)
	}
	m.subs[event][s.id] = s
	changed := m.acquireLocked()
	st := m.state
	m.mu.Unlock()

	if changed {
		m.notify(st)
	}
	return s, nil
}

func (m *Manager) remove(s *Subscription) {
	m.mu.Lock()
	if !s.active.CompareAndSwap(true, false) {
		m.mu.Unlock()
		return
	}
	if byID := m.subs[s.event]; byID != nil {
		delete(byID, s.id)
		if len(byID) == 0 {
			delete(m.subs, s.event)
		}
	}
	conn, changed := m.releaseLocked()
	st := m.state
	m.mu.Unlock()

	closeConn(conn)
	if changed {
		m.notify(st)
	}
}

// Connect pins the connection open even without subscribers. Each Connect
// must be paired with Disconnect.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.pins++
	changed := m.acquireLocked()
	st := m.state
	m.mu.Unlock()
	if changed {
		m.notify(st)
	}
	return nil
}

// Disconnect drops one Connect pin. Subscribers still attached keep the
// connection alive.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.pins == 0 {
		m.mu.Unlock()
		return
	}
	m.pins--
	conn, changed := m.releaseLocked()
	st := m.state
	m.mu.Unlock()

	closeConn(conn)
	if changed {
		m.notify(st)
	}
}

// Emit sends ev on the live connection.
func (m *Manager) Emit(ctx context.Context, ev Event) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !m.opts.Policy.CanSee(ev.Name, m.opts.Role) {
		m.mu.Unlock()
		return errors.Wrapf(ErrForbidden, "emit %q as %s", ev.Name, m.opts.Role)
	}
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	return errors.Wrapf(conn.Emit(ctx, ev), "emit %q", ev.Name)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SubscriberCount returns the number of listeners attached to event.
func (m *Manager) SubscriberCount(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[event])
}

// Events lists event names with at least one listener.
func (m *Manager) Events() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.subs))
	for name := range m.subs {
		out = append(out, name)
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out
}

// Close detaches every subscriber, closes the connection and waits for the
// read loop to exit. It must not be called from a Handler.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, byID := range m.subs {
		for _, s := range byID {
			s.active.Store(false)
		}
	}
	m.subs = make(map[string]map[uint64]*Subscription)
	m.refs, m.pins = 0, 0
	conn := m.stopLocked()
	done := m.done
	m.state = StateClosed
	m.mu.Unlock()

	closeConn(conn)
	if done != nil {
		<-done
	}
	m.notify(StateClosed)
}

// acquireLocked adds a reference and starts the read loop on 0→1.
func (m *Manager) acquireLocked() (changed bool) {
	m.refs++
	if m.refs != 1 || m.running {
		return false
	}
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	m.state = StateConnecting
	go m.run(ctx, m.gen, m.done)
	return true
}

// releaseLocked drops a reference and stops the loop on 1→0. The returned
// connection must be closed after unlocking.
func (m *Manager) releaseLocked() (Conn, bool) {
	if m.refs > 0 {
		m.refs--
	}
	if m.refs > 0 || !m.running {
		return nil, false
	}
	conn := m.stopLocked()
	m.state = StateIdle
	return conn, true
}

func (m *Manager) stopLocked() Conn {
	if !m.running {
		return nil
	}
	m.running = false
	m.cancel()
	m.cancel = nil
	conn := m.conn
	m.conn = nil
	return conn
}

func (m *Manager) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	attempt := 0
	for ctx.Err() == nil {
		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrUnauthorized) {
				m.refreshToken(ctx)
			}
			delay := m.opts.Backoff.Next(attempt)
			attempt++
			m.log.Warn("dial failed", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("retry_in", delay))
			m.transition(gen, StateReconnecting)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		if !m.attach(gen, conn) {
			closeConn(conn)
			return
		}
		attempt = 0
		m.log.Info("connected", zap.String("role", string(m.opts.Role)))

		err = m.readLoop(ctx, conn)
		m.detach(conn)
		closeConn(conn)
		if ctx.Err() != nil {
			return
		}
		m.log.Warn("connection lost", zap.Error(err))
		m.transition(gen, StateReconnecting)
		if !sleep(ctx, m.opts.Backoff.Next(0)) {
			return
		}
	}
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	if m.opts.Tokens == nil {
		return nil, session.ErrNoToken
	}
	tok, err := m.opts.Tokens.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "token")
	}
	return m.opts.Transport.Dial(ctx, tok)
}

func (m *Manager) refreshToken(ctx context.Context) {
	r, ok := m.opts.Tokens.(session.Refresher)
	if !ok {
		return
	}
	if _, err := r.Refresh(ctx); err != nil {
		m.log.Warn("token refresh failed", zap.Error(err))
	}
}

func (m *Manager) attach(gen uint64, conn Conn) bool {
	m.mu.Lock()
	if !m.running || gen != m.gen {
		m.mu.Unlock()
		return false
	}
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()
	m.notify(StateConnected)
	return true
}

func (m *Manager) detach(conn Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()
}

func (m *Manager) transition(gen uint64, st State) {
	m.mu.Lock()
	if !m.running || gen != m.gen || m.state == st {
		m.mu.Unlock()
		return
	}
	m.state = st
	m.mu.Unlock()
	m.notify(st)
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) error {
	for {
		ev, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		m.dispatch(ctx, ev)
	}
}

func (m *Manager) dispatch(ctx context.Context, ev Event) {
	m.mu.Lock()
	byID := m.subs[ev.Name]
	targets := make([]*Subscription, 0, len(byID))
	for _, s := range byID {
		targets = append(targets, s)
	}
	m.mu.Unlock()

	if len(targets) == 0 {
		m.log.Debug("no listener", zap.String("event", ev.Name))
		return
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	for _, s := range targets {
		// a handler earlier in this batch may have detached s
		if !s.active.Load() {
			continue
		}
		m.invoke(ctx, s, ev)
	}
}

func (m *Manager) invoke(ctx context.Context, s *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("handler panic", zap.String("event", ev.Name), zap.Any("panic", r))
		}
	}()
	s.h(ctx, ev)
}

func (m *Manager) notify(st State) {
	if m.opts.OnState != nil {
		m.opts.OnState(st)
	}
}

func closeConn(c Conn) {
	if c != nil {
		_ = c.Close()
	}
}
