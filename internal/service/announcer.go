package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/push"
	"github.com/iliyamo/storefront-live/internal/session"
)

// Emitter sends events on the push channel. *push.Manager implements it.
type Emitter interface {
	Emit(ctx context.Context, ev push.Event) error
}

// Announcer joins the admin room every time an admin session (re)connects.
type Announcer struct {
	sess session.Identity
	log  *zap.Logger

	mu sync.Mutex
	em Emitter
	wg sync.WaitGroup
}

func NewAnnouncer(sess session.Identity) *Announcer {
	return &Announcer{sess: sess, log: logger.Named("service.announcer")}
}

// Bind sets the emitter. The manager is built after its OnState hook, so
// the two are tied together here.
func (a *Announcer) Bind(em Emitter) {
	a.mu.Lock()
	a.em = em
	a.mu.Unlock()
}

// OnState is the manager's state hook.
func (a *Announcer) OnState(st push.State) {
	if st != push.StateConnected || a.sess.Role != model.RoleAdmin {
		return
	}
	a.mu.Lock()
	em := a.em
	a.mu.Unlock()
	if em == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.announce(em)
	}()
}

func (a *Announcer) announce(em Emitter) {
	ev, err := push.NewEvent(push.EventAdminJoin, map[string]string{"userId": a.sess.UserID, "name": a.sess.Name})
	if err != nil {
		a.log.Warn("build admin join", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := em.Emit(ctx, ev); err != nil {
		a.log.Warn("admin join failed", zap.Error(err))
		return
	}
	a.log.Debug("joined admin room")
}

// Wait blocks until pending announcements finish.
func (a *Announcer) Wait() { a.wg.Wait() }
