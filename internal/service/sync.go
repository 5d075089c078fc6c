package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/api"
	"github.com/iliyamo/storefront-live/internal/live"
	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/session"
)

// BackfillAPI is the read side of the backend used on start.
type BackfillAPI interface {
	Orders(ctx context.Context) ([]model.Order, error)
	OrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
	Users(ctx context.Context) ([]model.User, error)
	Products(ctx context.Context) ([]model.Product, error)
	Messages(ctx context.Context, page, limit int) (api.MessagePage, error)
}

// Views groups the live views a Sync fills. Nil views are skipped.
type Views struct {
	Orders *live.OrderBoard
	Users  *live.UserTable
	Inbox  *live.Inbox
	Stock  *live.StockBoard
}

// Sync fetches the current state of every view once, so push events only
// have to carry changes.
type Sync struct {
	api      BackfillAPI
	sess     session.Identity
	views    Views
	msgLimit int
	msgPages int
	log      *zap.Logger
}

func NewSync(a BackfillAPI, sess session.Identity, v Views) *Sync {
	return &Sync{api: a, sess: sess, views: v, msgLimit: 50, msgPages: 4, log: logger.Named("service.sync")}
}

// Backfill loads every view. A failing part does not stop the others; the
// combined error is returned.
func (s *Sync) Backfill(ctx context.Context) error {
	var err error
	if s.views.Orders != nil {
		err = multierr.Append(err, s.orders(ctx))
	}
	if s.views.Users != nil && s.sess.Role.IsStaff() {
		err = multierr.Append(err, s.users(ctx))
	}
	if s.views.Stock != nil {
		err = multierr.Append(err, s.products(ctx))
	}
	if s.views.Inbox != nil {
		err = multierr.Append(err, s.messages(ctx))
	}
	return err
}

func (s *Sync) orders(ctx context.Context) error {
	var (
		list []model.Order
		err  error
	)
	if s.sess.Role == model.RoleClient {
		list, err = s.api.OrdersByUser(ctx, s.sess.UserID)
	} else {
		list, err = s.api.Orders(ctx)
	}
	if err != nil {
		return errors.Wrap(err, "backfill orders")
	}
	// the backend lists newest first; merge oldest first to keep that order
	n := 0
	for i := len(list) - 1; i >= 0; i-- {
		if s.views.Orders.Merge(list[i]).Changed() {
			n++
		}
	}
	s.log.Info("orders loaded", zap.Int("fetched", len(list)), zap.Int("changed", n))
	return nil
}

func (s *Sync) users(ctx context.Context) error {
	list, err := s.api.Users(ctx)
	if err != nil {
		return errors.Wrap(err, "backfill users")
	}
	n := s.views.Users.Store.MergeAll(list)
	s.log.Info("users loaded", zap.Int("fetched", len(list)), zap.Int("changed", n))
	return nil
}

func (s *Sync) products(ctx context.Context) error {
	list, err := s.api.Products(ctx)
	if err != nil {
		return errors.Wrap(err, "backfill products")
	}
	n := s.views.Stock.Store.MergeAll(list)
	s.log.Info("products loaded", zap.Int("fetched", len(list)), zap.Int("changed", n))
	return nil
}

func (s *Sync) messages(ctx context.Context) error {
	total := 0
	for page := 1; page <= s.msgPages; page++ {
		p, err := s.api.Messages(ctx, page, s.msgLimit)
		if err != nil {
			return errors.Wrapf(err, "backfill messages page %d", page)
		}
		total += s.views.Inbox.Load(p.Messages)
		if len(p.Messages) < s.msgLimit || (p.Pages > 0 && page >= p.Pages) {
			break
		}
	}
	s.log.Info("messages loaded", zap.Int("new", total))
	return nil
}
