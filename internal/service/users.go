package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/live"
	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/model"
)

type UserAPI interface {
	SetRole(ctx context.Context, userID string, role model.Role) (model.User, error)
}

type UserService struct {
	api   UserAPI
	table *live.UserTable
	guard inflight
	log   *zap.Logger
}

func NewUserService(api UserAPI, table *live.UserTable) *UserService {
	return &UserService{api: api, table: table, log: logger.Named("service.users")}
}

// ChangeRole sets a user's role, showing it in the table right away and
// restoring the old role if the backend refuses.
func (s *UserService) ChangeRole(ctx context.Context, userID string, role model.Role) (model.User, error) {
	role, err := model.ParseRole(string(role))
	if err != nil {
		return model.User{}, errors.Wrap(ErrInvalidRole, err.Error())
	}
	u, ok := s.table.Store.Get(userID)
	if !ok {
		return model.User{}, ErrUnknownUser
	}
	if u.Role == role {
		return u, nil
	}
	if !s.guard.acquire(userID) {
		return model.User{}, ErrInFlight
	}
	defer s.guard.release(userID)

	pending := s.table.Store.Optimistic(userID, func(cur model.User) model.User {
		cur.Role = role
		return cur
	})
	server, err := s.api.SetRole(ctx, userID, role)
	if err != nil {
		pending.Rollback()
		s.log.Warn("role change failed", zap.String("user", userID), zap.Error(err))
		return model.User{}, errors.Wrap(err, "set role")
	}
	if server.ID == "" {
		server = u
		server.Role = role
	}
	pending.Commit(server)
	out, _ := s.table.Store.Get(userID)
	return out, nil
}
