package live

import (
	"context"

	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/push"
)

// presence is the payload of the login and disconnect events. Older servers
// send the whole user, newer ones only the id.
type presence struct {
	model.User `mapstructure:",squash"`
	UserID     string `mapstructure:"userId"`
}

func (p presence) id() string {
	if p.ID != "" {
		return p.ID
	}
	return p.UserID
}

// UserTable is the live user-management table.
type UserTable struct {
	view
	Store *Store[model.User]
}

func NewUserTable(src Source) (*UserTable, error) {
	t := &UserTable{view: newView(src, "users"), Store: NewStore[model.User]()}
	err := on(t.view, push.EventUserRegistered, func(_ context.Context, u model.User) {
		t.Store.Merge(u)
	})
	if err == nil {
		err = on(t.view, push.EventUserLoggedIn, func(_ context.Context, p presence) {
			t.SetOnline(p, true)
		})
	}
	if err == nil {
		err = on(t.view, push.EventUserDisconnected, func(_ context.Context, p presence) {
			t.SetOnline(p, false)
		})
	}
	if err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// SetOnline flips the presence flag of a held user. A user seen for the
// first time is inserted when the payload carries enough to show it.
func (t *UserTable) SetOnline(p presence, online bool) {
	id := p.id()
	if id == "" {
		return
	}
	if _, ok := t.Store.Patch(id, func(u model.User) model.User {
		u.Online = online
		return u
	}); ok {
		return
	}
	if p.Name == "" && p.Email == "" {
		return
	}
	u := p.User
	u.ID = id
	u.Online = online
	t.Store.Merge(u)
}

func (t *UserTable) Users() []model.User { return t.Store.Snapshot() }
