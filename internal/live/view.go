package live

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/push"
)

// Source hands out push scopes. *push.Manager implements it.
type Source interface {
	Scope(name string) *push.Scope
}

// view is the subscription half shared by every board.
type view struct {
	scope *push.Scope
	log   *zap.Logger
}

func newView(src Source, name string) view {
	return view{scope: src.Scope(name), log: logger.Named("live." + name)}
}

// on subscribes fn with a typed payload. Events the session may not see are
// skipped; the view simply never receives them.
func on[T any](v view, event string, fn func(ctx context.Context, val T)) error {
	_, err := push.On(v.scope, event, fn)
	if errors.Is(err, push.ErrForbidden) {
		v.log.Debug("event hidden from role", zap.String("event", event))
		return nil
	}
	return errors.Wrapf(err, "%s: subscribe %q", v.scope.Name(), event)
}

// Close detaches the view's listeners.
func (v view) Close() { v.scope.Close() }

// Listeners is the number of listeners the view holds.
func (v view) Listeners() int { return v.scope.Len() }
