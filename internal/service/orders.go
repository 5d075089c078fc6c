// Package service coordinates the console's mutations: validate, guard
// against double submits, apply optimistically, call the backend, then
// commit or roll back.
package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/live"
	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/model"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInFlight          = errors.New("mutation already in flight")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrUnknownUser       = errors.New("unknown user")
	ErrInvalidRole       = errors.New("invalid role")
	ErrEmptyMessage      = errors.New("empty message")
)

// inflight rejects a second mutation of the same entity while the first is
// still waiting for the backend.
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (f *inflight) acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	if _, busy := f.keys[key]; busy {
		return false
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *inflight) release(key string) {
	f.mu.Lock()
	delete(f.keys, key)
	f.mu.Unlock()
}

// OrderAPI is the backend call behind ChangeStatus.
type OrderAPI interface {
	SetOrderStatus(ctx context.Context, id string, st model.OrderStatus) (model.Order, error)
}

// EchoSuppressor silences the push echo of a status change made here.
type EchoSuppressor interface {
	SuppressOrderStatus(o model.Order, st model.OrderStatus)
	ReleaseOrderStatus(o model.Order, st model.OrderStatus)
}

type OrderService struct {
	api   OrderAPI
	board *live.OrderBoard
	echo  EchoSuppressor
	guard inflight
	log   *zap.Logger
}

// NewOrderService wires the service. echo may be nil.
func NewOrderService(api OrderAPI, board *live.OrderBoard, echo EchoSuppressor) *OrderService {
	return &OrderService{api: api, board: board, echo: echo, log: logger.Named("service.orders")}
}

// Transitions lists the statuses the order referenced by ref may move to.
func (s *OrderService) Transitions(ref string) ([]model.OrderStatus, error) {
	o, ok := s.board.Lookup(ref)
	if !ok {
		return nil, ErrUnknownOrder
	}
	return model.NextStatuses(o.Status), nil
}

// ChangeStatus moves the order referenced by ref (id or order number) to
// status to. The board shows the new status while the call is in flight;
// on failure it is rolled back.
func (s *OrderService) ChangeStatus(ctx context.Context, ref string, to model.OrderStatus) (model.Order, error) {
	o, ok := s.board.Lookup(ref)
	if !ok {
		return model.Order{}, ErrUnknownOrder
	}
	if !model.CanTransition(o.Status, to) {
		return model.Order{}, errors.Wrapf(ErrInvalidTransition, "%s -> %s", o.Status, to)
	}
	key := o.Key()
	if !s.guard.acquire(key) {
		return model.Order{}, ErrInFlight
	}
	defer s.guard.release(key)

	pending := s.board.Store.Optimistic(key, func(cur model.Order) model.Order {
		cur.Status = to
		return cur
	})
	// mark the echo before the call: the push may beat the response
	if s.echo != nil {
		s.echo.SuppressOrderStatus(o, to)
	}

	id := o.ID
	if id == "" {
		id = o.Number
	}
	server, err := s.api.SetOrderStatus(ctx, id, to)
	if err != nil {
		pending.Rollback()
		if s.echo != nil {
			s.echo.ReleaseOrderStatus(o, to)
		}
		s.log.Warn("status change failed",
			zap.String("order", o.Number), zap.String("to", string(to)), zap.Error(err))
		return model.Order{}, errors.Wrap(err, "set order status")
	}
	if server.ID == "" {
		// empty answer: the backend accepted our value as is
		server = o
		server.Status = to
	}
	pending.Commit(server)
	s.log.Info("status changed",
		zap.String("order", o.Number), zap.String("from", string(o.Status)), zap.String("to", string(to)))
	committed, ok := s.board.Store.Get(server.Key())
	if !ok {
		committed, _ = s.board.Store.Get(key)
	}
	return committed, nil
}
