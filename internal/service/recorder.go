package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/repository"
)

// SnapshotStore is the durable side of the views. *repository.SnapshotRepo
// implements it.
type SnapshotStore interface {
	UpsertOrder(ctx context.Context, o model.Order) (bool, error)
	UpsertUser(ctx context.Context, u model.User) (bool, error)
	UpsertProduct(ctx context.Context, p model.Product) (bool, error)
	LoadOrders(ctx context.Context) ([]model.Order, error)
	LoadUsers(ctx context.Context) ([]model.User, error)
	LoadProducts(ctx context.Context) ([]model.Product, error)
	Delete(ctx context.Context, kind, id string) error
}

// Recorder writes every server copy that lands in a view to the snapshot
// store on a background goroutine, so the push read loop never waits on the
// database. When the queue is full the write is dropped; the next change of
// the same entity stores it again.
type Recorder struct {
	store SnapshotStore
	queue chan func(context.Context) error
	log   *zap.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewRecorder(store SnapshotStore, size int) *Recorder {
	if size <= 0 {
		size = 256
	}
	r := &Recorder{store: store, queue: make(chan func(context.Context) error, size), log: logger.Named("service.recorder")}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for job := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := job(ctx); err != nil {
			r.log.Warn("persist snapshot", zap.Error(err))
		}
		cancel()
	}
}

func (r *Recorder) enqueue(job func(context.Context) error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- job:
	default:
		r.log.Warn("persist queue full, dropping write")
	}
}

// forget returns a removal hook that deletes the stored snapshot of kind.
func (r *Recorder) forget(kind string) func(key string) {
	return func(key string) {
		r.enqueue(func(ctx context.Context) error {
			if err := r.store.Delete(ctx, kind, key); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			return nil
		})
	}
}

// Restore merges stored snapshots into the views and then starts recording
// their changes.
func (r *Recorder) Restore(ctx context.Context, v Views) error {
	if v.Orders != nil {
		list, err := r.store.LoadOrders(ctx)
		if err != nil {
			return err
		}
		v.Orders.MergeAll(list)
		v.Orders.Store.OnChange(func(o model.Order) {
			r.enqueue(func(ctx context.Context) error { _, err := r.store.UpsertOrder(ctx, o); return err })
		})
	}
	if v.Users != nil {
		list, err := r.store.LoadUsers(ctx)
		if err != nil {
			return err
		}
		v.Users.Store.MergeAll(list)
		v.Users.Store.OnChange(func(u model.User) {
			r.enqueue(func(ctx context.Context) error { _, err := r.store.UpsertUser(ctx, u); return err })
		})
		v.Users.Store.OnRemove(r.forget(repository.KindUser))
	}
	if v.Stock != nil {
		list, err := r.store.LoadProducts(ctx)
		if err != nil {
			return err
		}
		v.Stock.Store.MergeAll(list)
		v.Stock.Store.OnChange(func(p model.Product) {
			r.enqueue(func(ctx context.Context) error { _, err := r.store.UpsertProduct(ctx, p); return err })
		})
		v.Stock.Store.OnRemove(r.forget(repository.KindProduct))
	}
	return nil
}

// Close drains queued writes and stops the worker. Changes that land after
// Close are not stored.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}
