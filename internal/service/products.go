package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/iliyamo/storefront-live/internal/api"
	"github.com/iliyamo/storefront-live/internal/live"
	"github.com/iliyamo/storefront-live/internal/model"
)

type ProductAPI interface {
	ToggleLike(ctx context.Context, id string) (api.LikeResult, error)
}

// ProductService toggles likes. The like count is bumped optimistically
// from the last known like state of the session user.
type ProductService struct {
	api   ProductAPI
	stock *live.StockBoard
	guard inflight

	mu    sync.Mutex
	liked map[string]bool
}

func NewProductService(a ProductAPI, stock *live.StockBoard) *ProductService {
	return &ProductService{api: a, stock: stock, liked: make(map[string]bool)}
}

func (s *ProductService) ToggleLike(ctx context.Context, productID string) (api.LikeResult, error) {
	if !s.guard.acquire(productID) {
		return api.LikeResult{}, ErrInFlight
	}
	defer s.guard.release(productID)

	s.mu.Lock()
	wasLiked := s.liked[productID]
	s.mu.Unlock()

	var pending *live.Pending[model.Product]
	if _, ok := s.stock.Store.Get(productID); ok {
		pending = s.stock.Store.Optimistic(productID, func(p model.Product) model.Product {
			if wasLiked {
				p.Likes--
			} else {
				p.Likes++
			}
			return p
		})
	}

	res, err := s.api.ToggleLike(ctx, productID)
	if err != nil {
		if pending != nil {
			pending.Rollback()
		}
		return api.LikeResult{}, errors.Wrap(err, "toggle like")
	}
	s.mu.Lock()
	s.liked[productID] = res.Liked
	s.mu.Unlock()
	if pending != nil {
		cur, _ := s.stock.Store.Get(productID)
		cur.Likes = res.Likes
		pending.Commit(cur)
	}
	return res, nil
}
