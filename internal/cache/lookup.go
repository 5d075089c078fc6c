package cache

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/config"
	"github.com/iliyamo/storefront-live/internal/logger"
)

// Lookup caches backend lookup responses (cities, streets) in Redis. A nil
// *Lookup is valid and caches nothing.
type Lookup struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	maxBody int
	log     *zap.Logger
}

// NewLookup returns nil when caching is disabled or rdb is nil.
func NewLookup(rdb *redis.Client, cfg config.CacheConfig) *Lookup {
	if rdb == nil || !cfg.Enabled {
		return nil
	}
	return &Lookup{
		rdb:     rdb,
		prefix:  cfg.Prefix + ":lookup",
		ttl:     cfg.TTL,
		maxBody: cfg.MaxBodyBytes,
		log:     logger.Named("cache"),
	}
}

// Key builds a stable key from the request path parts.
func (l *Lookup) Key(parts ...string) string {
	if l == nil {
		return ""
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%x", l.prefix, sum[:])
}

// Get returns the cached body for key.
func (l *Lookup) Get(ctx context.Context, key string) ([]byte, bool) {
	if l == nil {
		return nil, false
	}
	bs, err := l.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			l.log.Debug("lookup cache get", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	status, _, body, ok := DecodePayload(bs)
	if !ok || status != http.StatusOK {
		return nil, false
	}
	return body, true
}

// Set stores body under key. Bodies over the size cap are not cached.
func (l *Lookup) Set(ctx context.Context, key string, body []byte) {
	if l == nil {
		return
	}
	if l.maxBody > 0 && len(body) > l.maxBody {
		return
	}
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	payload, err := EncodePayload(http.StatusOK, hdr, body)
	if err != nil {
		return
	}
	if err := l.rdb.SetEx(ctx, key, payload, l.ttl).Err(); err != nil {
		l.log.Debug("lookup cache set", zap.String("key", key), zap.Error(err))
	}
}
