package cache

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/storefront-live/internal/config"
)

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}, "X-Cache": []string{"MISS"}}
	bs, err := EncodePayload(http.StatusOK, hdr, []byte(`["Haifa","Akko"]`))
	if err != nil {
		t.Fatal(err)
	}
	status, gotHdr, body, ok := DecodePayload(bs)
	if !ok || status != http.StatusOK || string(body) != `["Haifa","Akko"]` {
		t.Fatalf("got %d %q %v", status, body, ok)
	}
	if gotHdr.Get("X-Cache") != "MISS" {
		t.Fatalf("header lost: %v", gotHdr)
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	bs, _ := EncodePayload(http.StatusOK, http.Header{"A": []string{"b"}}, nil)
	for _, in := range [][]byte{nil, bs[:5], bs[:10]} {
		if _, _, _, ok := DecodePayload(in); ok {
			t.Fatalf("accepted %d bytes", len(in))
		}
	}
}

func TestNilLookupIsNoop(t *testing.T) {
	var l *Lookup
	if NewLookup(nil, config.CacheConfig{Enabled: true}) != nil {
		t.Fatal("nil client produced a cache")
	}
	l.Set(context.Background(), l.Key("cities"), []byte("x"))
	if _, ok := l.Get(context.Background(), "k"); ok {
		t.Fatal("nil cache hit")
	}
}

// Needs a server: REDIS_TEST_ADDR=localhost:6379
func TestLookupRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	l := NewLookup(rdb, config.CacheConfig{Enabled: true, Prefix: "sfl:test", TTL: time.Minute, MaxBodyBytes: 16})
	ctx := context.Background()
	key := l.Key("cities", time.Now().String())
	defer rdb.Del(ctx, key)

	l.Set(ctx, key, []byte(`["Haifa"]`))
	body, ok := l.Get(ctx, key)
	if !ok || string(body) != `["Haifa"]` {
		t.Fatalf("got %q %v", body, ok)
	}
	big := l.Key("big", time.Now().String())
	l.Set(ctx, big, []byte(`["a very long list of streets"]`))
	if _, ok := l.Get(ctx, big); ok {
		t.Fatal("oversized body cached")
	}
}
