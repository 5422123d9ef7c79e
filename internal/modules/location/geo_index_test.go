package location

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"rideshare/internal/types"
)

func TestRedisGeoIndex(t *testing.T) {
	redisAddr := os.Getenv("RIDESHARE_TEST_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("RIDESHARE_TEST_REDIS_ADDR not set; skipping integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx := context.Background()
	key := fmt.Sprintf("geo:drivers:test:%d", time.Now().UnixNano())
	defer rdb.Del(ctx, key)
	idx := NewRedisGeoIndex(rdb, key)

	if err := idx.Upsert(ctx, "near", types.Point{Lat: pLat + 0.01, Lng: pLng}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.Upsert(ctx, "far", types.Point{Lat: pLat + 0.3, Lng: pLng}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ids, err := idx.Search(ctx, types.Point{Lat: pLat, Lng: pLng}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ids) != 1 || ids[0] != "near" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if err := idx.Remove(ctx, "near"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ids, _ = idx.Search(ctx, types.Point{Lat: pLat, Lng: pLng}, 5)
	if len(ids) != 0 {
		t.Fatalf("expected empty after remove, got %v", ids)
	}
}
