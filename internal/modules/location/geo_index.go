// README: Redis GEO index of driver positions, used to narrow nearby searches.
package location

import (
	"context"

	"github.com/redis/go-redis/v9"

	"rideshare/internal/types"
)

// GeoIndex narrows candidate ids before the store lookup. Results are a
// prefilter only; eligibility is always re-checked against the store.
type GeoIndex interface {
	Upsert(ctx context.Context, id types.ID, pos types.Point) error
	Remove(ctx context.Context, id types.ID) error
	Search(ctx context.Context, center types.Point, radiusKm float64) ([]types.ID, error)
	// Replace swaps the whole index for positions in one step.
	Replace(ctx context.Context, positions map[types.ID]types.Point) error
}

type RedisGeoIndex struct {
	client *redis.Client
	key    string
}

func NewRedisGeoIndex(client *redis.Client, key string) *RedisGeoIndex {
	return &RedisGeoIndex{client: client, key: key}
}

func (r *RedisGeoIndex) Upsert(ctx context.Context, id types.ID, pos types.Point) error {
	return r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

func (r *RedisGeoIndex) Remove(ctx context.Context, id types.ID) error {
	return r.client.ZRem(ctx, r.key, string(id)).Err()
}

func (r *RedisGeoIndex) Search(ctx context.Context, center types.Point, radiusKm float64) ([]types.ID, error) {
	names, err := r.client.GeoSearch(ctx, r.key, &redis.GeoSearchQuery{
		Longitude:  center.Lng,
		Latitude:   center.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(names))
	for i, n := range names {
		ids[i] = types.ID(n)
	}
	return ids, nil
}

// Replace rewrites the key inside MULTI/EXEC so searches never observe a
// half-built index.
func (r *RedisGeoIndex) Replace(ctx context.Context, positions map[types.ID]types.Point) error {
	locs := make([]*redis.GeoLocation, 0, len(positions))
	for id, pos := range positions {
		locs = append(locs, &redis.GeoLocation{Name: string(id), Longitude: pos.Lng, Latitude: pos.Lat})
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(locs) > 0 {
			pipe.GeoAdd(ctx, r.key, locs...)
		}
		return nil
	})
	return err
}
