// Package redis persists the zone collection in a Redis hash keyed by zone id.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/flood-watch/internal/domain"
)

// Repository stores each zone as one field of a hash; the field is the zone
// id and the value its JSON encoding.
type Repository struct {
	rdb *redis.Client
	key string
}

// Connect parses redisURL, pings the server and returns a repository writing to key.
func Connect(ctx context.Context, redisURL, key string) (*Repository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRepository(rdb, key), nil
}

// NewRepository wraps an existing client.
func NewRepository(rdb *redis.Client, key string) *Repository {
	return &Repository{rdb: rdb, key: key}
}

// Load returns all zones in the hash ordered by id.
func (r *Repository) Load(ctx context.Context) ([]domain.Zone, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}
	return decodeFields(fields)
}

// Save replaces the hash with zones atomically.
func (r *Repository) Save(ctx context.Context, zones []domain.Zone) error {
	values, err := encodeFields(zones)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", r.key, err)
	}
	return nil
}

// CheckReadiness pings the server.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (r *Repository) Close() error {
	return r.rdb.Close()
}

func encodeFields(zones []domain.Zone) (map[string]any, error) {
	values := make(map[string]any, len(zones))
	for _, z := range zones {
		b, err := json.Marshal(z)
		if err != nil {
			return nil, fmt.Errorf("encode zone %d: %w", z.ID, err)
		}
		values[strconv.Itoa(z.ID)] = string(b)
	}
	return values, nil
}

func decodeFields(fields map[string]string) ([]domain.Zone, error) {
	out := make([]domain.Zone, 0, len(fields))
	for field, raw := range fields {
		var z domain.Zone
		if err := json.Unmarshal([]byte(raw), &z); err != nil {
			return nil, fmt.Errorf("decode zone field %s: %w", field, err)
		}
		if strconv.Itoa(z.ID) != field {
			return nil, fmt.Errorf("zone field %s holds zone id %d", field, z.ID)
		}
		out = append(out, z)
	}
	slices.SortFunc(out, func(a, b domain.Zone) int { return a.ID - b.ID })
	return out, nil
}
