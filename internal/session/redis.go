package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisRecordPrefix = "hv:sess:"
	redisIndexPrefix  = "hv:sessidx:"
)

// Redis is a Store backed by Redis, for multi-node deployments where the
// session count must be shared. Records expire via key TTL.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis constructs a Redis-backed store from an address like "host:6379".
func NewRedis(addr string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		now:    time.Now,
	}
}

// Ping checks connectivity; used by the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Create(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("session: record id is required")
	}
	ttl := rec.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session: record already expired")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: encode record: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisRecordPrefix+rec.ID, payload, ttl)
	pipe.SAdd(ctx, redisIndexPrefix+rec.PrincipalID, rec.ID)
	pipe.Expire(ctx, redisIndexPrefix+rec.PrincipalID, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) Get(ctx context.Context, id string) (Record, error) {
	raw, err := r.client.Get(ctx, redisRecordPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("session: decode record: %w", err)
	}
	return rec, nil
}

func (r *Redis) Revoke(ctx context.Context, id string) error {
	rec, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisRecordPrefix+id)
	pipe.SRem(ctx, redisIndexPrefix+rec.PrincipalID, id)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) RevokeAll(ctx context.Context, principalID string) error {
	ids, err := r.client.SMembers(ctx, redisIndexPrefix+principalID).Result()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, redisRecordPrefix+id)
	}
	keys = append(keys, redisIndexPrefix+principalID)
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisRecordPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

var _ Store = (*Redis)(nil)
