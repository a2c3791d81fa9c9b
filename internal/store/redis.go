package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

// RedisConfig describes how the Redis store connects and how long records
// live. A pre-built client takes precedence over the connection fields.
type RedisConfig struct {
	Client   redis.UniversalClient
	Addr     string
	Username string
	Password string
	DB       int

	SnapshotTTL  time.Duration
	HeartbeatTTL time.Duration
}

// Redis is a Store backed by plain Redis keys. Expiry is native: snapshots
// and heartbeats are SET with a TTL and vanish on their own.
type Redis struct {
	client       redis.UniversalClient
	ownClient    bool
	snapshotTTL  time.Duration
	heartbeatTTL time.Duration
}

// NewRedis connects (unless a client is supplied) and verifies the server
// is reachable.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.HeartbeatTTL <= 0 {
		return nil, errors.New("heartbeat TTL must be positive")
	}

	client := cfg.Client
	own := false
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		own = true
	}

	if err := client.Ping(ctx).Err(); err != nil {
		if own {
			client.Close()
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{
		client:       client,
		ownClient:    own,
		snapshotTTL:  cfg.SnapshotTTL,
		heartbeatTTL: cfg.HeartbeatTTL,
	}, nil
}

func (r *Redis) Save(ctx context.Context, sessionID string, snapshot []byte) error {
	return r.client.Set(ctx, protocol.StateKey(sessionID), snapshot, r.snapshotTTL).Err()
}

func (r *Redis) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := r.client.Get(ctx, protocol.StateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Redis) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, protocol.StateKey(sessionID)).Err()
}

func (r *Redis) Beat(ctx context.Context, sessionID string) error {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	return r.client.Set(ctx, protocol.HeartbeatKey(sessionID), stamp, r.heartbeatTTL).Err()
}

func (r *Redis) Alive(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, protocol.HeartbeatKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) ClearBeat(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, protocol.HeartbeatKey(sessionID)).Err()
}

// Reap is a no-op: Redis expires keys natively.
func (r *Redis) Reap(context.Context) error { return nil }

func (r *Redis) Close() error {
	if r.ownClient {
		return r.client.Close()
	}
	return nil
}
