package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig describes how the Postgres store connects. A pre-built
// pool takes precedence over the URL.
type PostgresConfig struct {
	Pool *pgxpool.Pool
	URL  string

	SnapshotTTL  time.Duration
	HeartbeatTTL time.Duration
}

// Postgres is a Store backed by two tables, one for snapshots and one for
// heartbeats. Postgres has no native key expiry, so rows carry an
// expires_at column: reads filter on it and Reap deletes what lapsed.
type Postgres struct {
	pool         *pgxpool.Pool
	ownPool      bool
	snapshotTTL  time.Duration
	heartbeatTTL time.Duration
}

// NewPostgres connects (unless a pool is supplied) and creates the schema
// when it does not exist yet.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.HeartbeatTTL <= 0 {
		return nil, errors.New("heartbeat TTL must be positive")
	}

	pool := cfg.Pool
	own := false
	if pool == nil {
		p, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pool = p
		own = true
	}

	if err := pool.Ping(ctx); err != nil {
		if own {
			pool.Close()
		}
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Postgres{
		pool:         pool,
		ownPool:      own,
		snapshotTTL:  cfg.SnapshotTTL,
		heartbeatTTL: cfg.HeartbeatTTL,
	}
	if err := s.ensureSchema(ctx); err != nil {
		if own {
			pool.Close()
		}
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS session_snapshots (
			session_id TEXT PRIMARY KEY,
			snapshot   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS session_heartbeats (
			session_id TEXT PRIMARY KEY,
			expires_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func (s *Postgres) Save(ctx context.Context, sessionID string, snapshot []byte) error {
	var expires *time.Time
	if s.snapshotTTL > 0 {
		at := time.Now().Add(s.snapshotTTL)
		expires = &at
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_snapshots (session_id, snapshot, updated_at, expires_at)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (session_id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot,
		    updated_at = EXCLUDED.updated_at,
		    expires_at = EXCLUDED.expires_at
	`, sessionID, snapshot, expires)
	return err
}

func (s *Postgres) Load(ctx context.Context, sessionID string) ([]byte, error) {
	var snapshot []byte
	err := s.pool.QueryRow(ctx, `
		SELECT snapshot FROM session_snapshots
		WHERE session_id = $1 AND (expires_at IS NULL OR expires_at > now())
	`, sessionID).Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *Postgres) Delete(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM session_snapshots WHERE session_id = $1`, sessionID)
	return err
}

func (s *Postgres) Beat(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_heartbeats (session_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`, sessionID, time.Now().Add(s.heartbeatTTL))
	return err
}

func (s *Postgres) Alive(ctx context.Context, sessionID string) (bool, error) {
	var alive bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM session_heartbeats
			WHERE session_id = $1 AND expires_at > now()
		)
	`, sessionID).Scan(&alive)
	if err != nil {
		return false, err
	}
	return alive, nil
}

func (s *Postgres) ClearBeat(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM session_heartbeats WHERE session_id = $1`, sessionID)
	return err
}

func (s *Postgres) Reap(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM session_snapshots WHERE expires_at IS NOT NULL AND expires_at < now()`); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM session_heartbeats WHERE expires_at < now()`)
	return err
}

func (s *Postgres) Close() error {
	if s.ownPool {
		s.pool.Close()
	}
	return nil
}
