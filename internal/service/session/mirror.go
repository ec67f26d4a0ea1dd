package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/logging"
	"github.com/onevoice/ivr/backend/internal/model/call"
)

// Mirror publishes live session state to an external registry so other
// instances and dashboards can see active calls. Failures never reach callers.
type Mirror interface {
	Save(session call.Session, ttl time.Duration)
	Remove(id string)
	Ping(ctx context.Context) error
	Close() error
}

type noopMirror struct{}

func (noopMirror) Save(call.Session, time.Duration) {}
func (noopMirror) Remove(string)                    {}
func (noopMirror) Ping(context.Context) error       { return nil }
func (noopMirror) Close() error                     { return nil }

const (
	activeCallsKey = "active_calls"
	mirrorTimeout  = 2 * time.Second
)

// RedisMirror stores one hash per call plus an index set of active call ids.
type RedisMirror struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisMirror connects to redisURL and verifies the connection.
func NewRedisMirror(ctx context.Context, redisURL string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = mirrorTimeout
	opts.WriteTimeout = mirrorTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisMirror{client: client, logger: logging.Component("session-mirror")}, nil
}

// Save writes the session summary and refreshes its expiry.
func (m *RedisMirror) Save(session call.Session, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	key := "call:" + session.ID
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"mode":       string(session.Mode),
			"state":      string(session.State),
			"turns":      session.TurnCount,
			"started_at": session.StartedAt.Format(time.RFC3339),
		})
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, activeCallsKey, session.ID)
		return nil
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("call_sid", session.ID).Msg("mirror save failed")
	}
}

// Remove deletes the call from the registry.
func (m *RedisMirror) Remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, "call:"+id)
		pipe.SRem(ctx, activeCallsKey, id)
		return nil
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("call_sid", id).Msg("mirror remove failed")
	}
}

// Ping checks Redis reachability.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
