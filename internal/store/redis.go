package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisIndexKey = "lanquiz:sessions"

// Redis persists completed sessions in Redis: the record as a JSON
// value keyed by session id, plus an index list of session ids in
// completion order.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client. A zero ttl keeps records forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) SaveCompletedSession(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	key := recordKey(rec.SessionID)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, b, r.ttl)
	pipe.LPush(ctx, redisIndexKey, rec.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}

	return nil
}

// GetSession loads a completed session record by id.
func (r *Redis) GetSession(ctx context.Context, sessionID string) (Record, error) {
	b, err := r.client.Get(ctx, recordKey(sessionID)).Bytes()
	if err != nil {
		return Record{}, fmt.Errorf("load session record: %w", err)
	}

	rec := Record{}
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decode session record: %w", err)
	}
	return rec, nil
}

func recordKey(sessionID string) string {
	return "lanquiz:session:" + sessionID
}
