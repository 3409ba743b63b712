package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/monitoring"
)

// redisCache implements Cache against a single Redis node.
type redisCache struct {
	client     *redis.Client
	ttl        time.Duration
	sessionTTL time.Duration
}

// NewRedis connects to a Redis node and verifies it is reachable.
func NewRedis(addr, password string, db int, defaultTTL, sessionTTL time.Duration) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisCache{client: client, ttl: defaultTTL, sessionTTL: sessionTTL}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		monitoring.RecordCacheOperation("get", "miss")
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		monitoring.RecordCacheOperation("get", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("get", "hit")
	return b, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var data []byte
	switch x := value.(type) {
	case []byte:
		data = x
	case string:
		data = []byte(x)
	default:
		j, err := json.Marshal(x)
		if err != nil {
			monitoring.RecordCacheOperation("set", "error")
			return fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		data = j
	}
	if ttl <= 0 {
		ttl = r.ttl
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	monitoring.RecordCacheOperation("set", "success")
	return nil
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		monitoring.RecordCacheOperation("delete", "error")
		return err
	}
	monitoring.RecordCacheOperation("delete", "success")
	return nil
}

func (r *redisCache) SetSession(ctx context.Context, session *models.UserSession) error {
	session.LastActivity = time.Now()
	if err := r.Set(ctx, sessionKeyPrefix+session.ID, session, r.sessionTTL); err != nil {
		monitoring.RecordCacheOperation("set_session", "error")
		return err
	}
	monitoring.RecordCacheOperation("set_session", "success")
	return nil
}

func (r *redisCache) GetSession(ctx context.Context, sessionID string) (*models.UserSession, error) {
	data, err := r.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		monitoring.RecordCacheOperation("get_session", "miss")
		return nil, err
	}
	var session models.UserSession
	if err := json.Unmarshal(data, &session); err != nil {
		monitoring.RecordCacheOperation("get_session", "error")
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	monitoring.RecordCacheOperation("get_session", "hit")
	return &session, nil
}

func (r *redisCache) InvalidateSession(ctx context.Context, sessionID string) error {
	if err := r.Delete(ctx, sessionKeyPrefix+sessionID); err != nil {
		monitoring.RecordCacheOperation("invalidate_session", "error")
		return err
	}
	monitoring.RecordCacheOperation("invalidate_session", "success")
	return nil
}

func (r *redisCache) PushAuditEvent(ctx context.Context, payload []byte) error {
	if err := r.client.RPush(ctx, auditListKey, payload).Err(); err != nil {
		monitoring.RecordCacheOperation("push_audit", "error")
		return err
	}
	monitoring.RecordCacheOperation("push_audit", "success")
	return nil
}

func (r *redisCache) HealthCheck(ctx context.Context) error {
	if ctx == nil {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctx = c
	}
	return r.client.Ping(ctx).Err()
}
