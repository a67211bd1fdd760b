package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omshejul/passkey-service/internal/models"
)

// RedisSessionStorage backs sessions with Redis, with TTLs matching the
// session expiry.
type RedisSessionStorage struct {
	client *redis.Client
}

func NewRedisSessionStorage(client *redis.Client) *RedisSessionStorage {
	return &RedisSessionStorage{
		client: client,
	}
}

func (r *RedisSessionStorage) SaveWebAuthnSession(ctx context.Context, key string, session *models.WebAuthnSession) error {
	redisKey := fmt.Sprintf("webauthn_session:%s", key)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal webauthn session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := r.client.Set(ctx, redisKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save webauthn session: %w", err)
	}

	return nil
}

func (r *RedisSessionStorage) GetWebAuthnSession(ctx context.Context, key string) (*models.WebAuthnSession, error) {
	redisKey := fmt.Sprintf("webauthn_session:%s", key)

	data, err := r.client.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webauthn session: %w", err)
	}

	var session models.WebAuthnSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webauthn session: %w", err)
	}

	return &session, nil
}

func (r *RedisSessionStorage) DeleteWebAuthnSession(ctx context.Context, key string) error {
	return r.client.Del(ctx, fmt.Sprintf("webauthn_session:%s", key)).Err()
}

func (r *RedisSessionStorage) SaveSession(ctx context.Context, session *models.Session) error {
	key := fmt.Sprintf("session:%s", session.ID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (r *RedisSessionStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	key := fmt.Sprintf("session:%s", sessionID)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		r.client.Del(ctx, key)
		return nil, nil
	}

	return &session, nil
}

func (r *RedisSessionStorage) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, fmt.Sprintf("session:%s", sessionID)).Err()
}

func (r *RedisSessionStorage) GetUserSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	keys, err := r.client.Keys(ctx, "session:*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session keys: %w", err)
	}

	var userSessions []*models.Session
	now := time.Now()

	for _, key := range keys {
		data, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // deleted between KEYS and GET
		}
		if err != nil {
			continue
		}

		var session models.Session
		if err := json.Unmarshal([]byte(data), &session); err != nil {
			continue
		}

		if session.UserID == userID && now.Before(session.ExpiresAt) {
			userSessions = append(userSessions, &session)
		}
	}

	return userSessions, nil
}

func (r *RedisSessionStorage) SaveOAuthState(ctx context.Context, state string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("state already expired")
	}
	return r.client.Set(ctx, fmt.Sprintf("oauth_state:%s", state), "1", ttl).Err()
}

func (r *RedisSessionStorage) ConsumeOAuthState(ctx context.Context, state string) (bool, error) {
	deleted, err := r.client.Del(ctx, fmt.Sprintf("oauth_state:%s", state)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return deleted > 0, nil
}
