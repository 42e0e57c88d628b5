package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soaringjerry/Vox/internal/services"
)

const sessionKeyPrefix = "vox:session:"

// RedisSessionStore keeps admin sessions as JSON strings whose Redis TTL is
// the session deadline, so expiry is enforced by the server as well as by
// SessionService.
type RedisSessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

var _ services.SessionStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(client redis.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

type redisSession struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func sessionKey(token string) string { return sessionKeyPrefix + token }

func encodeSession(s *services.AdminSession) (string, error) {
	b, err := json.Marshal(redisSession{UserID: s.UserID, ExpiresAt: s.ExpiresAt.UTC(), CreatedAt: s.CreatedAt.UTC()})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *RedisSessionStore) InsertSession(ctx context.Context, s *services.AdminSession) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		// Already expired; nothing to keep.
		return nil
	}
	payload, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(s.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) GetSession(ctx context.Context, token string) (*services.AdminSession, error) {
	raw, err := r.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var rs redisSession
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &services.AdminSession{Token: token, UserID: rs.UserID, ExpiresAt: rs.ExpiresAt, CreatedAt: rs.CreatedAt}, nil
}

func (r *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions is a no-op: Redis drops keys once their TTL lapses.
func (r *RedisSessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
