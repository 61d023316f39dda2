package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const sessionKeyPrefix = "session:"

// SessionStore хранит токены доступа в Redis. Срок жизни сессии задаётся
// TTL ключа, поэтому истёкшие сессии удаляет сам Redis.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore создаёт хранилище сессий поверх готового клиента.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

type sessionValue struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired at %s", session.ExpiresAt.Format(time.RFC3339))
	}

	raw, err := json.Marshal(sessionValue{UserID: session.UserID, ExpiresAt: session.ExpiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(session.Token), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (domain.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	var value sessionValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return domain.Session{Token: token, UserID: value.UserID, ExpiresAt: value.ExpiresAt}, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis для readiness-проверок.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

var _ domain.SessionStore = (*SessionStore)(nil)
