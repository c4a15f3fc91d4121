package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"fulfillment/internal/domain"
)

// DefaultSessionTTL bounds how long a checkout may take before verify.
const DefaultSessionTTL = 30 * time.Minute

const sessionPrefix = "payment:session:"

// SessionStore keeps open payment sessions between checkout and verify.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

// Save stores a session until it is consumed or expires.
func (s *SessionStore) Save(ctx context.Context, session *domain.PaymentSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionPrefix+session.ID, data, s.ttl).Err()
}

// Consume atomically reads and deletes a session, so a session can back
// at most one dispatch. Returns nil when the session is unknown, expired
// or already consumed.
func (s *SessionStore) Consume(ctx context.Context, sessionID string) (*domain.PaymentSession, error) {
	data, err := s.client.GetDel(ctx, sessionPrefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var session domain.PaymentSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}
