package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound indicates an expired or unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore maps opaque session identifiers to user ids.
type SessionStore interface {
	Create(ctx context.Context, userID string) (string, error)
	Get(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisSessions stores sessions in Redis with a sliding TTL.
type RedisSessions struct {
	Client *redis.Client
	TTL    time.Duration
}

const sessionKeyPrefix = "sess:"

// Create registers a new session for the user and returns its id.
func (s RedisSessions) Create(ctx context.Context, userID string) (string, error) {
	sessionID := uuid.NewString()
	if err := s.Client.Set(ctx, sessionKeyPrefix+sessionID, userID, s.TTL).Err(); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Get resolves a session id to a user id, refreshing the TTL on hit.
func (s RedisSessions) Get(ctx context.Context, sessionID string) (string, error) {
	userID, err := s.Client.GetEx(ctx, sessionKeyPrefix+sessionID, s.TTL).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// Delete removes a session.
func (s RedisSessions) Delete(ctx context.Context, sessionID string) error {
	return s.Client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}
