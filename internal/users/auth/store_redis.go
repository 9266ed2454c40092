// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/payhub/internal/platform/constants"
)

// RedisSessionStore implements SessionStore with one key per session.
//
// Keys carry a TTL equal to the remaining lifetime, so Redis expires them on
// its own and DeleteExpired has nothing to do.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisSessionStore creates a new Redis-backed SessionStore.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		prefix: constants.RedisPrefixSession,
		now:    time.Now,
	}
}

func (store *RedisSessionStore) key(sessionID string) string {
	return store.prefix + sessionID
}

/*
Create stores the session with a TTL matching its expiry.

Parameters:
  - context: context.Context
  - userID: int64
  - expiresAt: time.Time

Returns:
  - *Session: The stored record
  - error: Execution errors
*/
func (store *RedisSessionStore) Create(context context.Context, userID int64, expiresAt time.Time) (*Session, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: store.now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}

	ttl := session.ExpiresAt.Sub(session.CreatedAt)
	if ttl <= 0 {
		return nil, fmt.Errorf("redis_session_store_create_failed: non-positive ttl %s", ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("redis_session_store_marshal_failed: %w", err)
	}

	// SetNX so that an identifier collision can never overwrite another session.
	created, err := store.client.SetNX(context, store.key(sessionID), payload, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_session_store_create_failed: %w", err)
	}
	if !created {
		return nil, errors.New("redis_session_store_create_failed: identifier collision")
	}

	return session, nil
}

/*
Read retrieves the session for a given identifier.

Description: Returns ErrSessionNotFound if the key is absent or expired.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: The stored record
  - error: ErrSessionNotFound or connectivity errors
*/
func (store *RedisSessionStore) Read(context context.Context, sessionID string) (*Session, error) {
	payload, err := store.client.Get(context, store.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis_session_store_read_failed: %w", err)
	}

	session := &Session{}
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, fmt.Errorf("redis_session_store_unmarshal_failed: %w", err)
	}
	session.ID = sessionID

	if session.Expired(store.now()) {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

/*
Destroy removes the key. Deleting an absent key is a no-op.
*/
func (store *RedisSessionStore) Destroy(context context.Context, sessionID string) error {
	if err := store.client.Del(context, store.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis_session_store_destroy_failed: %w", err)
	}
	return nil
}

/*
Touch rewrites the session with a new expiry, only if it still exists.

Returns:
  - error: ErrSessionNotFound when the key is gone, or connectivity errors
*/
func (store *RedisSessionStore) Touch(context context.Context, sessionID string, expiresAt time.Time) error {
	session, err := store.Read(context, sessionID)
	if err != nil {
		return err
	}

	session.ExpiresAt = expiresAt.UTC()
	ttl := session.ExpiresAt.Sub(store.now())
	if ttl <= 0 {
		return store.Destroy(context, sessionID)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis_session_store_marshal_failed: %w", err)
	}

	updated, err := store.client.SetXX(context, store.key(sessionID), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis_session_store_touch_failed: %w", err)
	}
	if !updated {
		return ErrSessionNotFound
	}

	return nil
}

/*
DeleteExpired is a no-op: Redis expires session keys by TTL.
*/
func (store *RedisSessionStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}
