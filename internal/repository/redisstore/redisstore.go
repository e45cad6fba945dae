// Package redisstore keeps pending registrations in Redis. Each entry is a
// JSON document under "registration:pending:<session>" whose TTL is the
// time left until the entry expires, so Redis drops abandoned
// registrations by itself.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/repository"
)

const keyPrefix = "registration:pending:"

var _ repository.PendingRegistrationStore = (*Store)(nil)

type Store struct {
	client *redis.Client
	now    func() time.Time
}

func New(client *redis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// Connect dials Redis and verifies the connection with a PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: pinging %s: %w", addr, err)
	}
	return client, nil
}

func pendingKey(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *Store) SavePending(ctx context.Context, pending *model.PendingRegistration) error {
	ttl := pending.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return apperror.InvalidState("pending registration already expired")
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("redisstore: encoding pending registration: %w", err)
	}

	if err := s.client.Set(ctx, pendingKey(pending.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: saving pending registration: %w", err)
	}
	return nil
}

func (s *Store) GetPending(ctx context.Context, sessionID string) (*model.PendingRegistration, error) {
	value, err := s.client.Get(ctx, pendingKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.NotFound("pending registration", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: getting pending registration: %w", err)
	}

	var pending model.PendingRegistration
	if err := json.Unmarshal(value, &pending); err != nil {
		return nil, fmt.Errorf("redisstore: decoding pending registration: %w", err)
	}

	// The Redis TTL and ExpiresAt can disagree by up to a second.
	if pending.Expired(s.now()) {
		return nil, apperror.NotFound("pending registration", sessionID)
	}
	return &pending, nil
}

func (s *Store) DeletePending(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, pendingKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redisstore: deleting pending registration: %w", err)
	}
	return nil
}
