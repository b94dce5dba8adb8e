package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	challengeKeyPrefix = "pv:ch:"
	sessionKeyPrefix   = "pv:sess:"
	lockoutKeyPrefix   = "pv:lock:"

	// Optimistic transactions are retried this many times before giving up.
	txMaxRetries = 4
)

var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisChallengeStore is the shared-store implementation. Record expiry is
// delegated to key TTLs, so Sweep is a no-op.
type RedisChallengeStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client, now: time.Now}
}

func (s *RedisChallengeStore) Put(ctx context.Context, challenge *Challenge) error {
	encoded, err := json.Marshal(challenge)
	if err != nil {
		return err
	}
	ttl := challenge.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, challengeKeyPrefix+challenge.ID, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisChallengeStore) Consume(ctx context.Context, id, ip string) error {
	key := challengeKeyPrefix + id

	for i := 0; i < txMaxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return ErrChallengeNotFound
			}
			if err != nil {
				return err
			}

			var challenge Challenge
			if err := json.Unmarshal(data, &challenge); err != nil {
				return err
			}

			if challenge.Used {
				return ErrChallengeUsed
			}
			if s.now().After(challenge.ExpiresAt) {
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}
			if challenge.OwnerIP != ip {
				return ErrChallengeIPMismatch
			}

			challenge.Used = true
			updated, err := json.Marshal(&challenge)
			if err != nil {
				return err
			}

			// Keep the consumed record until its original expiry so a
			// replay reports ErrChallengeUsed instead of ErrChallengeNotFound.
			ttl := challenge.ExpiresAt.Sub(s.now())
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrChallengeNotFound),
				errors.Is(err, ErrChallengeUsed),
				errors.Is(err, ErrChallengeExpired),
				errors.Is(err, ErrChallengeIPMismatch):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
		return nil
	}

	return ErrChallengeNotFound
}

func (s *RedisChallengeStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// RedisSessionStore pins the key TTL to the idle timeout; a successful
// Validate rewrites the record, sliding the expiry forward.
type RedisSessionStore struct {
	client  *redis.Client
	timeout time.Duration
	now     func() time.Time
}

func NewRedisSessionStore(client *redis.Client, timeout time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, timeout: timeout, now: time.Now}
}

func (s *RedisSessionStore) Put(ctx context.Context, session *Session) error {
	encoded, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, encoded, s.timeout).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisSessionStore) Validate(ctx context.Context, id, ip string) (bool, error) {
	key := sessionKeyPrefix + id

	for i := 0; i < txMaxRetries; i++ {
		valid := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return nil
			}
			if err != nil {
				return err
			}

			var session Session
			if err := json.Unmarshal(data, &session); err != nil {
				return err
			}

			now := s.now()
			if session.IP != ip || now.Sub(session.LastActivityAt) > s.timeout {
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			session.LastActivityAt = now
			updated, err := json.Marshal(&session)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, s.timeout)
				return nil
			})
			if err != nil {
				return err
			}
			valid = true
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return valid, nil
	}

	return false, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return removed > 0, nil
}

func (s *RedisSessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// RedisLockoutStore applies updates under WATCH so two near-simultaneous
// failures cannot under-count.
type RedisLockoutStore struct {
	client      *redis.Client
	resetWindow time.Duration
	now         func() time.Time
}

func NewRedisLockoutStore(client *redis.Client, resetWindow time.Duration) *RedisLockoutStore {
	return &RedisLockoutStore{client: client, resetWindow: resetWindow, now: time.Now}
}

func (s *RedisLockoutStore) Get(ctx context.Context, ip string) (*Lockout, error) {
	data, err := s.client.Get(ctx, lockoutKeyPrefix+ip).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var lockout Lockout
	if err := json.Unmarshal(data, &lockout); err != nil {
		return nil, err
	}
	return &lockout, nil
}

func (s *RedisLockoutStore) Update(ctx context.Context, ip string, fn func(*Lockout) *Lockout) (*Lockout, error) {
	key := lockoutKeyPrefix + ip

	for i := 0; i < txMaxRetries; i++ {
		var result *Lockout
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			var current *Lockout
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil && err != redis.Nil {
				return err
			}
			if err == nil {
				current = &Lockout{}
				if err := json.Unmarshal(data, current); err != nil {
					return err
				}
			}

			updated := fn(current)
			if updated == nil {
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			encoded, err := json.Marshal(updated)
			if err != nil {
				return err
			}

			ttl := s.resetWindow
			if updated.LockedUntil != nil {
				if remaining := updated.LockedUntil.Sub(s.now()); remaining > ttl {
					ttl = remaining
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, ttl)
				return nil
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: lockout update contention", ErrRedisUnavailable)
}

func (s *RedisLockoutStore) Delete(ctx context.Context, ip string) (bool, error) {
	removed, err := s.client.Del(ctx, lockoutKeyPrefix+ip).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return removed > 0, nil
}

func (s *RedisLockoutStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
