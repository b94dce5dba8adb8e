package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisChallengeConsumeOnce(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisChallengeStore(client)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Put(ctx, &Challenge{
		ID:        "abc",
		OwnerIP:   "1.2.3.4",
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}))

	require.NoError(t, s.Consume(ctx, "abc", "1.2.3.4"))
	// Replay must report a used token, not an unknown one.
	assert.ErrorIs(t, s.Consume(ctx, "abc", "1.2.3.4"), ErrChallengeUsed)
}

func TestRedisChallengeIPMismatch(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisChallengeStore(client)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Put(ctx, &Challenge{
		ID:        "abc",
		OwnerIP:   "1.2.3.4",
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}))

	assert.ErrorIs(t, s.Consume(ctx, "abc", "5.6.7.8"), ErrChallengeIPMismatch)
	require.NoError(t, s.Consume(ctx, "abc", "1.2.3.4"))
}

func TestRedisChallengeExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisChallengeStore(client)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Put(ctx, &Challenge{
		ID:        "abc",
		OwnerIP:   "1.2.3.4",
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}))

	// Key TTL fires: record gone entirely.
	mr.FastForward(6 * time.Minute)
	assert.ErrorIs(t, s.Consume(ctx, "abc", "1.2.3.4"), ErrChallengeNotFound)
}

func TestRedisChallengeExpiredClock(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisChallengeStore(client)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Put(ctx, &Challenge{
		ID:        "abc",
		OwnerIP:   "1.2.3.4",
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}))

	// Record expiry is also enforced from the stored timestamp, independent
	// of the key TTL.
	s.now = func() time.Time { return now.Add(6 * time.Minute) }
	assert.ErrorIs(t, s.Consume(ctx, "abc", "1.2.3.4"), ErrChallengeExpired)
}

func TestRedisSessionValidateAndDelete(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisSessionStore(client, 30*time.Minute)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Put(ctx, &Session{ID: "sess", IP: "1.2.3.4", CreatedAt: now, LastActivityAt: now}))

	valid, err := s.Validate(ctx, "sess", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, valid)

	// Foreign IP invalidates and deletes.
	valid, err = s.Validate(ctx, "sess", "5.6.7.8")
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = s.Validate(ctx, "sess", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestRedisSessionIdleTimeout(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisSessionStore(client, 30*time.Minute)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, s.Put(ctx, &Session{ID: "sess", IP: "1.2.3.4", CreatedAt: base, LastActivityAt: base}))

	s.now = func() time.Time { return base.Add(31 * time.Minute) }
	valid, err := s.Validate(ctx, "sess", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestRedisSessionDelete(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisSessionStore(client, 30*time.Minute)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Put(ctx, &Session{ID: "sess", IP: "1.2.3.4", CreatedAt: now, LastActivityAt: now}))

	deleted, err := s.Delete(ctx, "sess")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, "sess")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRedisLockoutUpdate(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisLockoutStore(client, time.Hour)
	ctx := context.Background()

	now := time.Now()
	updated, err := s.Update(ctx, "1.2.3.4", func(current *Lockout) *Lockout {
		require.Nil(t, current)
		return &Lockout{Count: 1, LastAttemptAt: now}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Count)

	updated, err = s.Update(ctx, "1.2.3.4", func(current *Lockout) *Lockout {
		current.Count++
		return current
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Count)

	got, err := s.Get(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Count)

	_, err = s.Update(ctx, "1.2.3.4", func(*Lockout) *Lockout { return nil })
	require.NoError(t, err)

	got, err = s.Get(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisLockoutTTLTracksLockExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisLockoutStore(client, time.Hour)
	ctx := context.Background()

	now := time.Now()
	lockedUntil := now.Add(24 * time.Hour)
	_, err := s.Update(ctx, "1.2.3.4", func(*Lockout) *Lockout {
		return &Lockout{Count: 5, LastAttemptAt: now, LockedUntil: &lockedUntil}
	})
	require.NoError(t, err)

	// The record must outlive the reset window while the lockout is active.
	mr.FastForward(2 * time.Hour)
	got, err := s.Get(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.NotNil(t, got)

	mr.FastForward(23 * time.Hour)
	got, err = s.Get(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Nil(t, got)
}
