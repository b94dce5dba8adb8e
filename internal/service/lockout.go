package service

import (
	"context"
	"time"

	"github.com/pinvault/backend/internal/store"
)

// LockoutTracker escalates repeated PIN failures from one IP into a timed
// lockout.
type LockoutTracker struct {
	store       store.LockoutStore
	maxAttempts int
	duration    time.Duration
	resetWindow time.Duration
	now         func() time.Time
}

func NewLockoutTracker(lockoutStore store.LockoutStore, maxAttempts int, duration, resetWindow time.Duration) *LockoutTracker {
	return &LockoutTracker{
		store:       lockoutStore,
		maxAttempts: maxAttempts,
		duration:    duration,
		resetWindow: resetWindow,
		now:         time.Now,
	}
}

func (t *LockoutTracker) MaxAttempts() int {
	return t.maxAttempts
}

// IsLocked reports an active lockout. Records whose lockout has expired are
// evicted here rather than waiting for the sweep.
func (t *LockoutTracker) IsLocked(ctx context.Context, ip string) (bool, error) {
	lockout, err := t.store.Get(ctx, ip)
	if err != nil {
		return false, err
	}
	if lockout == nil || lockout.LockedUntil == nil {
		return false, nil
	}

	if !lockout.LockedUntil.After(t.now()) {
		_, err := t.store.Delete(ctx, ip)
		return false, err
	}
	return true, nil
}

// RecordFailure increments the failure count and returns the new value. The
// count starts over when the previous attempt is older than the reset window,
// but never while a lockout is active.
func (t *LockoutTracker) RecordFailure(ctx context.Context, ip string) (int, error) {
	now := t.now()
	lockout, err := t.store.Update(ctx, ip, func(current *store.Lockout) *store.Lockout {
		if current == nil {
			current = &store.Lockout{}
		}

		if current.LockedUntil != nil && !current.LockedUntil.After(now) {
			// Lockout served in full: start from a clean slate.
			current = &store.Lockout{}
		}
		if !current.Locked(now) && !current.LastAttemptAt.IsZero() && now.Sub(current.LastAttemptAt) > t.resetWindow {
			current.Count = 0
		}

		current.Count++
		current.LastAttemptAt = now
		if current.LockedUntil == nil && current.Count >= t.maxAttempts {
			lockedUntil := now.Add(t.duration)
			current.LockedUntil = &lockedUntil
		}
		return current
	})
	if err != nil {
		return 0, err
	}
	return lockout.Count, nil
}

// RecordSuccess clears the failure record, unless a lockout is active: a
// correct PIN submitted while locked must not unlock the IP.
func (t *LockoutTracker) RecordSuccess(ctx context.Context, ip string) error {
	now := t.now()
	_, err := t.store.Update(ctx, ip, func(current *store.Lockout) *store.Lockout {
		if current.Locked(now) {
			return current
		}
		return nil
	})
	return err
}

// RemainingLockout returns whole seconds until the lockout ends, rounded up,
// or 0 when not locked.
func (t *LockoutTracker) RemainingLockout(ctx context.Context, ip string) (int64, error) {
	lockout, err := t.store.Get(ctx, ip)
	if err != nil {
		return 0, err
	}
	now := t.now()
	if !lockout.Locked(now) {
		return 0, nil
	}
	remaining := lockout.LockedUntil.Sub(now)
	return int64((remaining + time.Second - 1) / time.Second), nil
}

// Status reports the lockout state for the status endpoint: locked flag,
// attempts left before a lock, and the absolute lockout expiry when locked.
func (t *LockoutTracker) Status(ctx context.Context, ip string) (bool, int, *time.Time, error) {
	lockout, err := t.store.Get(ctx, ip)
	if err != nil {
		return false, 0, nil, err
	}

	now := t.now()
	if lockout.Locked(now) {
		expiresAt := *lockout.LockedUntil
		return true, 0, &expiresAt, nil
	}

	remaining := t.maxAttempts
	if lockout != nil && lockout.LockedUntil == nil && now.Sub(lockout.LastAttemptAt) <= t.resetWindow {
		remaining = t.maxAttempts - lockout.Count
	}
	if remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil, nil
}
