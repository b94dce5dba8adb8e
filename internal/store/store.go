package store

import (
	"context"
	"errors"
	"time"
)

// Consume failure reasons. A used challenge is reported as ErrChallengeUsed
// rather than ErrChallengeNotFound so replays are distinguishable from
// garbage ids.
var (
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrChallengeUsed       = errors.New("challenge already used")
	ErrChallengeExpired    = errors.New("challenge expired")
	ErrChallengeIPMismatch = errors.New("challenge ip mismatch")
)

type Challenge struct {
	ID        string    `json:"id"`
	OwnerIP   string    `json:"ownerIp"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
}

type Session struct {
	ID             string    `json:"id"`
	IP             string    `json:"ip"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

type Lockout struct {
	Count         int        `json:"count"`
	LastAttemptAt time.Time  `json:"lastAttemptAt"`
	LockedUntil   *time.Time `json:"lockedUntil,omitempty"`
}

// Locked reports whether the record holds an active lockout at the given
// instant.
func (l *Lockout) Locked(now time.Time) bool {
	return l != nil && l.LockedUntil != nil && l.LockedUntil.After(now)
}

// ChallengeStore keeps one-time challenge tokens. Consume is atomic per id:
// two concurrent calls for the same id never both succeed. A consumed record
// is retained until its expiry passes.
type ChallengeStore interface {
	Put(ctx context.Context, challenge *Challenge) error
	Consume(ctx context.Context, id, ip string) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// SessionStore keeps IP-pinned sessions with a sliding idle timeout.
// Validate atomically refreshes activity on success and deletes the record
// on IP mismatch or idle expiry.
type SessionStore interface {
	Put(ctx context.Context, session *Session) error
	Validate(ctx context.Context, id, ip string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// LockoutStore keeps per-IP failure records. Update applies fn atomically to
// the current record (nil when absent); returning nil deletes the record.
// fn must be pure: the redis implementation retries it on write conflicts.
type LockoutStore interface {
	Get(ctx context.Context, ip string) (*Lockout, error)
	Update(ctx context.Context, ip string, fn func(*Lockout) *Lockout) (*Lockout, error)
	Delete(ctx context.Context, ip string) (bool, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}
