package store

import (
	"context"
	"sync"
	"time"
)

// MemoryChallengeStore is the single-process implementation backed by a
// mutex-guarded map.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	now        func() time.Time
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]*Challenge),
		now:        time.Now,
	}
}

func (s *MemoryChallengeStore) Put(ctx context.Context, challenge *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *challenge
	s.challenges[challenge.ID] = &copied
	return nil
}

func (s *MemoryChallengeStore) Consume(ctx context.Context, id, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return ErrChallengeNotFound
	}
	if challenge.Used {
		return ErrChallengeUsed
	}
	if s.now().After(challenge.ExpiresAt) {
		delete(s.challenges, id)
		return ErrChallengeExpired
	}
	if challenge.OwnerIP != ip {
		return ErrChallengeIPMismatch
	}

	challenge.Used = true
	return nil
}

func (s *MemoryChallengeStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, challenge := range s.challenges {
		if challenge.ExpiresAt.Before(now) {
			delete(s.challenges, id)
			removed++
		}
	}
	return removed, nil
}

// MemorySessionStore holds sessions with a sliding idle timeout.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	now      func() time.Time
}

func NewMemorySessionStore(timeout time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Put(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MemorySessionStore) Validate(ctx context.Context, id, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return false, nil
	}

	now := s.now()
	if session.IP != ip || now.Sub(session.LastActivityAt) > s.timeout {
		delete(s.sessions, id)
		return false, nil
	}

	session.LastActivityAt = now
	return true, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *MemorySessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if now.Sub(session.LastActivityAt) > s.timeout {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// MemoryLockoutStore keeps per-IP failure records. resetWindow bounds how
// long an unlocked record may sit idle before the sweep drops it.
type MemoryLockoutStore struct {
	mu          sync.Mutex
	lockouts    map[string]*Lockout
	resetWindow time.Duration
	now         func() time.Time
}

func NewMemoryLockoutStore(resetWindow time.Duration) *MemoryLockoutStore {
	return &MemoryLockoutStore{
		lockouts:    make(map[string]*Lockout),
		resetWindow: resetWindow,
		now:         time.Now,
	}
}

func (s *MemoryLockoutStore) Get(ctx context.Context, ip string) (*Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockout, ok := s.lockouts[ip]
	if !ok {
		return nil, nil
	}
	copied := *lockout
	return &copied, nil
}

func (s *MemoryLockoutStore) Update(ctx context.Context, ip string, fn func(*Lockout) *Lockout) (*Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *Lockout
	if existing, ok := s.lockouts[ip]; ok {
		copied := *existing
		current = &copied
	}

	updated := fn(current)
	if updated == nil {
		delete(s.lockouts, ip)
		return nil, nil
	}

	s.lockouts[ip] = updated
	copied := *updated
	return &copied, nil
}

func (s *MemoryLockoutStore) Delete(ctx context.Context, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lockouts[ip]; !ok {
		return false, nil
	}
	delete(s.lockouts, ip)
	return true, nil
}

func (s *MemoryLockoutStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ip, lockout := range s.lockouts {
		expired := lockout.LockedUntil != nil && !lockout.LockedUntil.After(now)
		stale := lockout.LockedUntil == nil && now.Sub(lockout.LastAttemptAt) > s.resetWindow
		if expired || stale {
			delete(s.lockouts, ip)
			removed++
		}
	}
	return removed, nil
}
