package service

import (
	"context"
	"time"

	"github.com/pinvault/backend/internal/store"
)

// SessionService issues bearer session ids pinned to the creating IP with a
// sliding idle timeout.
type SessionService struct {
	store   store.SessionStore
	timeout time.Duration
	now     func() time.Time
}

func NewSessionService(sessionStore store.SessionStore, timeout time.Duration) *SessionService {
	return &SessionService{
		store:   sessionStore,
		timeout: timeout,
		now:     time.Now,
	}
}

// Create returns a fresh session id and its absolute expiry (assuming no
// further activity).
func (s *SessionService) Create(ctx context.Context, ip string) (string, time.Time, error) {
	id, err := newToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	session := &store.Session{
		ID:             id,
		IP:             ip,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.store.Put(ctx, session); err != nil {
		return "", time.Time{}, err
	}
	return id, now.Add(s.timeout), nil
}

// Validate refreshes the session's activity on success. An IP mismatch or an
// idle timeout deletes the session and reports false.
func (s *SessionService) Validate(ctx context.Context, id, ip string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return s.store.Validate(ctx, id, ip)
}

// Invalidate deletes the session and reports whether it existed.
func (s *SessionService) Invalidate(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return s.store.Delete(ctx, id)
}
