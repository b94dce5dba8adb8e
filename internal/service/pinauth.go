package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pinvault/backend/internal/config"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPinIncorrect  = errors.New("pin incorrect")
	ErrAccountLocked = errors.New("account locked")
)

// PinAuthenticator runs the post-integrity half of the verify-pin pipeline:
// lockout check, challenge consumption, PIN comparison, session issuance.
// Header extraction, timestamp freshness, and HMAC verification happen in
// the HMAC middleware before a request reaches this service.
type PinAuthenticator struct {
	challenges *ChallengeService
	sessions   *SessionService
	lockouts   *LockoutTracker
	pinHash    []byte
}

// NewPinAuthenticator resolves the master PIN hash from config: either a
// pre-computed bcrypt hash, or a plain PIN hashed once at startup.
func NewPinAuthenticator(cfg config.AuthConfig, challenges *ChallengeService, sessions *SessionService, lockouts *LockoutTracker) (*PinAuthenticator, error) {
	var pinHash []byte
	switch {
	case cfg.PinHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.PinHash)); err != nil {
			return nil, fmt.Errorf("%w: AUTH_PIN_HASH is not a bcrypt hash", config.ErrMisconfigured)
		}
		pinHash = []byte(cfg.PinHash)
	case cfg.Pin != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		pinHash = hash
	default:
		return nil, fmt.Errorf("%w: AUTH_PIN or AUTH_PIN_HASH is required", config.ErrMisconfigured)
	}

	return &PinAuthenticator{
		challenges: challenges,
		sessions:   sessions,
		lockouts:   lockouts,
		pinHash:    pinHash,
	}, nil
}

type VerifyResult struct {
	SessionID string
	ExpiresAt time.Time
}

// VerifyPin checks lockout state before consuming the challenge, so a locked
// IP neither burns tokens nor learns whether its PIN was right. Challenge
// failures surface as store sentinel errors; a wrong PIN that crosses the
// attempt threshold is reported as ErrAccountLocked.
func (a *PinAuthenticator) VerifyPin(ctx context.Context, ip, challengeID, pin string) (*VerifyResult, error) {
	locked, err := a.lockouts.IsLocked(ctx, ip)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, ErrAccountLocked
	}

	if err := a.challenges.Consume(ctx, challengeID, ip); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(a.pinHash, []byte(pin)); err != nil {
		count, recordErr := a.lockouts.RecordFailure(ctx, ip)
		if recordErr != nil {
			return nil, recordErr
		}
		if count >= a.lockouts.MaxAttempts() {
			return nil, ErrAccountLocked
		}
		return nil, ErrPinIncorrect
	}

	if err := a.lockouts.RecordSuccess(ctx, ip); err != nil {
		return nil, err
	}

	sessionID, expiresAt, err := a.sessions.Create(ctx, ip)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

// Logout invalidates the session. Request integrity was already checked by
// the HMAC middleware; the challenge is not consumed here.
func (a *PinAuthenticator) Logout(ctx context.Context, sessionID string) (bool, error) {
	return a.sessions.Invalidate(ctx, sessionID)
}

// SessionStatus is the read-only validity check behind the status endpoint.
func (a *PinAuthenticator) SessionStatus(ctx context.Context, sessionID, ip string) (bool, error) {
	return a.sessions.Validate(ctx, sessionID, ip)
}
