package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pinvault/backend/internal/model"
	"github.com/pinvault/backend/internal/store"
)

var ErrCSRFInvalid = errors.New("csrf token invalid")

// ChallengeService issues one-time, IP-bound challenge tokens together with a
// CSRF token the UI echoes back via the double-submit pattern. The CSRF token
// is a short-lived HS256 JWT whose subject is the challenge id.
type ChallengeService struct {
	store  store.ChallengeStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewChallengeService(challengeStore store.ChallengeStore, secret string, ttl time.Duration) *ChallengeService {
	return &ChallengeService{
		store:  challengeStore,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *ChallengeService) Issue(ctx context.Context, ip string) (*model.ChallengeResponse, error) {
	id, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	challenge := &store.Challenge{
		ID:        id,
		OwnerIP:   ip,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := s.store.Put(ctx, challenge); err != nil {
		return nil, err
	}

	csrf, err := s.signCSRF(id, now, expiresAt)
	if err != nil {
		return nil, err
	}

	return &model.ChallengeResponse{
		Token:     id,
		CSRF:      csrf,
		ExpiresAt: expiresAt.UnixMilli(),
		ExpiresIn: int64(s.ttl.Seconds()),
	}, nil
}

// Consume marks the challenge used. It fails with a store sentinel error on
// unknown, replayed, expired, or foreign-IP tokens.
func (s *ChallengeService) Consume(ctx context.Context, id, ip string) error {
	return s.store.Consume(ctx, id, ip)
}

func (s *ChallengeService) signCSRF(challengeID string, now, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   challengeID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseCSRF returns the challenge id a CSRF token was issued for.
func (s *ChallengeService) ParseCSRF(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrCSRFInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrCSRFInvalid
	}
	return claims.Subject, nil
}

// newToken returns 256 bits from crypto/rand as lowercase hex.
func newToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("token generation failed: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
