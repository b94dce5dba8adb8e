package service

import (
	"context"
	"testing"
	"time"

	"github.com/pinvault/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChallengeService() *ChallengeService {
	return NewChallengeService(store.NewMemoryChallengeStore(), "test-secret-test-secret", 5*time.Minute)
}

func TestChallengeIssueShape(t *testing.T) {
	svc := newChallengeService()
	resp, err := svc.Issue(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	assert.Len(t, resp.Token, 64)
	assert.NotEmpty(t, resp.CSRF)
	assert.Equal(t, int64(300), resp.ExpiresIn)
	assert.Greater(t, resp.ExpiresAt, time.Now().UnixMilli())
}

func TestChallengeTokensAreUnique(t *testing.T) {
	svc := newChallengeService()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		resp, err := svc.Issue(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		_, dup := seen[resp.Token]
		require.False(t, dup)
		seen[resp.Token] = struct{}{}
	}
}

func TestChallengeConsumeOnceViaService(t *testing.T) {
	svc := newChallengeService()
	ctx := context.Background()

	resp, err := svc.Issue(ctx, "1.2.3.4")
	require.NoError(t, err)

	require.NoError(t, svc.Consume(ctx, resp.Token, "1.2.3.4"))
	assert.ErrorIs(t, svc.Consume(ctx, resp.Token, "1.2.3.4"), store.ErrChallengeUsed)
}

func TestChallengeCSRFBoundToChallenge(t *testing.T) {
	svc := newChallengeService()
	resp, err := svc.Issue(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	subject, err := svc.ParseCSRF(resp.CSRF)
	require.NoError(t, err)
	assert.Equal(t, resp.Token, subject)
}

func TestChallengeCSRFTamperRejected(t *testing.T) {
	svc := newChallengeService()
	resp, err := svc.Issue(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	_, err = svc.ParseCSRF(resp.CSRF + "x")
	assert.ErrorIs(t, err, ErrCSRFInvalid)

	other := NewChallengeService(store.NewMemoryChallengeStore(), "another-secret-entirely", 5*time.Minute)
	_, err = other.ParseCSRF(resp.CSRF)
	assert.ErrorIs(t, err, ErrCSRFInvalid)
}
