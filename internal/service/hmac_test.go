package service

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	v := NewHMACVerifier("test-secret-test-secret", 5*time.Minute)

	body := `{"pin":"123456"}`
	challenge := "deadbeef"
	ts := "1700000000000"

	sig := v.Sign(body, challenge, ts)
	assert.Len(t, sig, 64)
	assert.True(t, v.Verify(sig, body, challenge, ts))
}

func TestVerifyRejectsAnyFlippedInput(t *testing.T) {
	v := NewHMACVerifier("test-secret-test-secret", 5*time.Minute)

	body := `{"pin":"123456"}`
	challenge := "deadbeef"
	ts := "1700000000000"
	sig := v.Sign(body, challenge, ts)

	assert.False(t, v.Verify(sig, `{"pin":"123457"}`, challenge, ts))
	assert.False(t, v.Verify(sig, body, "deadbeee", ts))
	assert.False(t, v.Verify(sig, body, challenge, "1700000000001"))

	flipped := []byte(sig)
	flipped[0] ^= 0x01
	assert.False(t, v.Verify(string(flipped), body, challenge, ts))
}

func TestVerifyRejectsLengthMismatch(t *testing.T) {
	v := NewHMACVerifier("test-secret-test-secret", 5*time.Minute)
	assert.False(t, v.Verify("abcd", "body", "ch", "123"))
	assert.False(t, v.Verify("", "body", "ch", "123"))
}

func TestVerifyDifferentSecretsDisagree(t *testing.T) {
	a := NewHMACVerifier("secret-aaaaaaaaaaaaa", 5*time.Minute)
	b := NewHMACVerifier("secret-bbbbbbbbbbbbb", 5*time.Minute)

	sig := a.Sign("body", "ch", "123")
	assert.False(t, b.Verify(sig, "body", "ch", "123"))
}

func TestCheckFreshnessWindowInclusive(t *testing.T) {
	v := NewHMACVerifier("test-secret-test-secret", 5*time.Minute)
	now := time.UnixMilli(1700000000000)
	v.now = func() time.Time { return now }

	stamp := func(t time.Time) string {
		return strconv.FormatInt(t.UnixMilli(), 10)
	}

	assert.NoError(t, v.CheckFreshness(stamp(now)))
	// Exactly at the window bound is still fresh, both directions.
	assert.NoError(t, v.CheckFreshness(stamp(now.Add(-5*time.Minute))))
	assert.NoError(t, v.CheckFreshness(stamp(now.Add(5*time.Minute))))
	// One millisecond past the bound is not.
	assert.ErrorIs(t, v.CheckFreshness(stamp(now.Add(-5*time.Minute-time.Millisecond))), ErrTimestampExpired)
	assert.ErrorIs(t, v.CheckFreshness(stamp(now.Add(5*time.Minute+time.Millisecond))), ErrTimestampExpired)
}

func TestCheckFreshnessRejectsGarbage(t *testing.T) {
	v := NewHMACVerifier("test-secret-test-secret", 5*time.Minute)
	assert.ErrorIs(t, v.CheckFreshness("not-a-number"), ErrTimestampInvalid)
	assert.ErrorIs(t, v.CheckFreshness(""), ErrTimestampInvalid)
	assert.ErrorIs(t, v.CheckFreshness("1.5e12"), ErrTimestampInvalid)
}
