package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	ErrTimestampInvalid = errors.New("timestamp invalid")
	ErrTimestampExpired = errors.New("timestamp outside freshness window")
)

// HMACVerifier checks request integrity: an HMAC-SHA256 signature over
// payload|challengeId|timestamp, plus a freshness window on the timestamp.
type HMACVerifier struct {
	secret []byte
	window time.Duration
	now    func() time.Time
}

func NewHMACVerifier(secret string, window time.Duration) *HMACVerifier {
	return &HMACVerifier{
		secret: []byte(secret),
		window: window,
		now:    time.Now,
	}
}

// Sign computes the hex signature over the pipe-delimited message.
func (v *HMACVerifier) Sign(payload, challengeID, timestamp string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(payload + "|" + challengeID + "|" + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time. A length
// mismatch returns false without comparing content.
func (v *HMACVerifier) Verify(signature, payload, challengeID, timestamp string) bool {
	expected := v.Sign(payload, challengeID, timestamp)
	if len(signature) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// CheckFreshness parses an epoch-milliseconds timestamp and rejects values
// more than the window away from now in either direction. The window bound
// is inclusive: a timestamp exactly window old (or ahead) is still fresh.
func (v *HMACVerifier) CheckFreshness(timestamp string) error {
	millis, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrTimestampInvalid
	}

	drift := v.now().Sub(time.UnixMilli(millis))
	if drift < 0 {
		drift = -drift
	}
	if drift > v.window {
		return ErrTimestampExpired
	}
	return nil
}
