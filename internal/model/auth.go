package model

// Error codes surfaced to clients. Every rejection carries exactly one of
// these so the caller can decide between re-fetching a challenge and waiting
// out a lockout.
const (
	CodeHMACMissing      = "HMAC_MISSING"
	CodeHMACInvalid      = "HMAC_INVALID"
	CodeTimestampInvalid = "TIMESTAMP_INVALID"
	CodeTimestampExpired = "TIMESTAMP_EXPIRED"
	CodeChallengeMissing = "CHALLENGE_MISSING"
	CodeChallengeInvalid = "CHALLENGE_INVALID"
	CodePinInvalid       = "PIN_INVALID"
	CodePinIncorrect     = "PIN_INCORRECT"
	CodeAccountLocked    = "ACCOUNT_LOCKED"
	CodeSessionMissing   = "SESSION_MISSING"
	CodeSessionInvalid   = "SESSION_INVALID"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Request integrity headers expected on HMAC-protected endpoints.
const (
	HeaderSignature = "X-HMAC-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderChallenge = "X-Challenge-Token"
	HeaderSession   = "X-Session-Id"
	HeaderRequestID = "X-Request-Id"
)

type ChallengeResponse struct {
	Token     string `json:"token"`
	CSRF      string `json:"csrf"`
	ExpiresAt int64  `json:"expiresAt"`
	ExpiresIn int64  `json:"expiresIn"`
}

type VerifyPinRequest struct {
	Pin string `json:"pin"`
}

type VerifyPinResponse struct {
	SessionID string `json:"sessionId"`
	ExpiresAt int64  `json:"expiresAt"`
}

type PinFailureData struct {
	AttemptsRemaining int `json:"attemptsRemaining"`
}

type LogoutRequest struct {
	SessionID string `json:"sessionId"`
}

type SessionStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	SessionID     string `json:"sessionId,omitempty"`
}

type LockoutStatusResponse struct {
	IsLocked          bool   `json:"isLocked"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
	LockoutExpiresAt  *int64 `json:"lockoutExpiresAt"`
}

type LockedData struct {
	AttemptsRemaining int   `json:"attemptsRemaining"`
	RemainingSeconds  int64 `json:"remainingSeconds"`
	LockoutExpiresAt  int64 `json:"lockoutExpiresAt"`
}
