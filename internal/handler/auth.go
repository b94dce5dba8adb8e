package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pinvault/backend/internal/model"
	"github.com/pinvault/backend/internal/service"
	"github.com/pinvault/backend/internal/store"
)

type AuthHandler struct {
	challenges *service.ChallengeService
	authn      *service.PinAuthenticator
	lockouts   *service.LockoutTracker
	dev        bool
}

func NewAuthHandler(challenges *service.ChallengeService, authn *service.PinAuthenticator, lockouts *service.LockoutTracker, dev bool) *AuthHandler {
	return &AuthHandler{
		challenges: challenges,
		authn:      authn,
		lockouts:   lockouts,
		dev:        dev,
	}
}

// Challenge issues a one-time challenge token bound to the caller's IP.
func (h *AuthHandler) Challenge(c *gin.Context) {
	resp, err := h.challenges.Issue(c.Request.Context(), c.ClientIP())
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OK(resp))
}

// VerifyPin runs the PIN pipeline. Integrity (headers, freshness, HMAC) was
// already enforced by the HMACRequired middleware on this route.
func (h *AuthHandler) VerifyPin(c *gin.Context) {
	var req model.VerifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validPin(req.Pin) {
		c.JSON(http.StatusBadRequest, model.Fail(model.CodePinInvalid, "PIN must be 4-12 digits"))
		return
	}

	ip := c.ClientIP()
	result, err := h.authn.VerifyPin(c.Request.Context(), ip, getChallengeID(c), req.Pin)
	if err != nil {
		h.writeVerifyError(c, ip, err)
		return
	}

	c.JSON(http.StatusOK, model.OK(model.VerifyPinResponse{
		SessionID: result.SessionID,
		ExpiresAt: result.ExpiresAt.UnixMilli(),
	}))
}

// Logout invalidates the submitted session. The route carries the same HMAC
// policy as verify-pin, signed over the {sessionId} body.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req model.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, model.Fail(model.CodeSessionMissing, "missing session id"))
		return
	}

	if _, err := h.authn.Logout(c.Request.Context(), req.SessionID); err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OK(struct{}{}))
}

// SessionStatus reports validity of the session in X-Session-Id. Read-only
// apart from the sliding-expiration refresh; no HMAC or challenge required.
func (h *AuthHandler) SessionStatus(c *gin.Context) {
	sessionID := c.GetHeader(model.HeaderSession)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, model.Fail(model.CodeSessionMissing, "missing session id"))
		return
	}

	valid, err := h.authn.SessionStatus(c.Request.Context(), sessionID, c.ClientIP())
	if err != nil {
		h.internalError(c, err)
		return
	}

	resp := model.SessionStatusResponse{Authenticated: valid}
	if valid {
		resp.SessionID = sessionID
	}
	c.JSON(http.StatusOK, model.OK(resp))
}

// LockoutStatus reports the caller's lockout state.
func (h *AuthHandler) LockoutStatus(c *gin.Context) {
	isLocked, attemptsRemaining, expiresAt, err := h.lockouts.Status(c.Request.Context(), c.ClientIP())
	if err != nil {
		h.internalError(c, err)
		return
	}

	resp := model.LockoutStatusResponse{
		IsLocked:          isLocked,
		AttemptsRemaining: attemptsRemaining,
	}
	if expiresAt != nil {
		millis := expiresAt.UnixMilli()
		resp.LockoutExpiresAt = &millis
	}
	c.JSON(http.StatusOK, model.OK(resp))
}

func (h *AuthHandler) writeVerifyError(c *gin.Context, ip string, err error) {
	switch {
	case errors.Is(err, service.ErrAccountLocked):
		remaining, lockErr := h.lockouts.RemainingLockout(c.Request.Context(), ip)
		if lockErr != nil {
			h.internalError(c, lockErr)
			return
		}
		_, _, expiresAt, statusErr := h.lockouts.Status(c.Request.Context(), ip)
		if statusErr != nil {
			h.internalError(c, statusErr)
			return
		}
		data := model.LockedData{RemainingSeconds: remaining}
		if expiresAt != nil {
			data.LockoutExpiresAt = expiresAt.UnixMilli()
		}
		c.JSON(http.StatusTooManyRequests, model.FailWith(model.CodeAccountLocked, "account locked, try again later", data))

	case errors.Is(err, store.ErrChallengeNotFound),
		errors.Is(err, store.ErrChallengeUsed),
		errors.Is(err, store.ErrChallengeExpired),
		errors.Is(err, store.ErrChallengeIPMismatch):
		c.JSON(http.StatusUnauthorized, model.Fail(model.CodeChallengeInvalid, err.Error()))

	case errors.Is(err, service.ErrPinIncorrect):
		_, attemptsRemaining, _, statusErr := h.lockouts.Status(c.Request.Context(), ip)
		if statusErr != nil {
			h.internalError(c, statusErr)
			return
		}
		c.JSON(http.StatusUnauthorized, model.FailWith(model.CodePinIncorrect, "incorrect PIN", model.PinFailureData{
			AttemptsRemaining: attemptsRemaining,
		}))

	default:
		h.internalError(c, err)
	}
}

func (h *AuthHandler) internalError(c *gin.Context, err error) {
	message := "internal error"
	if h.dev {
		message = err.Error()
	}
	c.JSON(http.StatusInternalServerError, model.Fail(model.CodeInternalError, message))
}

func validPin(pin string) bool {
	if len(pin) < 4 || len(pin) > 12 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
