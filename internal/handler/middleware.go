package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pinvault/backend/internal/model"
	"github.com/pinvault/backend/internal/service"
)

const (
	challengeIDKey = "challenge_id"
	sessionIDKey   = "session_id"
)

// HMACRequired is the request-integrity policy for protected routes. Routes
// registered without it carry no integrity check; there is no header-sniffing
// optional variant. It extracts the signature, timestamp, and challenge id
// headers, checks timestamp freshness, and verifies the signature over the
// exact raw request body (or the request path for bodyless GETs). The
// verified challenge id is stashed in the context for the handler.
func HMACRequired(verifier *service.HMACVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(model.HeaderSignature)
		if signature == "" {
			abort(c, http.StatusBadRequest, model.CodeHMACMissing, "missing HMAC signature")
			return
		}

		timestamp := c.GetHeader(model.HeaderTimestamp)
		if timestamp == "" {
			abort(c, http.StatusBadRequest, model.CodeTimestampInvalid, "missing timestamp")
			return
		}

		challengeID := c.GetHeader(model.HeaderChallenge)
		if challengeID == "" {
			abort(c, http.StatusBadRequest, model.CodeChallengeMissing, "missing challenge token")
			return
		}

		if err := verifier.CheckFreshness(timestamp); err != nil {
			if err == service.ErrTimestampInvalid {
				abort(c, http.StatusBadRequest, model.CodeTimestampInvalid, "invalid timestamp")
				return
			}
			abort(c, http.StatusUnauthorized, model.CodeTimestampExpired, "timestamp outside freshness window")
			return
		}

		payload, err := readPayload(c)
		if err != nil {
			abort(c, http.StatusBadRequest, model.CodeValidationError, "unreadable request body")
			return
		}

		if !verifier.Verify(signature, payload, challengeID, timestamp) {
			abort(c, http.StatusUnauthorized, model.CodeHMACInvalid, "HMAC verification failed")
			return
		}

		c.Set(challengeIDKey, challengeID)
		c.Next()
	}
}

// readPayload returns the signed message payload and restores the body so
// the handler can still bind it.
func readPayload(c *gin.Context) (string, error) {
	if c.Request.Method == http.MethodGet && c.Request.Body == nil {
		return c.Request.URL.Path, nil
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	if len(raw) == 0 && c.Request.Method == http.MethodGet {
		return c.Request.URL.Path, nil
	}
	return string(raw), nil
}

// SessionRequired guards session-bound routes via the X-Session-Id header.
func SessionRequired(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(model.HeaderSession)
		if sessionID == "" {
			abort(c, http.StatusBadRequest, model.CodeSessionMissing, "missing session id")
			return
		}

		valid, err := sessions.Validate(c.Request.Context(), sessionID, c.ClientIP())
		if err != nil {
			abort(c, http.StatusInternalServerError, model.CodeInternalError, "session validation failed")
			return
		}
		if !valid {
			abort(c, http.StatusUnauthorized, model.CodeSessionInvalid, "invalid or expired session")
			return
		}

		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

// RequestID tags every request with a uuid, echoed in the response headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(model.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(model.HeaderRequestID, id)
		c.Next()
	}
}

func CORSMiddleware(allowedOrigins string) gin.HandlerFunc {
	originMap := make(map[string]struct{})
	for _, origin := range strings.Split(allowedOrigins, ",") {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Headers", "Content-Type, X-HMAC-Signature, X-Timestamp, X-Challenge-Token, X-Session-Id, X-CSRF-Token")
				c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func getChallengeID(c *gin.Context) string {
	return c.GetString(challengeIDKey)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, model.Fail(code, message))
}
