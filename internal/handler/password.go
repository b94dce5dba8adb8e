package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pinvault/backend/internal/model"
	"github.com/pinvault/backend/internal/service"
	"github.com/pinvault/backend/internal/store"
)

type PasswordHandler struct {
	deriver    *service.PasswordDeriver
	challenges *service.ChallengeService
	dev        bool
}

func NewPasswordHandler(deriver *service.PasswordDeriver, challenges *service.ChallengeService, dev bool) *PasswordHandler {
	return &PasswordHandler{
		deriver:    deriver,
		challenges: challenges,
		dev:        dev,
	}
}

// Generate derives the deterministic per-platform password. The route sits
// behind SessionRequired and HMACRequired; the challenge the request was
// signed with is consumed here, so each signed generate request is single-use.
func (h *PasswordHandler) Generate(c *gin.Context) {
	var req model.GeneratePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Fail(model.CodeValidationError, "invalid request body"))
		return
	}

	if err := h.challenges.Consume(c.Request.Context(), getChallengeID(c), c.ClientIP()); err != nil {
		switch {
		case errors.Is(err, store.ErrChallengeNotFound),
			errors.Is(err, store.ErrChallengeUsed),
			errors.Is(err, store.ErrChallengeExpired),
			errors.Is(err, store.ErrChallengeIPMismatch):
			c.JSON(http.StatusUnauthorized, model.Fail(model.CodeChallengeInvalid, err.Error()))
		default:
			h.internalError(c, err)
		}
		return
	}

	rules, err := service.ResolveRules(req.Platform, req.PasswordLength, req.PasswordRules)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.Fail(model.CodeValidationError, err.Error()))
		return
	}

	password, err := h.deriver.Derive(c.Request.Context(), req.MasterPassword, req.Platform, rules)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMasterTooShort), errors.Is(err, service.ErrPlatformRequired):
			c.JSON(http.StatusBadRequest, model.Fail(model.CodeValidationError, err.Error()))
		default:
			h.internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, model.OK(model.GeneratePasswordResponse{
		Password: password,
		Metadata: model.PasswordMetadata{
			Platform:         req.Platform,
			Length:           rules.Length,
			RequireSymbols:   rules.RequireSymbols,
			ExcludeAmbiguous: rules.ExcludeAmbiguous,
			Strength:         service.ScoreStrength(password),
		},
	}))
}

func (h *PasswordHandler) internalError(c *gin.Context, err error) {
	message := "internal error"
	if h.dev {
		message = err.Error()
	}
	c.JSON(http.StatusInternalServerError, model.Fail(model.CodeInternalError, message))
}
