package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pinvault/backend/internal/model"
)

// Health is the liveness endpoint.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.OK(gin.H{"status": "ok"}))
}
