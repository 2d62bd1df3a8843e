package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"facilicore-system/internal/utils"
)

const devTokenTTL = 24 * time.Hour

// AuthHTTPHandler mints development tokens. It is only mounted outside
// release mode; production callers bring tokens from the identity service.
type AuthHTTPHandler struct {
	secret []byte
}

func NewAuthHTTPHandler(secret []byte) *AuthHTTPHandler {
	return &AuthHTTPHandler{secret: secret}
}

type devTokenRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Username string `json:"username"`
	Role     string `json:"role" binding:"required"`
}

func (h *AuthHTTPHandler) DevToken(c *gin.Context) {
	var body devTokenRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	token, exp, err := utils.GenerateToken(h.secret, body.UserID, body.Username, body.Role, devTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to sign token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"token":      token,
		"expires_at": exp,
	}})
}
