package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/punnu35/expense-app/config"
	"github.com/punnu35/expense-app/middleware"
	"github.com/punnu35/expense-app/service"
)

type AuthHandler struct {
	config *config.Config
	roles  *service.RoleResolver
}

func NewAuthHandler(cfg *config.Config, roles *service.RoleResolver) *AuthHandler {
	return &AuthHandler{config: cfg, roles: roles}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	// Find user in config
	user := h.config.FindUser(req.Email)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	// Simple password check (in production, use bcrypt)
	if user.Password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(user.ID, user.Email, &h.config.Auth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format("2006-01-02T15:04:05Z07:00"),
		Email:     user.Email,
		Role:      string(h.roles.Resolve(user.Email)),
	})
}

// GetCurrentUser returns the current user info with their resolved role
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	c.JSON(http.StatusOK, gin.H{
		"user_id": identity.UserID,
		"email":   identity.Email,
		"role":    string(h.roles.Resolve(identity.Email)),
	})
}
