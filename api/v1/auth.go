package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/services"
)

// AuthHandler exposes registration, login and profile endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest

	// Parse request body
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return
	}

	user, err := h.auth.Register(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Registration failed",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return
	}

	authResponse, err := h.auth.Login(req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "Authentication failed",
			"error":   err.Error(),
		})
		return
	}

	// Set token as HttpOnly cookie (expires in 24 hours)
	c.SetCookie(
		"access_token",     // name
		authResponse.Token, // value
		86400,              // max age (24 hours in seconds)
		"/",                // path
		"",                 // domain
		true,               // secure (HTTPS only)
		true,               // httpOnly (not accessible via JS)
	)

	// Also return token in response body for clients that prefer Bearer auth
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   authResponse,
	})
}

// GetCurrentUser returns the currently authenticated user's profile
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	// Get user ID from the context (set by the AuthMiddleware)
	userID, exists := c.Get("userId")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "User not authenticated",
		})
		return
	}

	user, err := h.auth.GetUser(userID.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to retrieve user profile",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"user":   user,
	})
}
