package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Logout ends the cookie-based session. Bearer tokens stay valid until
// they expire; clients using them just discard the token.
func (h *AuthHandler) Logout(c *gin.Context) {
	// Expire the cookie with the same attributes Login set it with.
	c.SetCookie(
		"access_token", // name
		"",             // value (empty)
		-1,             // max age (expired)
		"/",            // path
		"",             // domain
		true,           // secure (HTTPS only)
		true,           // httpOnly (not accessible via JS)
	)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Logged out successfully",
	})
}
