package middleware

import (
	"errors"
	"net/http"
	"strings"

	"barangay-portal/database"
	"barangay-portal/models"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates JWT tokens for protected routes
func AuthMiddleware(users *database.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		tokenString := ExtractToken(authHeader)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization format"})
			c.Abort()
			return
		}

		userID, kind, err := users.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, models.ErrAccountDeactivated) {
				c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "account has been deactivated"})
			} else {
				c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid or expired token"})
			}
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("session_kind", kind)
		c.Set("token", tokenString)
		c.Next()
	}
}

// AdminMiddleware restricts a route to admin sessions. It relies on the kind
// embedded in the token claims, so no extra lookup is needed.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("session_kind") != models.KindAdmin {
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ExtractToken extracts the token from the Authorization header
func ExtractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
