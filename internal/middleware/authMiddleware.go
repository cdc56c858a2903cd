package middleware

import (
	"net/http"
	"strings"

	"github.com/aman-churiwal/credit-gateway/internal/service"
	"github.com/gin-gonic/gin"
)

// Gin context key holding the authenticated operator name
const AdminKey = "admin"

// RequireAuth guards the operator endpoints with a bearer token issued by
// AuthService.Login
func RequireAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required. Use: Bearer <token>",
			})
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		subject, _ := claims.GetSubject()
		c.Set(AdminKey, subject)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
