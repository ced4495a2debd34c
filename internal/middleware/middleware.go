package middleware

import (
	"net/http"
	"strings"

	"tasksync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserKey is the gin context key holding the authenticated user id.
const UserKey = "user"

// AuthMiddleware verifies an HS256 bearer token and stores its subject under
// UserKey. When the route has a :userId parameter it must equal the subject.
func AuthMiddleware(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		auth := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if auth == "" || !strings.HasPrefix(auth, prefix) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			logger.Debug(ctx, "Missing or invalid Authorization header")
			c.Abort()
			return
		}
		if secret == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration"})
			c.Abort()
			return
		}
		tokenStr := strings.TrimSpace(auth[len(prefix):])
		claims := &jwt.RegisteredClaims{}
		token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			logger.Debug(ctx, "JWT parse failed", "error", err)
			c.Abort()
			return
		}
		if uid := c.Param("userId"); uid != "" && uid != claims.Subject {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			logger.Debug(ctx, "Token subject does not own path", "subject", claims.Subject, "path_user", uid)
			c.Abort()
			return
		}
		c.Set(UserKey, claims.Subject)
		c.Request = c.Request.WithContext(logger.WithUser(ctx, claims.Subject))
		c.Next()
	}
}
