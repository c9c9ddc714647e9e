package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/service"
	"github.com/converseapp/converse/pkg/auth"
)

const (
	// CtxUser is the gin context key the resolved user is stored under.
	CtxUser = "current_user"
	// CtxClaims is the gin context key the raw JWT claims are stored under.
	CtxClaims = "claims"
)

// AuthMiddleware validates JWT tokens, rejects revoked ones, and
// resolves the token's external principal to a local user record. Every
// protected operation downstream receives the caller explicitly via
// CurrentUser; requests whose principal has no user record are rejected.
func AuthMiddleware(jwtManager *auth.JWTManager, rdb *redis.Client, identity *service.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format. Use: Bearer <token>"})
			return
		}

		tokenString := parts[1]

		// revocation check fails closed
		if rdb != nil {
			exists, err := rdb.Exists(context.Background(), "revoked:"+tokenString).Result()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Auth server error"})
				return
			}
			if exists > 0 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
				return
			}
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		user, err := identity.Resolve(claims.ExternalID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
			return
		}

		c.Set(CtxUser, user)
		c.Set(CtxClaims, claims)
		c.Next()
	}
}

// CurrentUser returns the authenticated user resolved by AuthMiddleware.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(CtxUser)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}
