package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/hexfeed/utils"
)

const (
	// ContextUIDKey is the key used to store the authenticated uid in Gin context.
	ContextUIDKey = "uid"
	// ContextEmailKey stores the account email inside Gin context.
	ContextEmailKey = "email"
)

// SessionStore resumes a session from a bearer token.
type SessionStore interface {
	SessionToken() string
	Restore(ctx context.Context, token string) error
}

// Session validates an optional bearer token and, when it is not the token of
// the session already held, restores the session it carries. Requests without
// an Authorization header pass through unauthenticated.
func Session(secret string, sessions SessionStore) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			ctx.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(secret, tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		if sessions.SessionToken() != tokenString {
			if err := sessions.Restore(ctx.Request.Context(), tokenString); err != nil {
				utils.Error(ctx, http.StatusUnauthorized, 40106, err.Error())
				ctx.Abort()
				return
			}
		}

		ctx.Set(ContextUIDKey, claims.UID)
		ctx.Set(ContextEmailKey, claims.Email)
		ctx.Next()
	}
}

// AuthRequired rejects requests that Session did not authenticate.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetString(ContextUIDKey) == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
