package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ankinstructor/ank-admin-api/internal/http/response"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

const identityContextKey = "auth_identity"

// RequireAuth verifies the bearer ID token and stashes the caller identity
// in the request context. Everything behind it can assume a valid uid.
func RequireAuth(log *logger.Logger, auth services.AuthService) gin.HandlerFunc {
	mwLog := log.With("middleware", "RequireAuth")
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token := ""
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			token = strings.TrimSpace(header[len("bearer "):])
		}
		if token == "" {
			response.RespondError(c, http.StatusUnauthorized, "missing_token", errors.New("missing bearer token"))
			c.Abort()
			return
		}

		identity, err := auth.VerifyIDToken(token)
		if err != nil {
			mwLog.Warn("token verification failed", "error", err)
			response.RespondServiceError(c, err)
			c.Abort()
			return
		}

		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(c *gin.Context) (services.Identity, bool) {
	v, ok := c.Get(identityContextKey)
	if !ok {
		return services.Identity{}, false
	}
	identity, ok := v.(services.Identity)
	return identity, ok
}
