package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
)

// SessionKey is where the guard stores the verified *services.Session.
const SessionKey = "adminSession"

// SessionToken returns the admin token a request presents, preferring an
// explicit bearer header over the session cookie.
func SessionToken(c *gin.Context) string {
	if tokens := SessionTokens(c); len(tokens) > 0 {
		return tokens[0]
	}
	return ""
}

// SessionTokens lists the bearer token and then the cookie token, skipping
// whichever is absent.
func SessionTokens(c *gin.Context) []string {
	var tokens []string
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); token != "" {
			tokens = append(tokens, token)
		}
	}
	if cookie, err := c.Cookie(services.SessionCookieName); err == nil && cookie != "" {
		tokens = append(tokens, cookie)
	}
	return tokens
}

// ResolveSession verifies each token the request presents in turn, so a stale
// cookie does not shadow a valid bearer header. Anything but an AuthError
// stops the search.
func ResolveSession(c *gin.Context, sessions *services.SessionService, tokens []string) (*services.Session, error) {
	for _, token := range tokens {
		session, err := sessions.Verify(c.Request.Context(), token)
		if err == nil {
			return session, nil
		}
		var authErr *services.AuthError
		if !errors.As(err, &authErr) {
			return nil, err
		}
	}
	return nil, &services.AuthError{}
}

// AdminSessionGuard lets a request through only with a live admin session.
// Browsers can't set headers on websocket upgrades, so those may pass the token
// as ?token= instead.
func AdminSessionGuard(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokens := SessionTokens(c)
		if len(tokens) == 0 && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if token := c.Query("token"); token != "" {
				tokens = append(tokens, token)
			}
		}

		session, err := ResolveSession(c, sessions, tokens)
		if err != nil {
			var authErr *services.AuthError
			if errors.As(err, &authErr) {
				utils.AbortWithMessage(c, http.StatusUnauthorized, "unauthorized")
				return
			}
			utils.ErrorLogger.WithError(err).Error("Admin session check failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, utils.ErrorResponse{
				Error: "session store unavailable",
				Code:  utils.CodeDatabaseError,
			})
			return
		}

		c.Set(SessionKey, session)
		c.Next()
	}
}
