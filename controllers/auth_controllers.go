package controllers

import (
	"net/http"
	"time"

	"github.com/douxbatter/storefront/middlewares"
	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
)

// AuthController handles admin login and logout.
type AuthController struct {
	Sessions     *services.SessionService
	CookieSecure bool
}

func NewAuthController(sessions *services.SessionService, cookieSecure bool) *AuthController {
	return &AuthController{Sessions: sessions, CookieSecure: cookieSecure}
}

func (ac *AuthController) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(services.SessionCookieName, value, maxAge, "/", "", ac.CookieSecure, true)
}

// Login -> body {"password": "..."}; sets the session cookie and also returns
// the token for clients that prefer a bearer header.
func (ac *AuthController) Login(c *gin.Context) {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Password == "" {
		utils.RespondMessage(c, http.StatusBadRequest, "password is required")
		return
	}

	session, err := ac.Sessions.Login(c.Request.Context(), body.Password)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}

	ac.setCookie(c, session.Token, int(time.Until(session.ExpiresAt).Seconds()))
	utils.RespondJSON(c, http.StatusOK, gin.H{
		"success":   true,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

func (ac *AuthController) Logout(c *gin.Context) {
	if err := ac.Sessions.Logout(c.Request.Context(), middlewares.SessionToken(c)); err != nil {
		respondServiceError(c, err, "")
		return
	}
	ac.setCookie(c, "", -1)
	utils.RespondJSON(c, http.StatusOK, gin.H{"success": true})
}

// Session -> whether the caller is logged in.
func (ac *AuthController) Session(c *gin.Context) {
	session, err := middlewares.ResolveSession(c, ac.Sessions, middlewares.SessionTokens(c))
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, gin.H{"authenticated": true, "expiresAt": session.ExpiresAt})
}
