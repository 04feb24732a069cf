package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lumen.app/companion/internal/http/dto"
	"lumen.app/companion/internal/http/middleware"
	"lumen.app/companion/internal/service"
)

const (
	stateCookieName = "companion_oauth_state"
	stateMaxAge     = 600
)

type AuthHandler struct {
	authService  service.AuthService
	dashboardURL string
	isProduction bool
}

func NewAuthHandler(authService service.AuthService, dashboardURL string, isProduction bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		dashboardURL: dashboardURL,
		isProduction: isProduction,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	state := uuid.NewString()

	authURL, err := h.authService.GetAuthorizationURL(state)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to get authorization URL", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to initiate login"})
		return
	}

	c.SetCookie(stateCookieName, state, stateMaxAge, "/", "", h.isProduction, true)
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

func (h *AuthHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	if errorParam := c.Query("error"); errorParam != "" {
		slog.WarnContext(ctx, "oauth error", "error", errorParam, "description", c.Query("error_description"))
		h.redirectWithError(c, errorParam)
		return
	}

	state := c.Query("state")
	storedState, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || state != storedState {
		slog.WarnContext(ctx, "state mismatch", "got", state)
		h.redirectWithError(c, "invalid_state")
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", h.isProduction, true)

	code := c.Query("code")
	if code == "" {
		h.redirectWithError(c, "no_code")
		return
	}

	user, session, err := h.authService.HandleCallback(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to handle callback", "error", err)
		if errors.Is(err, service.ErrInvalidCode) {
			h.redirectWithError(c, "invalid_code")
			return
		}
		h.redirectWithError(c, "callback_failed")
		return
	}

	c.SetCookie(
		middleware.SessionCookieName,
		strconv.FormatInt(session.ID, 10),
		int(service.SessionTTL.Seconds()),
		"/",
		"",
		h.isProduction,
		true,
	)

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID)
	c.Redirect(http.StatusTemporaryRedirect, h.dashboardURL)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	if sessionID, err := middleware.SessionID(c); err == nil && sessionID > 0 {
		if err := h.authService.Logout(ctx, sessionID); err != nil {
			slog.WarnContext(ctx, "failed to delete session", "error", err, "session_id", sessionID)
		}
	}

	middleware.ClearSessionCookie(c, h.isProduction)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me runs behind RequireSession.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ToUserResponse(middleware.GetUser(c.Request.Context())))
}

func (h *AuthHandler) redirectWithError(c *gin.Context, code string) {
	c.Redirect(http.StatusTemporaryRedirect, h.dashboardURL+"?auth_error="+code)
}
