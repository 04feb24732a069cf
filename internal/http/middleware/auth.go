package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumen.app/companion/common/logger"
	"lumen.app/companion/internal/model"
	"lumen.app/companion/internal/service"
)

type contextKey string

const (
	SessionCookieName = "companion_session"
	SessionIDHeader   = "X-Session-ID"

	userContextKey      contextKey = "user"
	sessionIDContextKey contextKey = "session_id"
)

// RequireSession rejects requests without a valid login session and puts
// the user on the request context.
func RequireSession(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := SessionID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "not authenticated"})
			return
		}

		user, err := authService.ValidateSession(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, service.ErrSessionExpired) || errors.Is(err, service.ErrUserNotFound) {
				ClearSessionCookie(c, false)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "session expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to validate session"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
		ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: logger.Ptr(user.ID)})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

func GetSessionID(ctx context.Context) int64 {
	sessionID, _ := ctx.Value(sessionIDContextKey).(int64)
	return sessionID
}

// WithUser returns ctx carrying user, as RequireSession would set it.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// SessionID reads the login session id from the cookie, falling back to the
// X-Session-ID header for non-browser clients.
func SessionID(c *gin.Context) (int64, error) {
	raw, err := c.Cookie(SessionCookieName)
	if err != nil || raw == "" {
		raw = c.GetHeader(SessionIDHeader)
	}
	if raw == "" {
		return 0, errors.New("no session")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetCookie(
		SessionCookieName,
		"",
		-1,
		"/",
		"",
		secure,
		true,
	)
}
