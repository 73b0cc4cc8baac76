package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"pkstore/internal/domain"
	"pkstore/internal/session"
)

const (
	sessionHeader = "X-Session-Token"
	sessionCookie = "pk_session"
)

type ctxKey string

const sessionCtxKey ctxKey = "session"

// sessionMiddleware resolves the caller's session from the header or cookie and issues a new
// token when none is valid.
func sessionMiddleware(sessions sessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(sessionHeader)
		if raw == "" {
			raw, _ = c.Cookie(sessionCookie)
		}

		sess, created, err := sessions.Resolve(c.Request.Context(), raw)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrClosed) {
				status = http.StatusServiceUnavailable
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "session unavailable"})
			return
		}
		if created {
			maxAge := int(time.Until(sess.ExpiresAt).Seconds())
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, sess.Token, maxAge, "/", "", false, true)
		}
		c.Header(sessionHeader, sess.Token)

		ctx := context.WithValue(c.Request.Context(), sessionCtxKey, sess)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *session.Session {
	sess, _ := c.Request.Context().Value(sessionCtxKey).(*session.Session)
	return sess
}
