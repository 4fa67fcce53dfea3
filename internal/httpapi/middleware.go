package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Skufu/thyrocheck/internal/auth"
	"github.com/Skufu/thyrocheck/internal/store"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userKey         = "user"
)

// requestID echoes a caller-supplied X-Request-ID or mints one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}

func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		u, err := h.Auth.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			abortWithError(c, http.StatusUnauthorized, "session_expired")
			return
		case errors.Is(err, auth.ErrInvalidToken):
			abortWithError(c, http.StatusUnauthorized, "unauthorized")
			return
		case err != nil:
			h.internalError(c, "authenticate", err)
			return
		}

		c.Set(userKey, u)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).IsAdmin {
			abortWithError(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

// currentUser is only valid behind requireUser.
func currentUser(c *gin.Context) *store.User {
	return c.MustGet(userKey).(*store.User)
}
