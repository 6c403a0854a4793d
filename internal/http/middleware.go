package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"moodtrack/internal/auth"
	"moodtrack/internal/domain"
)

const (
	ctxLogger = "moodtrack.logger"
	ctxUser   = "moodtrack.user"

	requestIDHeader = "X-Request-ID"
)

// requestLogger attaches a request scoped logger to the context and logs
// every completed request with its status and latency.
func requestLogger(base logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		entry := base.WithFields(logrus.Fields{
			"http.req.method": c.Request.Method,
			"http.req.path":   c.Request.URL.Path,
			"http.req.id":     id,
		})
		c.Set(ctxLogger, entry)

		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"http.resp.status": c.Writer.Status(),
			"http.latency":     time.Since(start).String(),
		}
		if user, ok := currentUser(c); ok {
			fields["user_id"] = user.ID
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.WithFields(fields).Error("request failed")
		case status >= http.StatusBadRequest:
			entry.WithFields(fields).Info("request rejected")
		default:
			entry.WithFields(fields).Debug("request served")
		}
	}
}

func (h *Handler) logger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(ctxLogger); ok {
		if entry, ok := v.(logrus.FieldLogger); ok {
			return entry
		}
	}
	return h.log
}

// requireUser resolves the request credential into a user, or rejects the
// request. A bearer token in the Authorization header takes precedence over
// the session cookie.
func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.resolver.Resolve(c.Request.Context(), h.credential(c))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				h.rejectUnauthenticated(c)
				return
			}
			h.logger(c).WithError(err).Error("resolve session user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}

		c.Set(ctxUser, user)
		c.Next()
	}
}

func (h *Handler) credential(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(h.cookieName); err == nil {
		return cookie
	}
	return ""
}

func (h *Handler) rejectUnauthenticated(c *gin.Context) {
	if _, err := c.Cookie(h.cookieName); err == nil {
		h.clearSessionCookie(c)
	}
	if h.loginRedirect != "" && acceptsHTML(c.Request) {
		c.Redirect(http.StatusSeeOther, h.loginRedirect)
		c.Abort()
		return
	}
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "Not authenticated"})
}

func acceptsHTML(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(mediaType), "text/html") {
			return true
		}
	}
	return false
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, int(h.tokenTTL/time.Second), "/", "", h.cookieSecure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
}

func currentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

func mustUser(c *gin.Context) *domain.User {
	user, _ := currentUser(c)
	return user
}
