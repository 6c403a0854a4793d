package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"moodtrack/internal/auth"
	"moodtrack/internal/service"
)

// Config collects the collaborators and session settings of a Handler.
type Config struct {
	Users    service.UserService
	Entries  service.EntryService
	Exports  service.ExportService
	Codec    *auth.TokenCodec
	Resolver *auth.Resolver

	TokenTTL      time.Duration
	CookieName    string
	CookieSecure  bool
	LoginRedirect string

	Logger logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	entries  service.EntryService
	exports  service.ExportService
	codec    *auth.TokenCodec
	resolver *auth.Resolver

	tokenTTL      time.Duration
	cookieName    string
	cookieSecure  bool
	loginRedirect string

	log logrus.FieldLogger
}

func NewHandler(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		users:         cfg.Users,
		entries:       cfg.Entries,
		exports:       cfg.Exports,
		codec:         cfg.Codec,
		resolver:      cfg.Resolver,
		tokenTTL:      cfg.TokenTTL,
		cookieName:    cfg.CookieName,
		cookieSecure:  cfg.CookieSecure,
		loginRedirect: cfg.LoginRedirect,
		log:           log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.log), corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/signup", h.signup)
		api.POST("/login", h.login)
		api.POST("/logout", h.logout)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}

	private := api.Group("", h.requireUser())
	{
		private.GET("/me", h.me)

		private.POST("/entries", h.createEntry)
		private.GET("/entries", h.listEntries)
		private.GET("/entries/:id", h.getEntry)
		private.PUT("/entries/:id", h.updateEntry)
		private.DELETE("/entries/:id", h.deleteEntry)

		private.POST("/exports", h.createExport)
		private.GET("/exports", h.listExports)
		private.DELETE("/exports", h.purgeExports)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "WWW-Authenticate")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
