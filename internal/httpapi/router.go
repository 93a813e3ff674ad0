// Package httpapi fronts the out-of-scope HTTP collaborators named in the
// external interfaces section: health/metrics, the subscriber and admin
// WebSocket upgrade routes, the admin REST fallback, and the map-tile proxy.
// It never touches core engine state directly except through Engine.Submit
// and Hub.ServeSubscriber/ServeAdmin.
package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/streamspace/statehub/internal/audit"
	"github.com/streamspace/statehub/internal/engine"
	apperrors "github.com/streamspace/statehub/internal/errors"
	"github.com/streamspace/statehub/internal/hub"
	"github.com/streamspace/statehub/internal/logger"
	"github.com/streamspace/statehub/internal/middleware"
	"github.com/streamspace/statehub/internal/ratelimit"
	"github.com/streamspace/statehub/internal/validator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Deps bundles the components the router wires together; httpapi owns none
// of this state, it only dispatches HTTP/WS requests into it.
type Deps struct {
	Engine      *engine.Engine
	Hub         *hub.Hub
	Auth        *AdminAuth
	AuditLog    *audit.Log
	RateLimiter *ratelimit.Limiter
	MapTileURL  string
	StartedAt   time.Time
}

// NewRouter builds the gin engine for statehub, matching the existing
// codebase's middleware chain shape (Recovery + request-id + structured
// logger + security headers), trimmed to what a websocket-fronting service
// needs — no multi-tenant org/session middleware.
func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(zerologRequestLogger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.GzipWithExclusions(middleware.DefaultCompression, []string{"/ws/subscriber", "/ws/admin"}))
	r.Use(middleware.DefaultSizeLimiter())
	r.Use(middleware.Timeout(middleware.TimeoutConfig{
		Timeout:       30 * time.Second,
		ErrorMessage:  "request timeout",
		ExcludedPaths: []string{"/ws/subscriber", "/ws/admin"},
	}))

	r.GET("/health", healthHandler(d))
	r.GET("/metrics", metricsHandler(d))

	r.GET("/ws/subscriber", func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WebSocket().Warn().Err(err).Msg("subscriber upgrade failed")
			return
		}
		d.Hub.ServeSubscriber(ws)
	})

	adminWS := r.Group("/ws/admin")
	if d.Auth != nil {
		adminWS.Use(d.Auth.Middleware())
	}
	adminWS.GET("", func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Admin().Warn().Err(err).Msg("admin upgrade failed")
			return
		}
		d.Hub.ServeAdmin(ws)
	})

	if d.MapTileURL != "" {
		proxy, err := newMapTileProxy(d.MapTileURL)
		if err != nil {
			return nil, err
		}
		r.Any("/map/*path", proxy.handle)
	}

	admin := r.Group("/admin")
	admin.POST("/login", adminLoginHandler(d))
	adminProtected := admin.Group("")
	if d.Auth != nil {
		adminProtected.Use(d.Auth.Middleware())
	}
	if d.RateLimiter != nil {
		adminProtected.Use(adminRateLimit(d.RateLimiter))
	}
	adminProtected.POST("/marks", adminMarkSetHandler(d))
	adminProtected.DELETE("/marks/:playerId", adminMarkClearHandler(d))
	adminProtected.DELETE("/marks", adminMarkClearAllHandler(d))
	adminProtected.PUT("/same-server-filter", adminSameServerFilterHandler(d))
	adminProtected.GET("/audit", adminAuditHandler(d))

	return r, nil
}

// zerologRequestLogger mirrors the shape of the generic structured-request
// logger middleware (request id, method, path, status, duration, client ip)
// but writes through the zerolog component logger this codebase's ambient
// stack decision settled on, instead of the stdlib log package.
func zerologRequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()

		ev := logger.HTTP().Info()
		if status >= 500 {
			ev = logger.HTTP().Error()
		} else if status >= 400 {
			ev = logger.HTTP().Warn()
		}
		ev.Str("request_id", middleware.GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", dur).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

func healthHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(d.StartedAt).String(),
		})
	}
}

func metricsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"uptimeSeconds": time.Since(d.StartedAt).Seconds(),
		})
	}
}

type loginRequest struct {
	Credential string `json:"credential" binding:"required"`
}

func adminLoginHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Auth == nil {
			c.JSON(http.StatusServiceUnavailable, apperrors.ServiceUnavailable("admin auth").ToResponse())
			return
		}
		var req loginRequest
		if !validator.BindAndValidate(c, &req) {
			return
		}
		token, err := d.Auth.Login(req.Credential)
		if err != nil {
			appErr := err.(*apperrors.AppError)
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func adminRateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), "admin:"+c.ClientIP())
		if err != nil || !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apperrors.New(apperrors.ErrCodeRateLimitExceeded, "too many admin requests").ToResponse())
			return
		}
		c.Next()
	}
}

// Color uses a "validate" tag rather than "binding": gin's own bind step
// runs against a separate validator.Validate instance that has never seen
// the "hexcolor" tag registered below, so custom tags are checked only in
// the second pass BindAndValidate runs against this package's instance.
type markSetRequest struct {
	PlayerID string `json:"playerId" binding:"required,min=1,max=64"`
	Team     string `json:"team" binding:"required,min=1,max=32"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	Label    string `json:"label" binding:"omitempty,max=64"`
}

func adminMarkSetHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req markSetRequest
		if !validator.BindAndValidate(c, &req) {
			return
		}
		d.Engine.Submit(engine.AdminCommandCmd{
			Action:   "command_player_mark_set",
			PlayerID: req.PlayerID,
			Team:     req.Team,
			Color:    req.Color,
			Label:    req.Label,
		})
		recordAudit(c, d, "command_player_mark_set", req.PlayerID, req.Team)
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
	}
}

func adminMarkClearHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("playerId")
		d.Engine.Submit(engine.AdminCommandCmd{Action: "command_player_mark_clear", PlayerID: playerID})
		recordAudit(c, d, "command_player_mark_clear", playerID, "")
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
	}
}

func adminMarkClearAllHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		d.Engine.Submit(engine.AdminCommandCmd{Action: "command_player_mark_clear_all"})
		recordAudit(c, d, "command_player_mark_clear_all", "", "")
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
	}
}

type sameServerFilterRequest struct {
	Enabled bool `json:"enabled"`
}

func adminSameServerFilterHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sameServerFilterRequest
		if !validator.BindAndValidate(c, &req) {
			return
		}
		d.Engine.Submit(engine.AdminCommandCmd{Action: "command_same_server_filter_set", Enabled: req.Enabled})
		recordAudit(c, d, "command_same_server_filter_set", "", fmt.Sprintf("enabled=%t", req.Enabled))
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
	}
}

func adminAuditHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.AuditLog == nil {
			c.JSON(http.StatusOK, gin.H{"entries": []audit.Entry{}})
			return
		}
		entries, err := d.AuditLog.Recent(c.Request.Context(), 100)
		if err != nil {
			appErr := apperrors.DatabaseError(err)
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func recordAudit(c *gin.Context, d Deps, action, playerID, detail string) {
	if d.AuditLog == nil {
		return
	}
	if err := d.AuditLog.Record(c.Request.Context(), audit.Entry{
		ConnID:   "rest:" + c.ClientIP(),
		Action:   action,
		PlayerID: playerID,
		Detail:   detail,
	}); err != nil {
		logger.Admin().Warn().Err(err).Str("action", action).Msg("failed to record admin audit entry")
	}
}
