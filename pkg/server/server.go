// Package server is the HTTP side of the bot: health, info, metrics and the
// Telegram webhook.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/config"
	"github.com/denysvitali/nextcloud-files-bot/pkg/metrics"
	"github.com/denysvitali/nextcloud-files-bot/pkg/telemetry"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler accepts updates delivered to the webhook.
type UpdateHandler interface {
	HandleUpdate(update tgbotapi.Update)
}

// SessionCounter reports the number of open dialogs.
type SessionCounter interface {
	Len() int
}

// UserCounter reports the number of stored users.
type UserCounter interface {
	Count() (int, error)
}

// Deps are the bot components the server reports on or feeds.
type Deps struct {
	Updates  UpdateHandler
	Sessions SessionCounter
	Users    UserCounter
}

// Server represents the HTTP server
type Server struct {
	config    *config.Config
	logger    *logrus.Logger
	deps      Deps
	engine    *gin.Engine
	server    *http.Server
	startTime time.Time
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps, logger *logrus.Logger) *Server {
	// Set gin mode based on log level
	if logger.Level == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(ginLogger(logger))

	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(telemetry.ServiceName))
	}

	server := &Server{
		config:    cfg,
		logger:    logger,
		deps:      deps,
		engine:    engine,
		startTime: time.Now(),
	}

	server.setupRoutes()

	return server
}

// Start serves until Shutdown is called. It returns nil after a graceful
// shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.config.Server.Port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Engine returns the gin engine for testing purposes
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/alive", s.handleAlive)
	s.engine.GET("/server_info", s.handleServerInfo)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	if s.config.Telegram.Webhook.Enabled {
		s.engine.POST(s.config.Telegram.Webhook.Path, s.handleWebhook)
	}
}

func (s *Server) handleAlive(c *gin.Context) {
	if s.deps.Updates == nil {
		c.JSON(http.StatusOK, gin.H{"status": "not initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleServerInfo(c *gin.Context) {
	resp := models.ServerInfoResponse{
		StartTime: s.startTime,
		Uptime:    time.Since(s.startTime).Seconds(),
		System:    s.systemStats(filepath.Dir(s.config.Storage.UsersDB)),
	}
	if s.deps.Sessions != nil {
		resp.ActiveSessions = s.deps.Sessions.Len()
	}
	if s.deps.Users != nil {
		n, err := s.deps.Users.Count()
		if err != nil {
			s.logger.Warnf("Failed to count users: %v", err)
		}
		resp.KnownUsers = n
	}

	s.logger.Debugf("Server info: uptime=%.2fs, sessions=%d", resp.Uptime, resp.ActiveSessions)
	c.JSON(http.StatusOK, resp)
}

// handleWebhook accepts an update pushed by Telegram. Updates are queued and
// acknowledged at once so Telegram does not redeliver them.
func (s *Server) handleWebhook(c *gin.Context) {
	ctx, span := otel.Tracer(telemetry.ServiceName).Start(c.Request.Context(), "handle_webhook")
	defer span.End()

	secret := s.config.Telegram.Webhook.Secret
	if secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(secretHeader)), []byte(secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.Int("telegram.update_id", update.UpdateID))

	if s.config.Telemetry.Enabled {
		telemetry.ReportJSON(ctx, s.logger, "telegram_update", update)
	}

	if s.deps.Updates == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot not running"})
		return
	}
	s.deps.Updates.HandleUpdate(update)
	c.Status(http.StatusOK)
}

// ginLogger creates a gin logger middleware using logrus
func ginLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		statusCode := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"status":  statusCode,
			"method":  c.Request.Method,
			"path":    path,
			"ip":      c.ClientIP(),
			"latency": time.Since(start),
		})

		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Debug("Request completed")
		}
	}
}
