package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// HealthChecker is satisfied by every storage backend
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
}

type Option func(s *Server)

// WithWebhook accepts Telegram updates on POST path and forwards them to updates.
// Once consumerDone is closed nobody reads updates anymore and requests get 503.
func WithWebhook(path string, updates chan<- tgbotapi.Update, consumerDone <-chan struct{}) Option {
	return func(s *Server) {
		s.engine.POST(path, webhookHandler(updates, consumerDone, s.logger))
	}
}

func New(addr string, health HealthChecker, gatherer prometheus.Gatherer, logger *zap.Logger, opts ...Option) *Server {
	engine := gin.New()
	engine.Use(requestLogger(logger), gin.Recovery())

	s := &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	engine.GET("/health", healthHandler(health))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func healthHandler(health HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := health.HealthCheck(c.Request.Context()); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.String(http.StatusOK, "OK")
	}
}

func webhookHandler(updates chan<- tgbotapi.Update, consumerDone <-chan struct{}, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			logger.Warn("Failed to decode webhook update", zap.Error(err))
			c.Status(http.StatusBadRequest)
			return
		}

		select {
		case updates <- update:
			c.Status(http.StatusOK)
		case <-consumerDone:
			c.Status(http.StatusServiceUnavailable)
		case <-c.Request.Context().Done():
			c.Status(http.StatusServiceUnavailable)
		}
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
