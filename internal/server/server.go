// Package server exposes the conversation engine over HTTP: JSON
// endpoints for analysis, sessions, features, and metrics, plus an SSE
// stream of per-stage progress.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crowdpilot/internal/agent"
)

// Server wraps the engine with a gin router.
type Server struct {
	engine *agent.Engine
	log    *zap.Logger
	router *gin.Engine
}

// New builds a server around the given engine.
func New(engine *agent.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{engine: engine, log: log}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.POST("/analysis", s.handleAnalysis)
		v1.POST("/analysis/stream", s.handleAnalysisStream)
		v1.GET("/features", s.handleFeatures)
		v1.GET("/users/high-potential", s.handleHighPotentialUsers)
		v1.POST("/prediction/metrics", s.handlePredictMetrics)

		v1.POST("/sessions", s.handleCreateSession)
		v1.GET("/sessions", s.handleListSessions)
		v1.GET("/sessions/:id", s.handleGetSession)
		v1.DELETE("/sessions/:id", s.handleDeleteSession)
		v1.POST("/sessions/:id/reset", s.handleResetSession)
	}

	s.router = router
	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves HTTP on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
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
	s.log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
