package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sentiment-eval/internal/handler"
	"sentiment-eval/internal/middleware"
	"sentiment-eval/internal/service"
)

type Server struct {
	router      *gin.Engine
	dataHandler *handler.DataHandler
	tokens      *service.TokenService
	uploadRoles []string
	logger      *zap.Logger
}

func NewServer(dataHandler *handler.DataHandler, tokens *service.TokenService, uploadRoles []string, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		router:      router,
		dataHandler: dataHandler,
		tokens:      tokens,
		uploadRoles: uploadRoles,
		logger:      logger,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.dataHandler.HealthCheck)

	authRequired := s.router.Group("/api/data")
	authRequired.Use(middleware.AuthMiddleware(s.tokens, s.logger))
	{
		authRequired.POST("/validate", s.dataHandler.ValidateCSV)
		authRequired.GET("/uploads/:id", s.dataHandler.GetUploadLog)

		privileged := authRequired.Group("")
		privileged.Use(middleware.RequireRole(s.uploadRoles...))
		privileged.POST("/upload", s.dataHandler.UploadCSV)
		privileged.GET("/export", s.dataHandler.ExportEvaluations)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("Server exited")
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
