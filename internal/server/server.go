// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hdrp/internal/pipeline"
)

// Runner is what the HTTP layer needs from the pipeline.
type Runner interface {
	Execute(ctx context.Context, req pipeline.ExecuteRequest) pipeline.ExecuteResponse
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	runner Runner
	log    *zap.Logger
	engine *gin.Engine
}

// New creates the server and registers routes.
func New(runner Runner, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{runner: runner, log: log, engine: engine}
	engine.POST("/execute", s.handleExecute)
	engine.GET("/healthz", s.handleHealthz)
	return s
}

// Handler returns the http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}

// handleExecute runs one research request. Logical failures are reported
// in the response body with HTTP 200; only a malformed request body is a
// transport error.
func (s *Server) handleExecute(c *gin.Context) {
	var req pipeline.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	resp := s.runner.Execute(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
