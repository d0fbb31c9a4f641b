// Package httpapi exposes the RAG pipeline over a small JSON API built on gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/libris/internal/core/ports/driving"
	"github.com/custodia-labs/libris/internal/logger"
)

// ErrMissingRAGService is returned when the RAG service is not provided.
var ErrMissingRAGService = errors.New("httpapi: rag service is required")

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	RAG   driving.RAGService
	Tasks driving.TaskService
}

// Server serves the /api/v1 routes.
type Server struct {
	ports  *Ports
	engine *gin.Engine
}

// NewServer builds the router. RAG is required; Tasks is optional.
func NewServer(ports *Ports) (*Server, error) {
	if ports == nil || ports.RAG == nil {
		return nil, ErrMissingRAGService
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	s := &Server{ports: ports, engine: r}

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.PUT("/:id", s.ingest)
			documents.DELETE("/:id", s.deleteDocument)
			documents.GET("/:id/count", s.countDocument)
		}
		v1.GET("/count", s.countAll)
		v1.POST("/retrieve", s.retrieve)
		v1.POST("/answer", s.answer)
		v1.POST("/chat", s.chat)
		v1.DELETE("/sessions/:id", s.endSession)
		v1.POST("/tasks", s.runTask)
		v1.GET("/status", s.status)
	}

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// requestLogger logs each request at debug level through the shared logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
