package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/margo-labs/margo/internal/core/domain"
	"github.com/margo-labs/margo/internal/core/ports/driven"
	"github.com/margo-labs/margo/internal/core/ports/driving"
	"github.com/margo-labs/margo/internal/logger"
)

// Server is the HTTP surface over the core services.
type Server struct {
	chat      driving.ChatService
	assistant driving.AssistantService
	settings  driving.SettingsService
	library   driving.LibraryService
	renderer  driven.PageRenderer

	engine *gin.Engine
	http   *http.Server
}

// NewServer creates the HTTP server and registers all routes. The
// library service and renderer may be nil; their endpoints then report
// service unavailable.
func NewServer(
	chat driving.ChatService,
	assistant driving.AssistantService,
	settings driving.SettingsService,
	library driving.LibraryService,
	renderer driven.PageRenderer,
) *Server {
	if !logger.IsVerbose() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		chat:      chat,
		assistant: assistant,
		settings:  settings,
		library:   library,
		renderer:  renderer,
		engine:    gin.New(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(corsMiddleware())
	s.registerRoutes()

	return s
}

// registerRoutes wires the endpoint table.
func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/providers", s.handleProviders)
	s.engine.GET("/current-model", s.handleCurrentModel)
	s.engine.POST("/set-model", s.handleSetModel)

	s.engine.POST("/ask", s.handleAsk)
	s.engine.POST("/edit-message", s.handleEditMessage)
	s.engine.POST("/delete-message", s.handleDeleteMessage)
	s.engine.POST("/delete-annotation", s.handleDeleteAnnotation)

	s.engine.POST("/load-chat", s.handleLoadChat)
	s.engine.POST("/save-chat", s.handleSaveChat)

	s.engine.POST("/create-note", s.handleCreateNote)
	s.engine.POST("/update-note", s.handleUpdateNote)
	s.engine.POST("/delete-note", s.handleDeleteNote)

	s.engine.POST("/extract-page-image", s.handleExtractPageImage)
	s.engine.GET("/recents", s.handleRecents)
}

// corsMiddleware allows the local frontend, which loads from a file or
// dev-server origin, to call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Run starts the server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on http://%s", addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// Handler exposes the routing tree, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotCached):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAssistantUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.Warn("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
