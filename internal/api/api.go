// Package api provides an HTTP JSON API over the memory service.
package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}

// Server is the API server for storing and querying memories.
type Server struct {
	config Config
	svc    *service.Service
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
func NewServer(config Config, svc *service.Service, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("memory service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		svc:    svc,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/memories", s.handleRemember)
	app.Get("/memories/:id", s.handleGetMemory)
	app.Patch("/memories/:id", s.handleUpdateMemory)
	app.Delete("/memories/:id", s.handleDeleteMemory)
	app.Post("/memories/:id/tags", s.handleAddTag)
	app.Post("/memories/:id/metadata", s.handleSetMetadata)
	app.Post("/recall", s.handleRecall)
	app.Get("/search", s.handleSearch)
	app.Get("/recent", s.handleRecent)
	app.Get("/stats", s.handleStats)

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
