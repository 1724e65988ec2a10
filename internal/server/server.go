// Package server is the HTTP edge of the attendance system. Handlers stay
// thin: bind, validate, call the service, map errors. All heavy work runs on
// the service's worker pool.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"go-attendance-server/config"
	"go-attendance-server/internal/service"
	"go-attendance-server/logger"
)

// Server holds the HTTP edge's dependencies.
type Server struct {
	svc    *service.Service
	cfg    *config.Config
	logger *logger.BufferedLogger
	app    *echo.Echo
}

// New builds the server and registers its routes.
func New(svc *service.Service, cfg *config.Config, bl *logger.BufferedLogger) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: bl,
		app:    echo.New(),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Validator = &requestValidator{validate: validator.New()}

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.Recover())
	s.app.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.cfg.Server.MaxUploadSizeMB)))

	api := s.app.Group("/api")
	api.GET("/health", s.health)
	api.GET("/models/status", s.modelStatus)
	api.POST("/cache/invalidate", s.invalidateCache)

	att := api.Group("/attendance")
	att.POST("/process", s.processAttendance)
	att.POST("/submit", s.submitAttendance)
	att.GET("/session/:id", s.sessionData)
	att.GET("/session/:id/image/:index", s.annotatedImage)

	s.app.GET("/ws/progress/:id", s.progressSocket)
}

// Start blocks serving HTTP on the configured port.
func (s *Server) Start() error {
	log.Printf("🚀 Attendance server listening on %s", s.cfg.Server.Port)
	return s.app.Start(s.cfg.Server.Port)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// Stop shuts down with the default drain timeout.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
