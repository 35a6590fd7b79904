package bootstrap

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/yorutsuke/yorutsuke/internal/platform/mlauncher"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// Server is the gateway's single Fiber app, run under mlauncher.Launcher.
type Server struct {
	app           *fiber.App
	serverAddress string
	logger        mlog.Logger
}

// NewServer builds a Server bound to the routes already mounted on app.
func NewServer(cfg *Config, app *fiber.App, logger mlog.Logger) *Server {
	return &Server{app: app, serverAddress: cfg.ServerAddress, logger: logger}
}

// Run blocks serving HTTP until the process is shut down.
func (s *Server) Run(*mlauncher.Launcher) error {
	s.logger.Infof("bootstrap: gateway listening on %s", s.serverAddress)

	if err := s.app.Listen(s.serverAddress); err != nil {
		return fmt.Errorf("bootstrap: serve http: %w", err)
	}

	return nil
}
