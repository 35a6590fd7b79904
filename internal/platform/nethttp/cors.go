package nethttp

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/yorutsuke/yorutsuke/internal/platform/mconfig"
)

const (
	defaultAllowOrigin  = "*"
	defaultAllowMethods = "POST, GET, OPTIONS, PUT, DELETE, PATCH"
	defaultAllowHeaders = "Accept, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID, Authorization"
)

// WithCORS builds the CORS middleware, configured from environment
// variables the same way the teacher's WithCORS reads them.
func WithCORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     mconfig.GetOrDefault("ACCESS_CONTROL_ALLOW_ORIGIN", defaultAllowOrigin),
		AllowMethods:     mconfig.GetOrDefault("ACCESS_CONTROL_ALLOW_METHODS", defaultAllowMethods),
		AllowHeaders:     mconfig.GetOrDefault("ACCESS_CONTROL_ALLOW_HEADERS", defaultAllowHeaders),
		AllowCredentials: true,
	})
}
