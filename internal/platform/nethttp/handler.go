package nethttp

import "github.com/gofiber/fiber/v2"

// Ping answers a liveness probe.
func Ping(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).SendString("pong")
}

// Version answers the running binary's build version.
func Version(version string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString(version)
	}
}

// Welcome answers a short description of the running service.
func Welcome(service, description string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"service":     service,
			"description": description,
		})
	}
}
