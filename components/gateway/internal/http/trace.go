package http

import "github.com/gofiber/fiber/v2"

// headerTraceID is spec.md §4.7's cross-boundary trace header. Handlers
// accept TraceId in the body or the header, header wins, and every
// response echoes it back.
const headerTraceID = "X-Trace-Id"

// resolveTraceID implements spec.md §4.7's precedence rule and writes the
// resolved id back onto the response.
func resolveTraceID(c *fiber.Ctx, bodyTraceID string) string {
	traceID := c.Get(headerTraceID)
	if traceID == "" {
		traceID = bodyTraceID
	}

	c.Set(headerTraceID, traceID)

	return traceID
}
