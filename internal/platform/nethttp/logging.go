package nethttp

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// requestInfo captures the access-log fields for one request, adapted from
// the teacher's RequestInfo.
type requestInfo struct {
	Method        string
	URI           string
	RemoteAddress string
	UserAgent     string
	CorrelationID string
	Protocol      string
	Status        int
	Date          time.Time
	Duration      time.Duration
}

func newRequestInfo(c *fiber.Ctx) *requestInfo {
	return &requestInfo{
		Method:        c.Method(),
		URI:           c.OriginalURL(),
		UserAgent:     c.Get(headerUserAgent),
		CorrelationID: c.Get(headerCorrelationID),
		RemoteAddress: c.IP(),
		Protocol:      c.Protocol(),
		Date:          time.Now().UTC(),
	}
}

// clfString renders a Common Log Format-ish line.
func (r *requestInfo) clfString() string {
	return strings.Join([]string{
		r.RemoteAddress,
		`"` + r.Method,
		r.URI,
		`"` + r.Protocol,
		strconv.Itoa(r.Status),
		r.UserAgent,
		r.CorrelationID,
	}, " ")
}

// WithHTTPLogging logs one access line per request and carries the
// per-request logger (with correlation id attached) on the Fiber user
// context, retrievable downstream via mlog.FromContext.
func WithHTTPLogging(logger mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}

		info := newRequestInfo(c)

		reqLogger := logger.WithFields(headerCorrelationID, info.CorrelationID)
		c.SetUserContext(mlog.WithContext(c.UserContext(), reqLogger))

		err := c.Next()

		info.Duration = time.Now().UTC().Sub(info.Date)
		info.Status = c.Response().StatusCode()

		reqLogger.Infof("%s duration=%s", info.clfString(), info.Duration)

		return err
	}
}
