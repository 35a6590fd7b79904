package http

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuePermitDefaultsValidDays(t *testing.T) {
	h, _, _ := newTestHandler(t)
	app := newTestApp(h)

	rec := postJSON(t, app, "/permit", permitRequest{UserID: "device-abc"})
	require.Equal(t, fiber.StatusOK, rec.Code)

	var resp permitResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "device-abc", resp.Permit.UserID)
	assert.Equal(t, "guest", resp.Permit.Tier)
	assert.NotEmpty(t, resp.Permit.Signature)
}

func TestIssuePermitRejectsNonPositiveValidDays(t *testing.T) {
	h, _, _ := newTestHandler(t)
	app := newTestApp(h)

	negative := -1
	rec := postJSON(t, app, "/permit", permitRequest{UserID: "device-abc", ValidDays: &negative})
	assert.Equal(t, fiber.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_PARAM")
}

func TestIssuePermitRejectsExplicitZeroValidDays(t *testing.T) {
	h, _, _ := newTestHandler(t)
	app := newTestApp(h)

	zero := 0
	rec := postJSON(t, app, "/permit", permitRequest{UserID: "device-abc", ValidDays: &zero})
	assert.Equal(t, fiber.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_PARAM")
}
