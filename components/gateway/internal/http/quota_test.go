package http

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
)

func TestQuotaReportsUsedAndLimit(t *testing.T) {
	h, _, _ := newTestHandler(t)
	app := newTestApp(h)

	for i := 0; i < 5; i++ {
		rec := postJSON(t, app, "/presign", presignRequest{
			UserID: "device-abc", FileName: "receipt.jpg", ContentType: "image/jpeg",
		})
		require.Equal(t, fiber.StatusOK, rec.Code)
	}

	rec := postJSON(t, app, "/quota", quotaRequest{UserID: "device-abc"})
	require.Equal(t, fiber.StatusOK, rec.Code)

	var resp quotaResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, int64(5), resp.Used)
	assert.Equal(t, 30, resp.Limit)
	assert.Equal(t, 25, resp.Remaining)
	assert.Equal(t, "guest", resp.Tier)
}

func TestQuotaReportsGuestDataExpiry(t *testing.T) {
	h, _, txStore := newTestHandler(t)
	app := newTestApp(h)

	userID := mustUserID(t, "device-abc")
	amount, err := money.New(500)
	require.NoError(t, err)

	ttl := h.Clock.Now().AddDate(0, 0, 3).Unix()

	id, err := ids.NewTransactionID("tx-guest-1")
	require.NoError(t, err)

	_, err = txStore.CreateIfAbsent(newCtx(), &transaction.Transaction{
		ID: id, UserID: userID, Amount: amount, Type: transaction.TypeExpense,
		Date: "2026-02-01", Status: transaction.StatusConfirmed, Version: 1, TTL: &ttl,
	})
	require.NoError(t, err)

	rec := postJSON(t, app, "/quota", quotaRequest{UserID: "device-abc"})
	require.Equal(t, fiber.StatusOK, rec.Code)

	var resp quotaResponse
	decodeJSON(t, rec, &resp)
	require.NotNil(t, resp.Guest)
	assert.Equal(t, 3, resp.Guest.DaysUntilExpiration)
}
