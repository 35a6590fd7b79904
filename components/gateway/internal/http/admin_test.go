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

func TestAdminControlRoundTrip(t *testing.T) {
	h, _, _ := newTestHandler(t)
	app := newTestApp(h)

	getResp, err := app.Test(newRawGet(t, "/admin/control"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, getResp.StatusCode)

	rec := postJSON(t, app, "/admin/control", adminControlRequest{Action: "activate", Reason: "incident"})
	require.Equal(t, fiber.StatusOK, rec.Code)

	var resp adminControlResponse
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.EmergencyStop)
	assert.Equal(t, "incident", resp.Reason)

	rec = postJSON(t, app, "/admin/control", adminControlRequest{Action: "deactivate"})
	require.Equal(t, fiber.StatusOK, rec.Code)
	decodeJSON(t, rec, &resp)
	assert.False(t, resp.EmergencyStop)
}

func TestAdminDeleteDataTransactionsAndImages(t *testing.T) {
	h, objects, txStore := newTestHandler(t)
	app := newTestApp(h)

	userID := mustUserID(t, "device-abc")
	amount, err := money.New(1000)
	require.NoError(t, err)

	id, err := ids.NewTransactionID("tx-1")
	require.NoError(t, err)

	_, err = txStore.CreateIfAbsent(newCtx(), &transaction.Transaction{
		ID: id, UserID: userID, Amount: amount, Type: transaction.TypeExpense,
		Date: "2026-02-01", Status: transaction.StatusConfirmed, Version: 1,
	})
	require.NoError(t, err)

	objects.objects["uploads/device-abc/1700000000000-a.jpg"] = []byte("img")

	rec := postJSON(t, app, "/admin/delete-data", adminDeleteDataRequest{
		UserID: "device-abc", Types: []string{"transactions", "images"},
	})
	require.Equal(t, fiber.StatusOK, rec.Code)

	var resp adminDeleteDataResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, int64(1), resp.Deleted["transactions"])
	assert.Equal(t, int64(1), resp.Deleted["images"])
	assert.Contains(t, objects.deleted, "uploads/device-abc/1700000000000-a.jpg")
}
