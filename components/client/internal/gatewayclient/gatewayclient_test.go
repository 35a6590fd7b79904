package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body any) *http.Response {
	encoded, _ := json.Marshal(body)
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(encoded))}
}

func TestPresignHappyPath(t *testing.T) {
	userID, err := ids.NewUserID("user-1")
	require.NoError(t, err)

	traceID, err := ids.NewTraceID("trace-1")
	require.NoError(t, err)

	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/presign", req.URL.Path)

		var decoded presignRequestWire
		require.NoError(t, json.NewDecoder(req.Body).Decode(&decoded))
		assert.Equal(t, "user-1", decoded.UserID)

		return jsonResponse(http.StatusOK, presignResponseWire{URL: "https://example.test/put", Key: "uploads/user-1/x", TraceID: "trace-1"}), nil
	})

	client := New("https://gateway.test", transport)

	resp, err := client.Presign(context.Background(), ports.PresignRequest{UserID: userID, FileName: "a.webp", ContentType: "image/webp", TraceID: traceID})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/put", resp.URL)
	assert.Equal(t, "uploads/user-1/x", resp.Key)
}

func TestPresignForbiddenMapsToQuotaKind(t *testing.T) {
	userID, _ := ids.NewUserID("user-1")
	traceID, _ := ids.NewTraceID("trace-1")

	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusForbidden, Body: io.NopCloser(bytes.NewReader([]byte(`{"error":"QUOTA_EXCEEDED"}`)))}, nil
	})

	client := New("https://gateway.test", rt)

	_, err := client.Presign(context.Background(), ports.PresignRequest{UserID: userID, FileName: "a.webp", ContentType: "image/webp", TraceID: traceID})
	require.Error(t, err)
	assert.Equal(t, mzerrors.KindQuota, mzerrors.KindOf(err))
}
