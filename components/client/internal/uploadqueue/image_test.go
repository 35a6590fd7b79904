package uploadqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusCompressed))
	assert.True(t, CanTransition(StatusCompressed, StatusUploading))
	assert.True(t, CanTransition(StatusCompressed, StatusSkipped))
	assert.True(t, CanTransition(StatusFailed, StatusPending))
	assert.False(t, CanTransition(StatusPending, StatusUploading))
	assert.False(t, CanTransition(StatusConfirmed, StatusPending))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusConfirmed))
	assert.True(t, IsTerminal(StatusSkipped))
	assert.False(t, IsTerminal(StatusFailed))
	assert.False(t, IsTerminal(StatusUploaded))
}

func TestImageTransitionRejectsIllegalEdge(t *testing.T) {
	img := &Image{Status: StatusPending}
	err := img.Transition(StatusUploaded)
	require.Error(t, err)
	assert.Equal(t, StatusPending, img.Status)
}

func TestMarkUploadedSetsRequiredFields(t *testing.T) {
	img := &Image{Status: StatusUploading}
	now := time.Now().UTC()

	require.NoError(t, img.MarkUploaded("uploads/u1/123-a.webp", now))
	assert.Equal(t, StatusUploaded, img.Status)
	assert.Equal(t, "uploads/u1/123-a.webp", img.ObjectKey)
	require.NotNil(t, img.UploadedAt)
	assert.Equal(t, now, *img.UploadedAt)
}

func TestPrepareRetryResetsCountAndError(t *testing.T) {
	img := &Image{Status: StatusFailed, RetryCount: 2, Error: "network"}
	require.NoError(t, img.PrepareRetry())
	assert.Equal(t, StatusPending, img.Status)
	assert.Equal(t, 0, img.RetryCount)
	assert.Empty(t, img.Error)
}

func TestMaxRetryAndDelays(t *testing.T) {
	require.Len(t, RetryDelays, MaxRetryCount)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, RetryDelays)
}
