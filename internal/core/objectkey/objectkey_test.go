package objectkey_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/objectkey"
)

func TestParseUploadRoundTripsWithUploadWithName(t *testing.T) {
	userID, err := ids.NewUserID("user-1")
	require.NoError(t, err)

	key := objectkey.UploadWithName(userID, 1700000000000, "receipt.webp")

	gotUser, gotImage, err := objectkey.ParseUpload(key)
	require.NoError(t, err)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, "1700000000000-receipt.webp", gotImage.String())
}

func TestParseUploadRejectsWrongPrefix(t *testing.T) {
	_, _, err := objectkey.ParseUpload("processed/2026-02-01/user-1/img-1")
	assert.Error(t, err)
}

func TestParseUploadRejectsMalformedKey(t *testing.T) {
	_, _, err := objectkey.ParseUpload("uploads/only-one-segment")
	assert.Error(t, err)
}

func TestParseBatchOutputRoundTripsWithBatchOutput(t *testing.T) {
	jobID, err := ids.NewJobID("job-42")
	require.NoError(t, err)

	got, err := objectkey.ParseBatchOutput(objectkey.BatchOutput(jobID))
	require.NoError(t, err)
	assert.Equal(t, jobID, got)
}

func TestParseBatchOutputRejectsWrongShape(t *testing.T) {
	_, err := objectkey.ParseBatchOutput("uploads/user-1/img-1")
	assert.Error(t, err)
}
