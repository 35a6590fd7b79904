package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputKeyAcceptsWellFormedEnvelope(t *testing.T) {
	key, err := parseOutputKey([]byte(`{"outputKey":"batch-output/job-1/output.jsonl"}`))
	require.NoError(t, err)
	assert.Equal(t, "batch-output/job-1/output.jsonl", key)
}

func TestParseOutputKeyRejectsMalformedJSON(t *testing.T) {
	_, err := parseOutputKey([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseOutputKeyRejectsWrongKeyShape(t *testing.T) {
	_, err := parseOutputKey([]byte(`{"outputKey":"uploads/user-1/img-1"}`))
	assert.Error(t, err)
}
