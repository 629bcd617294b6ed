package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgallery/internal/models"
)

func TestDecodePayload(t *testing.T) {
	// Stream fields always arrive as strings.
	values := map[string]interface{}{
		"jobId":      "job-1",
		"userId":     "u1",
		"prompt":     "a castle at dusk",
		"style":      "Hyper-realism",
		"enqueuedAt": "1700000000000",
	}

	var job models.GenerationJob
	require.NoError(t, decodePayload(values, &job))

	assert.Equal(t, "job-1", job.JobID)
	assert.Equal(t, "u1", job.UserID)
	assert.Equal(t, "a castle at dusk", job.Prompt)
	assert.Equal(t, "Hyper-realism", job.Style)
	assert.Equal(t, int64(1700000000000), job.EnqueuedAt)
}

func TestDecodePayloadMissingFields(t *testing.T) {
	var job models.GenerationJob
	require.NoError(t, decodePayload(map[string]interface{}{"jobId": "job-1"}, &job))
	assert.Empty(t, job.UserID)
	assert.Empty(t, job.Prompt)
}

func TestHeadCapsAt512(t *testing.T) {
	big := make([]byte, 1024)
	assert.Len(t, head(big), 512)
	assert.Len(t, head(big[:100]), 100)
}
