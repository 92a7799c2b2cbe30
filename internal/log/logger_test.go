package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The logger is configured once per process, so every test shares this
// buffer and resets it before logging.
var logBuf bytes.Buffer

func configureOnce() {
	Configure(Config{Level: "debug", Output: &logBuf, Service: "uvd-test"})
}

func lastEntry(t *testing.T) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
	return entry
}

func TestLoggerAttachesServiceAndComponent(t *testing.T) {
	configureOnce()
	logBuf.Reset()

	l := WithComponent("queue")
	l.Info().Str("event", "queue.enqueue").Msg("job enqueued")

	entry := lastEntry(t)
	assert.Equal(t, "uvd-test", entry["service"])
	assert.Equal(t, "queue", entry["component"])
	assert.Equal(t, "queue.enqueue", entry["event"])
	assert.Equal(t, "job enqueued", entry["message"])
}

func TestWithJobAddsJobID(t *testing.T) {
	configureOnce()
	logBuf.Reset()

	l := WithJob("executor", "job-123")
	l.Warn().Msg("retrying")

	entry := lastEntry(t)
	assert.Equal(t, "executor", entry["component"])
	assert.Equal(t, "job-123", entry["job_id"])
}

func TestConfigureIsIdempotent(t *testing.T) {
	configureOnce()
	// A second Configure must not replace the active output or service.
	Configure(Config{Service: "other"})
	logBuf.Reset()

	l := Base()
	l.Info().Msg("still the first configuration")

	entry := lastEntry(t)
	assert.Equal(t, "uvd-test", entry["service"])
}
