package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func terminalJob(id string, status model.JobStatus) *model.Job {
	return &model.Job{
		ID:         id,
		SourceURL:  "https://example.com/watch?v=" + id,
		Title:      "Video " + id,
		Mode:       model.ModeVideo,
		Status:     status,
		OutputPath: "/downloads/video-" + id + ".mp4",
		FinishedAt: time.Now(),
	}
}

func TestStoreRecordAndList(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Record(terminalJob("job-1", model.StatusCompleted)))

	failed := terminalJob("job-2", model.StatusFailed)
	failed.RetryCount = 10
	failed.LastError = model.NewJobError(model.ErrNetwork, "connection reset")
	require.NoError(t, store.Record(failed))

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "job-2", entries[0].JobID)
	assert.Equal(t, model.StatusFailed, entries[0].Status)
	assert.Equal(t, 10, entries[0].RetryCount)
	assert.Equal(t, "NetworkError", entries[0].ErrorKind)
	assert.Equal(t, "connection reset", entries[0].Error)

	assert.Equal(t, "job-1", entries[1].JobID)
	assert.Equal(t, model.StatusCompleted, entries[1].Status)
	assert.Equal(t, "/downloads/video-job-1.mp4", entries[1].OutputPath)
}

func TestStoreIgnoresNonTerminalJobs(t *testing.T) {
	store := openTestStore(t)

	for _, status := range []model.JobStatus{
		model.StatusQueued, model.StatusFetching, model.StatusDownloading, model.StatusPostprocessing,
	} {
		require.NoError(t, store.Record(terminalJob("job-x", status)))
	}

	entries, err := store.List(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreListLimit(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(terminalJob(string(rune('a'+i)), model.StatusCompleted)))
	}

	entries, err := store.List(3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestStoreStatsAndClear(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Record(terminalJob("a", model.StatusCompleted)))
	require.NoError(t, store.Record(terminalJob("b", model.StatusCompleted)))
	require.NoError(t, store.Record(terminalJob("c", model.StatusFailed)))
	require.NoError(t, store.Record(terminalJob("d", model.StatusCancelled)))

	completed, failed, cancelled, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), completed)
	assert.Equal(t, int64(1), failed)
	assert.Equal(t, int64(1), cancelled)

	removed, err := store.Clear()
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)

	entries, err := store.List(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(terminalJob("job-1", model.StatusCompleted)))
}
