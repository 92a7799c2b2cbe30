package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

func enqueueN(t *testing.T, q *Queue, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := q.Enqueue(&model.Job{SourceURL: "https://example.com/v", Mode: model.ModeVideo})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestQueueEnqueueAssignsIDAndOrder(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 3)

	snapshot := q.Snapshot()
	require.Len(t, snapshot, 3)
	for i, job := range snapshot {
		assert.Equal(t, ids[i], job.ID)
		assert.Equal(t, model.StatusQueued, job.Status)
		assert.False(t, job.CreatedAt.IsZero())
	}
}

func TestQueueNextQueuedIsFIFO(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 3)

	next := q.nextQueued()
	require.NotNil(t, next)
	assert.Equal(t, ids[0], next.ID)

	// A terminal head moves the cursor to the next queued job.
	q.setStatus(ids[0], model.StatusFetching, nil)
	q.setStatus(ids[0], model.StatusCancelled, nil)
	next = q.nextQueued()
	require.NotNil(t, next)
	assert.Equal(t, ids[1], next.ID)
}

func TestQueueClaimTransitionsQueuedOnly(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 1)

	require.True(t, q.claim(ids[0]))
	job, ok := q.Get(ids[0])
	require.True(t, ok)
	assert.Equal(t, model.StatusFetching, job.Status)
	assert.False(t, job.StartedAt.IsZero())

	// A job that is no longer Queued cannot be claimed again.
	assert.False(t, q.claim(ids[0]))
	assert.False(t, q.claim("job-missing"))
}

func TestQueueClaimFailsAfterRemove(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 1)

	require.NoError(t, q.Remove(ids[0]))
	assert.False(t, q.claim(ids[0]))
}

func TestQueueRemoveRejectsRunningJob(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 1)
	q.setStatus(ids[0], model.StatusDownloading, nil)

	err := q.Remove(ids[0])
	require.Error(t, err)
	assert.Equal(t, model.ErrInvalidState, model.KindOf(err))

	// Still present.
	_, ok := q.Get(ids[0])
	assert.True(t, ok)
}

func TestQueueRemoveQueuedAndTerminal(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 2)

	require.NoError(t, q.Remove(ids[0]))
	q.setStatus(ids[1], model.StatusFailed, nil)
	require.NoError(t, q.Remove(ids[1]))

	assert.Empty(t, q.Snapshot())
	assert.Error(t, q.Remove("job-missing"))
}

func TestQueueClearFinished(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 4)
	q.setStatus(ids[0], model.StatusCompleted, nil)
	q.setStatus(ids[1], model.StatusFailed, nil)
	q.setStatus(ids[2], model.StatusDownloading, nil)

	assert.Equal(t, 2, q.ClearFinished())

	snapshot := q.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, ids[2], snapshot[0].ID)
	assert.Equal(t, ids[3], snapshot[1].ID)
}

func TestQueueDiscardQueuedKeepsRunningAndTerminal(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 3)
	q.setStatus(ids[0], model.StatusDownloading, nil)
	q.setStatus(ids[1], model.StatusCompleted, nil)

	assert.Equal(t, 1, q.DiscardQueued())

	snapshot := q.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, ids[0], snapshot[0].ID)
	assert.Equal(t, ids[1], snapshot[1].ID)
}

func TestQueueRemoveAllSparesRunningJob(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 3)
	q.setStatus(ids[1], model.StatusDownloading, nil)

	q.RemoveAll()

	snapshot := q.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, ids[1], snapshot[0].ID)
}

func TestQueueSnapshotIsIndependentCopy(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 1)

	snapshot := q.Snapshot()
	snapshot[0].Status = model.StatusFailed
	snapshot[0].Title = "mutated"

	job, ok := q.Get(ids[0])
	require.True(t, ok)
	assert.Equal(t, model.StatusQueued, job.Status)
	assert.NotEqual(t, "mutated", job.Title)
}

func TestQueueCloseRejectsEnqueue(t *testing.T) {
	q := New()
	q.Close()
	_, err := q.Enqueue(&model.Job{SourceURL: "https://example.com/v"})
	assert.Error(t, err)
}

func TestQueueTimestampsSetOnce(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 1)

	q.setStatus(ids[0], model.StatusFetching, nil)
	first, _ := q.Get(ids[0])
	require.False(t, first.StartedAt.IsZero())

	q.setStatus(ids[0], model.StatusDownloading, nil)
	q.setStatus(ids[0], model.StatusCompleted, nil)
	final, _ := q.Get(ids[0])
	assert.Equal(t, first.StartedAt, final.StartedAt)
	assert.False(t, final.FinishedAt.IsZero())
}

func TestQueueRetryCounterAndLastError(t *testing.T) {
	q := New()
	ids := enqueueN(t, q, 1)

	jobErr := model.NewJobError(model.ErrNetwork, "timeout")
	assert.Equal(t, 1, q.incrementRetry(ids[0], jobErr))
	assert.Equal(t, 2, q.incrementRetry(ids[0], jobErr))

	job, _ := q.Get(ids[0])
	assert.Equal(t, 2, job.RetryCount)
	require.NotNil(t, job.LastError)
	assert.Equal(t, model.ErrNetwork, job.LastError.Kind)
}

func TestQueuePublishesStatusEvents(t *testing.T) {
	q := New()
	var events []model.JobStatus
	q.Notify(func(evt Event) {
		if evt.Type == EventStatus {
			events = append(events, evt.Job.Status)
		}
	})

	ids := enqueueN(t, q, 1)
	q.setStatus(ids[0], model.StatusFetching, nil)
	q.setStatus(ids[0], model.StatusDownloading, nil)
	q.setStatus(ids[0], model.StatusCompleted, nil)

	assert.Equal(t, []model.JobStatus{
		model.StatusQueued,
		model.StatusFetching,
		model.StatusDownloading,
		model.StatusCompleted,
	}, events)
}
