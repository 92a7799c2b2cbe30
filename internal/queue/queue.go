// Package queue implements the download job queue, its state machine and the
// sequential executor that drains it. The queue is the single source of
// truth for what work exists; every mutation happens under one mutex and is
// announced to registered listeners.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	uvdlog "github.com/seeeba07/Universal-Video-Downloader/internal/log"
	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

// jobIDPrefix namespaces generated job ids
const jobIDPrefix = "job-"

// Queue is an ordered collection of jobs with FIFO execution order.
// Foreground callers enqueue, remove and clear; the executor is the only
// writer of status, progress and retry fields once a job is running.
type Queue struct {
	mu        sync.Mutex
	jobs      []*model.Job
	closed    bool
	listeners []Listener

	log zerolog.Logger
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{log: uvdlog.WithComponent("queue")}
}

// Notify registers a listener for job events. Must be called before events
// of interest can fire; there is no unsubscribe, listeners live as long as
// the queue.
func (q *Queue) Notify(l Listener) {
	q.mu.Lock()
	q.listeners = append(q.listeners, l)
	q.mu.Unlock()
}

// Enqueue appends a resolved job to the tail of the queue and returns its
// assigned id. It never starts execution by itself.
func (q *Queue) Enqueue(job *model.Job) (string, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", fmt.Errorf("queue is shutting down")
	}

	job.ID = newJobID()
	job.Status = model.StatusQueued
	job.CreatedAt = time.Now()
	q.jobs = append(q.jobs, job)
	snapshot := job.Clone()
	q.mu.Unlock()

	q.log.Info().
		Str("event", "queue.enqueue").
		Str("job_id", snapshot.ID).
		Str("url", snapshot.SourceURL).
		Str("mode", string(snapshot.Mode)).
		Msg("job enqueued")
	q.publish(Event{Type: EventStatus, Job: snapshot})
	return snapshot.ID, nil
}

// Remove deletes a job that is not running. Running jobs must be cancelled
// instead; attempting to remove one fails with InvalidState.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return fmt.Errorf("job not found: %s", id)
	}
	if !q.jobs[idx].Status.IsRemovable() {
		status := q.jobs[idx].Status
		q.mu.Unlock()
		return model.NewJobError(model.ErrInvalidState, "job %s is %s, cancel it first", id, status)
	}
	q.jobs = append(q.jobs[:idx], q.jobs[idx+1:]...)
	q.mu.Unlock()

	q.log.Info().Str("event", "queue.remove").Str("job_id", id).Msg("job removed")
	return nil
}

// ClearFinished removes every job in a terminal state and reports how many
// were dropped. Queued and running jobs are untouched.
func (q *Queue) ClearFinished() int {
	q.mu.Lock()
	kept := q.jobs[:0]
	removed := 0
	for _, job := range q.jobs {
		if job.Status.IsTerminal() {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	q.jobs = kept
	q.mu.Unlock()

	if removed > 0 {
		q.log.Info().Str("event", "queue.clear_finished").Int("removed", removed).Msg("finished jobs cleared")
	}
	return removed
}

// DiscardQueued deletes every job still waiting in Queued state. Used by
// cancel-all and clear-all; running and terminal jobs are left alone.
func (q *Queue) DiscardQueued() int {
	q.mu.Lock()
	kept := q.jobs[:0]
	removed := 0
	for _, job := range q.jobs {
		if job.Status == model.StatusQueued {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	q.jobs = kept
	q.mu.Unlock()

	if removed > 0 {
		q.log.Info().Str("event", "queue.discard_queued").Int("removed", removed).Msg("queued jobs discarded")
	}
	return removed
}

// RemoveAll drops every non-running job. Callers are expected to cancel the
// running job first; a job that is still running survives until its
// cancellation lands, at which point it is terminal and clearable.
func (q *Queue) RemoveAll() {
	q.mu.Lock()
	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if job.Status.IsRunning() {
			kept = append(kept, job)
		}
	}
	q.jobs = kept
	q.mu.Unlock()

	q.log.Info().Str("event", "queue.clear_all").Msg("queue cleared")
}

// Snapshot returns the ordered list of jobs as independent copies.
func (q *Queue) Snapshot() []*model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.Job, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = job.Clone()
	}
	return out
}

// Get returns a snapshot of one job.
func (q *Queue) Get(id string) (*model.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if idx := q.indexLocked(id); idx >= 0 {
		return q.jobs[idx].Clone(), true
	}
	return nil, false
}

// Close rejects further enqueues. Existing jobs stay queryable.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// nextQueued hands the executor the oldest Queued job, or nil.
func (q *Queue) nextQueued() *model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.Status == model.StatusQueued {
			return job.Clone()
		}
	}
	return nil
}

// claim atomically moves a Queued job into Fetching. Jobs removed or
// discarded after selection fail the claim and are never executed.
func (q *Queue) claim(id string) bool {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 || q.jobs[idx].Status != model.StatusQueued {
		q.mu.Unlock()
		return false
	}
	job := q.jobs[idx]
	job.Status = model.StatusFetching
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}
	snapshot := job.Clone()
	q.mu.Unlock()

	q.publish(Event{Type: EventStatus, Job: snapshot})
	return true
}

// hasRunning reports whether any job is currently in a running state.
func (q *Queue) hasRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.Status.IsRunning() {
			return true
		}
	}
	return false
}

// setStatus performs a state transition and publishes it. Timestamps are set
// once: StartedAt on leaving Queued, FinishedAt on reaching a terminal state.
func (q *Queue) setStatus(id string, status model.JobStatus, jobErr *model.JobError) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	job := q.jobs[idx]
	job.Status = status
	if jobErr != nil {
		job.LastError = jobErr
	}
	if status == model.StatusFetching && job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}
	if status.IsTerminal() && job.FinishedAt.IsZero() {
		job.FinishedAt = time.Now()
	}
	snapshot := job.Clone()
	q.mu.Unlock()

	q.publish(Event{Type: EventStatus, Job: snapshot})
}

// setProgress stores the latest progress snapshot and publishes it.
func (q *Queue) setProgress(id string, p model.Progress) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	q.jobs[idx].Progress = &p
	snapshot := q.jobs[idx].Clone()
	q.mu.Unlock()

	q.publish(Event{Type: EventProgress, Job: snapshot})
}

// incrementRetry bumps the retry counter and returns the new value.
func (q *Queue) incrementRetry(id string, lastErr *model.JobError) int {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return 0
	}
	job := q.jobs[idx]
	job.RetryCount++
	job.LastError = lastErr
	count := job.RetryCount
	snapshot := job.Clone()
	q.mu.Unlock()

	q.publish(Event{Type: EventStatus, Job: snapshot})
	return count
}

// setOutputPath records the final artifact location.
func (q *Queue) setOutputPath(id, path string) {
	q.mu.Lock()
	if idx := q.indexLocked(id); idx >= 0 {
		q.jobs[idx].OutputPath = path
	}
	q.mu.Unlock()
}

func (q *Queue) indexLocked(id string) int {
	for i, job := range q.jobs {
		if job.ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) publish(evt Event) {
	q.mu.Lock()
	listeners := append([]Listener(nil), q.listeners...)
	q.mu.Unlock()
	for _, l := range listeners {
		l(evt)
	}
}

// newJobID generates a unique, time-ordered job id.
func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(jobIDPrefix+"%d", time.Now().UnixNano())
	}
	return jobIDPrefix + id.String()
}
