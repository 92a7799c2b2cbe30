package model

// JobStatus represents the lifecycle state of a download job
type JobStatus string

const (
	// StatusQueued means the job is enqueued but not started
	StatusQueued JobStatus = "Queued"

	// StatusFetching means metadata for the job is being resolved
	StatusFetching JobStatus = "Fetching"

	// StatusDownloading means the raw transfer is in progress
	StatusDownloading JobStatus = "Downloading"

	// StatusPostprocessing means the downloaded streams are being merged,
	// transcoded or tagged
	StatusPostprocessing JobStatus = "Postprocessing"

	// StatusCompleted means the job finished successfully
	StatusCompleted JobStatus = "Completed"

	// StatusFailed means the job failed with an error
	StatusFailed JobStatus = "Failed"

	// StatusCancelled means the job was cancelled by the user
	StatusCancelled JobStatus = "Cancelled"
)

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsRunning returns true while the executor owns the job
func (s JobStatus) IsRunning() bool {
	return s == StatusFetching || s == StatusDownloading || s == StatusPostprocessing
}

// IsTerminal returns true if the job reached a final state
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsRemovable reports whether the job may be removed from the queue directly.
// Running jobs must be cancelled first.
func (s JobStatus) IsRemovable() bool {
	return s == StatusQueued || s.IsTerminal()
}
