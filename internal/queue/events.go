package queue

import "github.com/seeeba07/Universal-Video-Downloader/internal/model"

// EventType distinguishes job event kinds
type EventType string

const (
	// EventStatus is emitted on every status transition
	EventStatus EventType = "status"

	// EventProgress is emitted for throttled progress updates
	EventProgress EventType = "progress"
)

// Event is one observer notification. Job is an independent snapshot; the
// receiver may keep it without copying.
type Event struct {
	Type EventType
	Job  *model.Job
}

// Listener receives job events. Listeners are invoked synchronously in
// delivery order and must return quickly; slow consumers should hand the
// event off to their own goroutine.
type Listener func(Event)
