// Package progress converts the irregular, partially-populated progress
// events of the extraction tool into bounded-rate, monotonic snapshots.
// It is the single translation boundary for progress data; nothing above it
// ever sees a raw event.
package progress

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
	"github.com/seeeba07/Universal-Video-Downloader/internal/platform"
)

// MaxUpdatesPerSecond bounds emission so a chatty download cannot starve
// consumers of the event stream.
const MaxUpdatesPerSecond = 4

// Normalizer throttles and sanitizes progress for one job. It is safe for
// use from the runner's reader goroutine concurrently with stage changes
// from the executor.
type Normalizer struct {
	emit    func(model.Progress)
	limiter *rate.Limiter

	mu         sync.Mutex
	stage      model.Stage
	floor      float64 // highest percent seen this attempt
	baseBytes  int64   // bytes carried over from earlier streams of the job
	last       model.Progress
	hasUpdates bool
}

// New creates a Normalizer that delivers snapshots through emit.
func New(emit func(model.Progress)) *Normalizer {
	return &Normalizer{
		emit:    emit,
		limiter: rate.NewLimiter(rate.Limit(MaxUpdatesPerSecond), 1),
	}
}

// StartStage switches the reported stage and emits immediately, bypassing
// the throttle: stage entry is one of the guaranteed updates.
func (n *Normalizer) StartStage(stage model.Stage) {
	n.mu.Lock()
	n.stage = stage
	n.floor = 0
	n.baseBytes = 0
	n.last = model.Progress{Stage: stage}
	snapshot := n.last
	n.mu.Unlock()

	n.emit(snapshot)
}

// ResetAttempt clears attempt-local progress after a retry. The next raw
// event starts from zero legitimately, so the monotonic floor is dropped.
func (n *Normalizer) ResetAttempt() {
	n.mu.Lock()
	n.floor = 0
	n.baseBytes = 0
	n.mu.Unlock()
}

// AdvanceStream folds the finished stream's bytes into the base so jobs
// downloading separate video and audio streams report cumulative bytes.
func (n *Normalizer) AdvanceStream() {
	n.mu.Lock()
	n.baseBytes = n.last.DownloadedBytes
	n.floor = 0
	n.mu.Unlock()
}

// Observe processes one raw event. Emission is rate-limited; the latest
// snapshot is still recorded so Flush never loses the final state.
func (n *Normalizer) Observe(raw platform.RawProgress) {
	n.mu.Lock()
	snapshot := model.Progress{
		Stage:           n.stage,
		DownloadedBytes: n.baseBytes + raw.DownloadedBytes,
		SpeedBytesPerS:  raw.SpeedBytesPerS,
		ETASeconds:      raw.ETASeconds,
	}
	if raw.TotalBytes != nil {
		total := n.baseBytes + *raw.TotalBytes
		snapshot.TotalBytes = &total
		if *raw.TotalBytes > 0 {
			pct := float64(raw.DownloadedBytes) / float64(*raw.TotalBytes) * 100
			if pct > 100 {
				pct = 100
			}
			// Never report a decreasing percent within one attempt.
			if pct < n.floor {
				pct = n.floor
			}
			n.floor = pct
			snapshot.Percent = &pct
		}
	}
	n.last = snapshot
	n.hasUpdates = true
	allowed := n.limiter.Allow()
	n.mu.Unlock()

	if allowed {
		n.emit(snapshot)
	}
}

// Flush emits the most recent snapshot unconditionally. The executor calls
// it on attempt completion and failure so the terminal state is never lost
// to throttling.
func (n *Normalizer) Flush() {
	n.mu.Lock()
	snapshot := n.last
	has := n.hasUpdates
	n.mu.Unlock()

	if has {
		n.emit(snapshot)
	}
}

// Last returns the most recent snapshot.
func (n *Normalizer) Last() model.Progress {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
