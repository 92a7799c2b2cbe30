package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	uvdlog "github.com/seeeba07/Universal-Video-Downloader/internal/log"
	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
	"github.com/seeeba07/Universal-Video-Downloader/internal/platform"
	"github.com/seeeba07/Universal-Video-Downloader/internal/postprocess"
	"github.com/seeeba07/Universal-Video-Downloader/internal/progress"
)

// Retry policy
const (
	// MaxRetries bounds transient-failure retries per job
	MaxRetries = 10

	defaultBackoffBase = 2 * time.Second
	defaultBackoffMax  = 30 * time.Second
)

// singleOutputTemplate stages single downloads inside the job work dir
const singleOutputTemplate = "%(title)s.%(ext)s"

// Downloader is the extraction-tool boundary used for raw transfers.
type Downloader interface {
	Download(ctx context.Context, req platform.DownloadRequest, onProgress func(platform.RawProgress)) error
}

// Processor is the postprocessing boundary.
type Processor interface {
	Run(ctx context.Context, in postprocess.Input, directives []model.Directive) (string, error)
}

// Executor drains the queue strictly sequentially: at most one job is ever
// in a running state. It owns all status, progress and retry mutations for
// the job it is driving.
type Executor struct {
	queue      *Queue
	downloader Downloader
	processor  Processor
	guard      *DiskGuard

	started atomic.Bool
	wake    chan struct{}

	backoffBase time.Duration
	backoffMax  time.Duration

	curMu     sync.Mutex
	curID     string
	curCancel context.CancelFunc

	// Staging seams, replaced in tests.
	makeWorkDir   func() (string, error)
	scanArtifacts func(dir string) ([]platform.Artifact, error)
	moveToDest    func(src, destDir, suffix string) (string, error)

	log zerolog.Logger
}

// NewExecutor wires an executor to its queue and collaborators. The executor
// wakes on every enqueue but only drains after Start.
func NewExecutor(q *Queue, d Downloader, p Processor, guard *DiskGuard) *Executor {
	e := &Executor{
		queue:         q,
		downloader:    d,
		processor:     p,
		guard:         guard,
		wake:          make(chan struct{}, 1),
		backoffBase:   defaultBackoffBase,
		backoffMax:    defaultBackoffMax,
		makeWorkDir:   platform.MakeWorkDir,
		scanArtifacts: platform.ScanArtifacts,
		moveToDest:    platform.MoveToDestination,
		log:           uvdlog.WithComponent("executor"),
	}
	q.Notify(func(evt Event) {
		if evt.Type == EventStatus && evt.Job.Status == model.StatusQueued {
			e.poke()
		}
	})
	return e
}

// Start switches the queue into draining mode. Idempotent.
func (e *Executor) Start() {
	if e.started.CompareAndSwap(false, true) {
		e.log.Info().Str("event", "executor.start").Msg("queue draining started")
	}
	e.poke()
}

// Started reports whether the queue is in draining mode.
func (e *Executor) Started() bool {
	return e.started.Load()
}

// CancelCurrent aborts the currently running job, if any. Queued jobs are
// untouched; draining proceeds to the next one.
func (e *Executor) CancelCurrent() {
	e.curMu.Lock()
	cancel := e.curCancel
	id := e.curID
	e.curMu.Unlock()
	if cancel != nil {
		e.log.Info().Str("event", "executor.cancel").Str("job_id", id).Msg("cancelling running job")
		cancel()
	}
}

// CancelAll discards every queued job and aborts the running one. A pending
// retry backoff is preempted immediately.
func (e *Executor) CancelAll() {
	e.queue.DiscardQueued()
	e.CancelCurrent()
}

// ClearAll cancels the running job, discards queued jobs and removes
// everything else from the queue. Confirmation is the caller's concern.
func (e *Executor) ClearAll() {
	e.CancelAll()
	e.queue.RemoveAll()
}

// Run drives the drain loop until ctx is cancelled. It is the single
// background context of the engine; all external operations inherit from
// ctx and shut down with it.
func (e *Executor) Run(ctx context.Context) error {
	for {
		if !e.started.Load() {
			if err := e.wait(ctx); err != nil {
				return err
			}
			continue
		}
		job := e.queue.nextQueued()
		if job == nil {
			if err := e.wait(ctx); err != nil {
				return err
			}
			continue
		}
		e.execute(ctx, job)
	}
}

func (e *Executor) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.wake:
		return nil
	}
}

func (e *Executor) poke() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// execute drives one job from Queued to a terminal state.
func (e *Executor) execute(ctx context.Context, job *model.Job) {
	id := job.ID
	log := uvdlog.WithJob("executor", id)

	// The job may have been removed or discarded between selection and here;
	// claiming settles the race. Metadata is resolved at enqueue time, so
	// Fetching is a transit state.
	if !e.queue.claim(id) {
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.setCurrent(id, cancel)
	defer e.clearCurrent()

	destDir := job.Settings.DownloadDir
	if err := e.guard.Preflight(destDir, job.ExpectedSizeBytes); err != nil {
		e.fail(id, log, err)
		return
	}

	workDir := ""
	outTemplate := job.DestinationPath
	if !job.Playlist {
		var err error
		workDir, err = e.makeWorkDir()
		if err != nil {
			e.fail(id, log, model.NewJobError(model.ErrProcessing, "staging dir: %v", err))
			return
		}
		outTemplate = filepath.Join(workDir, singleOutputTemplate)
	}

	e.queue.setStatus(id, model.StatusDownloading, nil)
	norm := progress.New(func(p model.Progress) { e.queue.setProgress(id, p) })
	norm.StartStage(model.StageDownloading)

	// Unknown total size: admit the job but watch the volume during the
	// transfer and abort cooperatively when it runs out.
	var exhausted atomic.Bool
	if job.ExpectedSizeBytes == 0 {
		go e.guard.Watch(jobCtx, destDir, func() {
			exhausted.Store(true)
			cancel()
		})
	}

	runs := e.downloadRuns(job, outTemplate)
	if err := e.downloadWithRetry(jobCtx, id, log, runs, norm, &exhausted); err != nil {
		e.cleanupCancelled(id, workDir)
		return // terminal state already set
	}
	norm.Flush()

	if job.Playlist {
		// Playlist postprocessing is delegated to the extraction tool run;
		// entries land merged in the destination folder.
		e.queue.setOutputPath(id, filepath.Dir(job.DestinationPath))
		e.queue.setStatus(id, model.StatusCompleted, nil)
		log.Info().Str("event", "job.completed").Msg("playlist job finished")
		return
	}

	finalPath, err := e.postprocessArtifacts(jobCtx, id, log, job, workDir, norm)
	if err != nil {
		// Terminal state already set. Failed jobs keep the work dir for
		// diagnosis; cancelled ones discard their partials.
		e.cleanupCancelled(id, workDir)
		return
	}

	outPath, err := e.moveToDest(finalPath, destDir, job.FilenameSuffix)
	if err != nil {
		e.fail(id, log, model.NewJobError(model.ErrProcessing, "move to destination: %v", err))
		return
	}
	e.queue.setOutputPath(id, outPath)
	norm.Flush()
	e.queue.setStatus(id, model.StatusCompleted, nil)
	log.Info().Str("event", "job.completed").Str("output", outPath).Msg("job finished")

	os.RemoveAll(workDir)
}

// downloadWithRetry runs the raw transfer with the bounded retry loop. On
// return with an error, the job has already reached a terminal state.
func (e *Executor) downloadWithRetry(ctx context.Context, id string, log zerolog.Logger, runs []platform.DownloadRequest, norm *progress.Normalizer, exhausted *atomic.Bool) error {
	for {
		err := e.runDownloads(ctx, runs, norm)
		if err == nil {
			return nil
		}

		if exhausted.Load() {
			norm.Flush()
			e.fail(id, log, model.NewJobError(model.ErrInsufficientDiskSpace, "destination volume exhausted mid-transfer"))
			return err
		}

		kind := model.KindOf(err)
		if kind == model.ErrCancelled {
			norm.Flush()
			e.queue.setStatus(id, model.StatusCancelled, asJobError(err))
			log.Info().Str("event", "job.cancelled").Msg("job cancelled")
			return err
		}

		if !kind.IsRetryable() {
			norm.Flush()
			e.fail(id, log, err)
			return err
		}

		current, _ := e.queue.Get(id)
		if current == nil || current.RetryCount >= MaxRetries {
			norm.Flush()
			e.fail(id, log, err)
			return err
		}

		attempt := e.queue.incrementRetry(id, asJobError(err))
		delay := backoffDelay(attempt, e.backoffBase, e.backoffMax)
		log.Warn().
			Str("event", "job.retry").
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(err).
			Msg("transient download failure, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			// Cancellation preempts a pending backoff immediately.
			norm.Flush()
			e.queue.setStatus(id, model.StatusCancelled, nil)
			log.Info().Str("event", "job.cancelled").Msg("job cancelled during backoff")
			return ctx.Err()
		}
		norm.ResetAttempt()
	}
}

// runDownloads executes the job's transfer runs in order. Jobs that fetch
// separate video and audio streams download them back to back; the
// normalizer accumulates bytes across streams.
func (e *Executor) runDownloads(ctx context.Context, runs []platform.DownloadRequest, norm *progress.Normalizer) error {
	for i, req := range runs {
		if err := e.downloader.Download(ctx, req, norm.Observe); err != nil {
			return err
		}
		if i < len(runs)-1 {
			norm.AdvanceStream()
		}
	}
	return nil
}

// postprocessArtifacts hands the raw artifacts to the coordinator.
func (e *Executor) postprocessArtifacts(ctx context.Context, id string, log zerolog.Logger, job *model.Job, workDir string, norm *progress.Normalizer) (string, error) {
	artifacts, err := e.scanArtifacts(workDir)
	if err != nil {
		failErr := model.NewJobError(model.ErrProcessing, "scan artifacts: %v", err)
		e.fail(id, log, failErr)
		return "", failErr
	}
	media, subs, thumb := classifyArtifacts(artifacts)
	if len(media) == 0 {
		failErr := model.NewJobError(model.ErrProcessing, "download produced no output file")
		e.fail(id, log, failErr)
		return "", failErr
	}

	if len(job.Directives) == 0 {
		return media[0].Path, nil
	}

	e.queue.setStatus(id, model.StatusPostprocessing, nil)
	norm.StartStage(model.StagePostprocessing)

	finalPath, err := e.processor.Run(ctx, postprocess.Input{
		Media:         media,
		SubtitleFiles: subs,
		ThumbnailFile: thumb,
		WorkDir:       workDir,
		Title:         job.Title,
	}, job.Directives)
	if err != nil {
		norm.Flush()
		if model.KindOf(err) == model.ErrCancelled {
			e.queue.setStatus(id, model.StatusCancelled, asJobError(err))
			log.Info().Str("event", "job.cancelled").Msg("job cancelled during postprocessing")
			return "", err
		}
		// Raw artifacts stay in the work dir so the transfer is not lost.
		log.Error().Str("event", "job.postprocess_failed").Str("work_dir", workDir).Err(err).Msg("postprocessing failed, raw artifacts preserved")
		e.fail(id, log, err)
		return "", err
	}
	return finalPath, nil
}

// downloadRuns builds the transfer requests for one job. A "video+audio"
// selector becomes two sequential single-stream runs so the raw streams stay
// separate for the postprocessing stage. Playlist jobs run once with merge
// and extraction delegated to the tool.
func (e *Executor) downloadRuns(job *model.Job, outTemplate string) []platform.DownloadRequest {
	base := platform.DownloadRequest{
		URL:                job.SourceURL,
		FormatSelector:     job.FormatSelector,
		OutputTemplate:     outTemplate,
		Playlist:           job.Playlist,
		SpeedLimitBytes:    job.SpeedLimitBytes,
		CookiesFromBrowser: job.CookiesFromBrowser,
		SubtitleLangs:      job.Subtitles.Languages,
		WriteAutoSubs:      job.Subtitles.IncludeAuto,
	}

	if job.Playlist {
		for _, d := range job.Directives {
			switch d.Kind {
			case model.DirectiveMerge:
				base.MergeContainer = d.Container
			case model.DirectiveExtractAudio:
				base.ExtractAudioFormat = d.AudioFormat
				base.ExtractAudioBitrate = d.AudioBitrate
			}
		}
		return []platform.DownloadRequest{base}
	}

	video, audio, split := splitSelector(job.FormatSelector)
	if !split {
		return []platform.DownloadRequest{base}
	}

	videoRun := base
	videoRun.FormatSelector = video
	audioRun := base
	audioRun.FormatSelector = audio
	// Subtitles and the thumbnail arrive with the first run.
	audioRun.SubtitleLangs = nil
	audioRun.WriteAutoSubs = false
	return []platform.DownloadRequest{videoRun, audioRun}
}

// splitSelector separates a combined "video+audio" selection expression.
func splitSelector(sel string) (video, audio string, ok bool) {
	idx := strings.Index(sel, "+")
	if idx <= 0 || idx == len(sel)-1 {
		return "", "", false
	}
	return sel[:idx], sel[idx+1:], true
}

func (e *Executor) fail(id string, log zerolog.Logger, err error) {
	je := asJobError(err)
	e.queue.setStatus(id, model.StatusFailed, je)
	log.Error().
		Str("event", "job.failed").
		Str("kind", string(je.Kind)).
		Str("reason", je.Message).
		Msg("job failed")
}

// cleanupCancelled removes a cancelled job's staging dir. Failed jobs keep
// theirs so the transfer can be salvaged.
func (e *Executor) cleanupCancelled(id, workDir string) {
	if workDir == "" {
		return
	}
	if cur, ok := e.queue.Get(id); ok && cur.Status == model.StatusCancelled {
		os.RemoveAll(workDir)
	}
}

func (e *Executor) setCurrent(id string, cancel context.CancelFunc) {
	e.curMu.Lock()
	e.curID = id
	e.curCancel = cancel
	e.curMu.Unlock()
}

func (e *Executor) clearCurrent() {
	e.curMu.Lock()
	e.curID = ""
	e.curCancel = nil
	e.curMu.Unlock()
}

// backoffDelay grows exponentially with the attempt number, bounded by max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func asJobError(err error) *model.JobError {
	var je *model.JobError
	if errors.As(err, &je) {
		return je
	}
	return model.NewJobError(model.ErrProcessing, "%v", err)
}

// classifyArtifacts splits a work-dir listing into media files, subtitle
// sidecars and a thumbnail image. Artifacts arrive largest first, so the
// media slice keeps video before audio.
func classifyArtifacts(artifacts []platform.Artifact) (media []platform.Artifact, subs []string, thumb string) {
	for _, a := range artifacts {
		switch a.Ext {
		case "srt", "vtt", "ass":
			subs = append(subs, a.Path)
		case "jpg", "jpeg", "png", "webp":
			if thumb == "" {
				thumb = a.Path
			}
		default:
			media = append(media, a)
		}
	}
	return media, subs, thumb
}
