// Package api exposes the download engine over a local HTTP JSON API.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/seeeba07/Universal-Video-Downloader/internal/fetch"
	"github.com/seeeba07/Universal-Video-Downloader/internal/history"
	uvdlog "github.com/seeeba07/Universal-Video-Downloader/internal/log"
	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
	"github.com/seeeba07/Universal-Video-Downloader/internal/platform"
	"github.com/seeeba07/Universal-Video-Downloader/internal/queue"
	"github.com/seeeba07/Universal-Video-Downloader/internal/resolve"
)

// Server wires the engine behind HTTP handlers. It holds no state of its
// own; the queue is the single source of truth.
type Server struct {
	queue    *queue.Queue
	executor *queue.Executor
	fetcher  *fetch.Fetcher
	runner   *platform.Runner
	history  *history.Store
	settings func() model.SettingsSnapshot

	log zerolog.Logger
}

// New builds a Server. history may be nil when persistence is disabled.
func New(q *queue.Queue, ex *queue.Executor, f *fetch.Fetcher, r *platform.Runner, h *history.Store, settings func() model.SettingsSnapshot) *Server {
	return &Server{
		queue:    q,
		executor: ex,
		fetcher:  f,
		runner:   r,
		history:  h,
		settings: settings,
		log:      uvdlog.WithComponent("api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.POST("/jobs", s.createJob)
		api.GET("/jobs", s.listJobs)
		api.GET("/jobs/:id", s.getJob)
		api.DELETE("/jobs/:id", s.removeJob)

		api.POST("/queue/start", s.startQueue)
		api.POST("/queue/cancel", s.cancelCurrent)
		api.POST("/queue/cancel-all", s.cancelAll)
		api.POST("/queue/clear-finished", s.clearFinished)
		api.POST("/queue/clear-all", s.clearAll)

		api.POST("/probe", s.probe)
		api.GET("/history", s.listHistory)
		api.GET("/system", s.systemInfo)
	}
	return router
}

// createRequest is the submission payload. Only URL is required; everything
// else falls back to the configured defaults.
type createRequest struct {
	URL          string `json:"url" binding:"required"`
	Mode         string `json:"mode"`
	Quality      string `json:"quality"`
	Container    string `json:"container"`
	AudioFormat  string `json:"audio_format"`
	AudioBitrate string `json:"audio_bitrate"`
	Playlist     bool   `json:"playlist"`

	// Subtitles is "" for none, "all", or a comma-separated language list.
	Subtitles string `json:"subtitles"`
}

func (s *Server) createJob(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	snap := s.settings()
	md, err := s.fetcher.Fetch(c.Request.Context(), req.URL, snap.CookiesFromBrowser)
	if err != nil {
		s.jobError(c, err)
		return
	}

	job, err := resolve.Resolve(resolve.Request{
		URL:          req.URL,
		Mode:         model.Mode(req.Mode),
		Quality:      req.Quality,
		Container:    req.Container,
		AudioFormat:  req.AudioFormat,
		AudioBitrate: req.AudioBitrate,
		Subtitles:    req.Subtitles,
		Playlist:     req.Playlist && md.IsPlaylist,
	}, md, snap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.queue.Enqueue(job)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	s.log.Info().Str("event", "api.job_created").Str("job_id", id).Str("url", req.URL).Msg("job enqueued")
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "title": job.Title})
}

func (s *Server) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.queue.Snapshot()})
}

func (s *Server) getJob(c *gin.Context) {
	job, ok := s.queue.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) removeJob(c *gin.Context) {
	if err := s.queue.Remove(c.Param("id")); err != nil {
		if model.KindOf(err) == model.ErrInvalidState {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) startQueue(c *gin.Context) {
	s.executor.Start()
	c.JSON(http.StatusOK, gin.H{"started": true})
}

func (s *Server) cancelCurrent(c *gin.Context) {
	s.executor.CancelCurrent()
	c.Status(http.StatusNoContent)
}

func (s *Server) cancelAll(c *gin.Context) {
	s.executor.CancelAll()
	c.Status(http.StatusNoContent)
}

func (s *Server) clearFinished(c *gin.Context) {
	removed := s.queue.ClearFinished()
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) clearAll(c *gin.Context) {
	s.executor.ClearAll()
	c.Status(http.StatusNoContent)
}

type probeRequest struct {
	URL string `json:"url" binding:"required"`
}

// probe returns normalized metadata without enqueueing anything.
func (s *Server) probe(c *gin.Context) {
	var req probeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	md, err := s.fetcher.Fetch(c.Request.Context(), req.URL, s.settings().CookiesFromBrowser)
	if err != nil {
		s.jobError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

func (s *Server) listHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []history.Entry{}})
		return
	}
	entries, err := s.history.List(0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// systemInfo reports tool availability, versions and free disk space.
func (s *Server) systemInfo(c *gin.Context) {
	snap := s.settings()
	info := gin.H{
		"extractor_available": s.runner.Available(),
		"extractor_version":   s.runner.Version(c.Request.Context()),
		"download_dir":        snap.DownloadDir,
		"queue_started":       s.executor.Started(),
	}
	if path, err := platform.FFmpegPath(); err == nil {
		info["ffmpeg_path"] = path
	} else {
		info["ffmpeg_path"] = ""
	}
	if free, err := platform.FreeSpace(snap.DownloadDir); err == nil {
		info["free_disk_bytes"] = free
	}
	c.JSON(http.StatusOK, info)
}

// jobError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) jobError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch model.KindOf(err) {
	case model.ErrUnsupportedURL, model.ErrFormatUnavailable:
		status = http.StatusUnprocessableEntity
	case model.ErrNetwork, model.ErrExtractorOutdated:
		status = http.StatusBadGateway
	case model.ErrInsufficientDiskSpace:
		status = http.StatusInsufficientStorage
	case model.ErrCancelled:
		status = 499 // client closed request
	}
	je := model.KindOf(err)
	c.JSON(status, gin.H{"error": err.Error(), "kind": string(je)})
}
