package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeeba07/Universal-Video-Downloader/internal/fetch"
	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
	"github.com/seeeba07/Universal-Video-Downloader/internal/platform"
	"github.com/seeeba07/Universal-Video-Downloader/internal/postprocess"
	"github.com/seeeba07/Universal-Video-Downloader/internal/queue"
)

type stubProber struct {
	payload []byte
	err     error
}

func (p *stubProber) Probe(ctx context.Context, url, cookies string) ([]byte, error) {
	return p.payload, p.err
}

const stubInfoJSON = `{
	"title": "Stub Video",
	"formats": [
		{"format_id": "137", "ext": "mp4", "vcodec": "avc1", "acodec": "none", "width": 1920, "height": 1080}
	]
}`

func newTestServer(t *testing.T, prober fetch.Prober) (*Server, *queue.Queue) {
	t.Helper()
	q := queue.New()
	ex := queue.NewExecutor(q, platform.NewRunner(""), postprocess.New(), queue.NewDiskGuard())
	s := New(q, ex, fetch.New(prober), platform.NewRunner(""), nil, func() model.SettingsSnapshot {
		return model.SettingsSnapshot{
			DownloadDir: t.TempDir(),
			DefaultMode: model.ModeVideo,
		}
	})
	return s, q
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestCreateJobEnqueues(t *testing.T) {
	s, q := newTestServer(t, &stubProber{payload: []byte(stubInfoJSON)})

	w := doRequest(s, http.MethodPost, "/api/jobs", `{"url": "https://example.com/watch?v=abc"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		JobID string `json:"job_id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "Stub Video", resp.Title)

	job, ok := q.Get(resp.JobID)
	require.True(t, ok)
	assert.Equal(t, model.StatusQueued, job.Status)
	assert.Equal(t, "https://example.com/watch?v=abc", job.SourceURL)
}

func TestCreateJobRejectsMissingURL(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{payload: []byte(stubInfoJSON)})
	w := doRequest(s, http.MethodPost, "/api/jobs", `{"mode": "video"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJobMapsErrorKinds(t *testing.T) {
	tests := []struct {
		kind model.ErrorKind
		code int
	}{
		{model.ErrUnsupportedURL, http.StatusUnprocessableEntity},
		{model.ErrNetwork, http.StatusBadGateway},
		{model.ErrExtractorOutdated, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s, _ := newTestServer(t, &stubProber{err: model.NewJobError(tt.kind, "probe failed")})
			w := doRequest(s, http.MethodPost, "/api/jobs", `{"url": "https://example.com/v"}`)
			assert.Equal(t, tt.code, w.Code)

			var resp struct {
				Kind string `json:"kind"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.kind), resp.Kind)
		})
	}
}

func TestListAndGetJobs(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{payload: []byte(stubInfoJSON)})

	w := doRequest(s, http.MethodPost, "/api/jobs", `{"url": "https://example.com/v"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var created struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doRequest(s, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Jobs, 1)

	w = doRequest(s, http.MethodGet, "/api/jobs/"+created.JobID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/jobs/job-unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveJob(t *testing.T) {
	s, q := newTestServer(t, &stubProber{payload: []byte(stubInfoJSON)})

	w := doRequest(s, http.MethodPost, "/api/jobs", `{"url": "https://example.com/v"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var created struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doRequest(s, http.MethodDelete, "/api/jobs/"+created.JobID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok := q.Get(created.JobID)
	assert.False(t, ok)

	w = doRequest(s, http.MethodDelete, "/api/jobs/"+created.JobID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueControls(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{payload: []byte(stubInfoJSON)})

	w := doRequest(s, http.MethodPost, "/api/queue/start", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodPost, "/api/queue/cancel", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(s, http.MethodPost, "/api/queue/clear-finished", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodPost, "/api/queue/clear-all", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestProbeReturnsMetadata(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{payload: []byte(stubInfoJSON)})

	w := doRequest(s, http.MethodPost, "/api/probe", `{"url": "https://example.com/v"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var md model.Metadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &md))
	assert.Equal(t, "Stub Video", md.Title)
	require.Len(t, md.Formats, 1)
	assert.Equal(t, "137", md.Formats[0].ID)
}

func TestSystemInfo(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{payload: []byte(stubInfoJSON)})

	w := doRequest(s, http.MethodGet, "/api/system", "")
	require.Equal(t, http.StatusOK, w.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Contains(t, info, "extractor_available")
	assert.Contains(t, info, "download_dir")
	assert.Contains(t, info, "queue_started")
}

func TestHistoryEmptyWithoutStore(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{payload: []byte(stubInfoJSON)})

	w := doRequest(s, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "entries")
}
