// Package fetch implements the metadata fetcher: it probes a source URL
// through the extraction tool and normalizes the loosely-typed info payload
// into model.Metadata. It is read-only and never touches the job queue.
package fetch

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	uvdlog "github.com/seeeba07/Universal-Video-Downloader/internal/log"
	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

// DefaultProbeTimeout bounds a single metadata probe
const DefaultProbeTimeout = 60 * time.Second

// Prober is the extraction-tool boundary used for metadata probing.
type Prober interface {
	Probe(ctx context.Context, url, cookiesFromBrowser string) ([]byte, error)
}

// Fetcher probes URLs and returns normalized metadata.
type Fetcher struct {
	prober  Prober
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a Fetcher around the given prober.
func New(prober Prober) *Fetcher {
	return &Fetcher{
		prober:  prober,
		timeout: DefaultProbeTimeout,
		log:     uvdlog.WithComponent("fetch"),
	}
}

// SetTimeout overrides the probe timeout.
func (f *Fetcher) SetTimeout(timeout time.Duration) {
	f.timeout = timeout
}

// Fetch probes url and returns its metadata. The probe is not retried here;
// callers decide whether to retry the fetch as a whole.
func (f *Fetcher) Fetch(ctx context.Context, url, cookiesFromBrowser string) (*model.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	f.log.Debug().Str("event", "probe.start").Str("url", url).Msg("probing url")
	raw, err := f.prober.Probe(ctx, url, cookiesFromBrowser)
	if err != nil {
		return nil, err
	}

	var info infoDict
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, model.NewJobError(model.ErrUnsupportedURL, "unreadable extractor output for %s: %v", url, err)
	}

	md := normalize(&info)
	f.log.Info().
		Str("event", "probe.done").
		Str("url", url).
		Bool("playlist", md.IsPlaylist).
		Int("formats", len(md.Formats)).
		Int("entries", len(md.Entries)).
		Msg("probe finished")
	return md, nil
}

// infoDict mirrors the subset of the extractor's info payload the engine
// reads. Everything else in the payload is ignored on purpose.
type infoDict struct {
	Type              string           `json:"_type"`
	Title             string           `json:"title"`
	Duration          *float64         `json:"duration"`
	WebpageURL        string           `json:"webpage_url"`
	Formats           []formatDict     `json:"formats"`
	Entries           []infoDict       `json:"entries"`
	PlaylistIndex     *int             `json:"playlist_index"`
	Subtitles         map[string][]any `json:"subtitles"`
	AutomaticCaptions map[string][]any `json:"automatic_captions"`
}

type formatDict struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	FPS            *float64 `json:"fps"`
	TBR            *float64 `json:"tbr"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
}

func normalize(info *infoDict) *model.Metadata {
	md := &model.Metadata{
		Title:         info.Title,
		DurationSec:   info.Duration,
		Subtitles:     sortedLangs(info.Subtitles),
		AutoSubtitles: sortedLangs(info.AutomaticCaptions),
	}

	if info.Type == "playlist" || len(info.Entries) > 0 {
		md.IsPlaylist = true
		md.Entries = make([]model.PlaylistEntry, 0, len(info.Entries))
		for i, entry := range info.Entries {
			index := i + 1
			if entry.PlaylistIndex != nil {
				index = *entry.PlaylistIndex
			}
			md.Entries = append(md.Entries, model.PlaylistEntry{
				Index:   index,
				Title:   entry.Title,
				URL:     entry.WebpageURL,
				Formats: normalizeFormats(entry.Formats),
			})
		}
		// Offer the first entry's formats so quality selection works for
		// homogeneous playlists.
		if len(md.Entries) > 0 {
			md.Formats = md.Entries[0].Formats
		}
		return md
	}

	md.Formats = normalizeFormats(info.Formats)
	return md
}

// normalizeFormats keeps video formats with a known height, rounds fps,
// trims codec profile suffixes and sorts best-first by height, fps, tbr.
func normalizeFormats(raw []formatDict) []model.Format {
	formats := make([]model.Format, 0, len(raw))
	for _, f := range raw {
		if f.VCodec == "" || f.VCodec == "none" || f.Height == 0 {
			continue
		}
		nf := model.Format{
			ID:     f.FormatID,
			Ext:    f.Ext,
			VCodec: cleanCodec(f.VCodec),
			ACodec: f.ACodec,
			Width:  f.Width,
			Height: f.Height,
		}
		if f.FPS != nil {
			nf.FPS = int(math.Round(*f.FPS))
		}
		if f.TBR != nil {
			nf.TBR = *f.TBR
		}
		if f.Filesize != nil {
			nf.FilesizeBytes = *f.Filesize
		} else if f.FilesizeApprox != nil {
			nf.FilesizeBytes = *f.FilesizeApprox
		}
		formats = append(formats, nf)
	}

	sort.SliceStable(formats, func(i, j int) bool {
		a, b := formats[i], formats[j]
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		if a.FPS != b.FPS {
			return a.FPS > b.FPS
		}
		return a.TBR > b.TBR
	})
	return formats
}

func cleanCodec(codec string) string {
	if codec == "" || codec == "none" {
		return codec
	}
	if idx := strings.IndexByte(codec, '.'); idx > 0 {
		return codec[:idx]
	}
	return codec
}

func sortedLangs(subs map[string][]any) []string {
	langs := make([]string, 0, len(subs))
	for lang, entries := range subs {
		if len(entries) > 0 {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}
