package model

// Stage identifies which phase of a job a progress snapshot belongs to
type Stage string

const (
	// StageFetching covers metadata resolution
	StageFetching Stage = "Fetching"

	// StageDownloading covers the raw transfer
	StageDownloading Stage = "Downloading"

	// StagePostprocessing covers merge, transcode and embedding work
	StagePostprocessing Stage = "Postprocessing"
)

// Progress is an immutable snapshot of job progress. Fields reported as
// pointers are unknown when nil: the extraction tool frequently omits sizes
// and rates while probing formats.
type Progress struct {
	Stage           Stage    `json:"stage"`
	Percent         *float64 `json:"percent,omitempty"`
	DownloadedBytes int64    `json:"downloaded_bytes"`
	TotalBytes      *int64   `json:"total_bytes,omitempty"`
	SpeedBytesPerS  *float64 `json:"speed_bytes_per_s,omitempty"`
	ETASeconds      *int64   `json:"eta_seconds,omitempty"`
}

// Clone returns an independent copy of the snapshot
func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Percent = clonePtr(p.Percent)
	cp.TotalBytes = clonePtr(p.TotalBytes)
	cp.SpeedBytesPerS = clonePtr(p.SpeedBytesPerS)
	cp.ETASeconds = clonePtr(p.ETASeconds)
	return &cp
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
