package model

// SettingsSnapshot is the immutable copy of user settings a job is resolved
// against. It is captured once at enqueue time; live settings changes never
// affect jobs already in the queue.
type SettingsSnapshot struct {
	DownloadDir        string `json:"download_dir"`
	DefaultMode        Mode   `json:"default_mode"`
	AudioFormat        string `json:"audio_format"`
	AudioBitrate       string `json:"audio_bitrate"` // kbit/s
	IncludeAutoSubs    bool   `json:"include_auto_subs"`
	SpeedLimitKBps     int    `json:"speed_limit_kbps"` // 0 = unlimited
	CookiesFromBrowser string `json:"cookies_from_browser,omitempty"`
}

// SpeedLimitBytes converts the configured limit to bytes per second
func (s SettingsSnapshot) SpeedLimitBytes() int64 {
	if s.SpeedLimitKBps <= 0 {
		return 0
	}
	return int64(s.SpeedLimitKBps) * 1024
}
