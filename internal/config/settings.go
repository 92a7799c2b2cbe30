// Package config loads the uvd settings file and turns it into the immutable
// per-job snapshot the engine consumes. The engine never writes settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

// Allowed values
var (
	AudioFormats  = []string{"mp3", "m4a", "wav", "flac", "opus"}
	AudioBitrates = []string{"320", "256", "192", "128", "64"}
)

// Default values
const (
	DefaultMode         = model.ModeVideo
	DefaultAudioFormat  = "mp3"
	DefaultAudioBitrate = "320"
)

// Settings is the on-disk configuration. Fields not listed keep their zero
// value and fall back to defaults during Normalize.
type Settings struct {
	DownloadDir        string `yaml:"download_dir"`
	DefaultMode        string `yaml:"default_mode"`
	AudioFormat        string `yaml:"audio_format"`
	AudioBitrate       string `yaml:"audio_bitrate"`
	IncludeAutoSubs    bool   `yaml:"include_auto_subs"`
	SpeedLimitKBps     int    `yaml:"speed_limit_kbps"`
	CookiesFromBrowser string `yaml:"cookies_from_browser"`

	// Consumers outside the engine (theme is owned by the UI layer and
	// ignored here).
	Theme string `yaml:"theme"`

	ListenAddr  string `yaml:"listen_addr"`
	HistoryPath string `yaml:"history_path"`
	LogLevel    string `yaml:"log_level"`
}

// Default returns settings with every field at its documented default.
func Default() Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Settings{
		DownloadDir:  filepath.Join(home, "Downloads"),
		DefaultMode:  string(DefaultMode),
		AudioFormat:  DefaultAudioFormat,
		AudioBitrate: DefaultAudioBitrate,
		ListenAddr:   "127.0.0.1:8097",
		HistoryPath:  filepath.Join(home, ".uvd", "history.db"),
	}
}

// DefaultPath returns the default settings file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".uvd", "config.yaml")
}

// Load reads the YAML settings file at path. An empty path means the default
// location; a missing file is not an error: defaults are returned so a fresh
// install works without any setup.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	s.Normalize()
	return s, nil
}

// Normalize replaces out-of-range values with defaults, mirroring the
// permissive behaviour of the settings dialog.
func (s *Settings) Normalize() {
	def := Default()
	if s.DownloadDir == "" {
		s.DownloadDir = def.DownloadDir
	}
	if mode, ok := model.ParseMode(s.DefaultMode); ok {
		s.DefaultMode = string(mode)
	} else {
		s.DefaultMode = def.DefaultMode
	}
	if !contains(AudioFormats, s.AudioFormat) {
		s.AudioFormat = def.AudioFormat
	}
	if !contains(AudioBitrates, s.AudioBitrate) {
		s.AudioBitrate = def.AudioBitrate
	}
	if s.SpeedLimitKBps < 0 {
		s.SpeedLimitKBps = 0
	}
	if s.ListenAddr == "" {
		s.ListenAddr = def.ListenAddr
	}
	if s.HistoryPath == "" {
		s.HistoryPath = def.HistoryPath
	}
}

// Snapshot captures the engine-relevant subset as an immutable copy.
func (s Settings) Snapshot() model.SettingsSnapshot {
	return model.SettingsSnapshot{
		DownloadDir:        s.DownloadDir,
		DefaultMode:        model.Mode(s.DefaultMode),
		AudioFormat:        s.AudioFormat,
		AudioBitrate:       s.AudioBitrate,
		IncludeAutoSubs:    s.IncludeAutoSubs,
		SpeedLimitKBps:     s.SpeedLimitKBps,
		CookiesFromBrowser: s.CookiesFromBrowser,
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
