package platform

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

// Executable names
const (
	FFmpegCommand  = "ffmpeg"
	FFprobeCommand = "ffprobe"
)

var (
	ffmpegOnce sync.Once
	ffmpegPath string
	ffmpegErr  error
)

// FFmpegPath resolves the media processor binary once per process and caches
// the result. Search order: directory of the uvd executable, current working
// directory, system PATH, well-known installation paths. Concurrent reads of
// the cached value are safe.
func FFmpegPath() (string, error) {
	ffmpegOnce.Do(func() {
		ffmpegPath, ffmpegErr = locateFFmpeg()
	})
	return ffmpegPath, ffmpegErr
}

func locateFFmpeg() (string, error) {
	name := FFmpegCommand
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), name)
		if fileExists(bundled) {
			return bundled, nil
		}
	}

	if wd, err := os.Getwd(); err == nil {
		local := filepath.Join(wd, name)
		if fileExists(local) {
			return local, nil
		}
	}

	if p, err := exec.LookPath(FFmpegCommand); err == nil {
		return p, nil
	}

	for _, p := range wellKnownFFmpegPaths() {
		if fileExists(p) {
			return p, nil
		}
	}

	return "", model.NewJobError(model.ErrProcessorNotFound, "ffmpeg not found in executable dir, working dir, PATH or well-known locations")
}

func wellKnownFFmpegPaths() []string {
	switch runtime.GOOS {
	case "windows":
		paths := []string{`C:\ffmpeg\bin\ffmpeg.exe`}
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			paths = append(paths, filepath.Join(localAppData, "ffmpeg", "bin", "ffmpeg.exe"))
		}
		return paths
	case "darwin":
		return []string{"/opt/homebrew/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	default:
		return []string{"/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	}
}

// FFprobePath returns the ffprobe binary next to the resolved ffmpeg, falling
// back to PATH lookup.
func FFprobePath() (string, error) {
	fp, err := FFmpegPath()
	if err != nil {
		return "", err
	}
	name := FFprobeCommand
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	sibling := filepath.Join(filepath.Dir(fp), name)
	if fileExists(sibling) {
		return sibling, nil
	}
	if p, lookErr := exec.LookPath(FFprobeCommand); lookErr == nil {
		return p, nil
	}
	return "", model.NewJobError(model.ErrProcessorNotFound, "ffprobe not found next to ffmpeg or in PATH")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
