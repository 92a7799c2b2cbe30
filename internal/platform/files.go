package platform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Artifact is one file produced by a download run.
type Artifact struct {
	Path string
	Size int64
	Ext  string // lower-case, without dot
}

var unsafeSuffixChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeSuffix strips filesystem-hostile characters from a filename suffix
// tag such as "[1920x1080 avc1]".
func SanitizeSuffix(suffix string) string {
	cleaned := unsafeSuffixChars.ReplaceAllString(suffix, "_")
	return strings.TrimRight(strings.TrimSpace(cleaned), ".")
}

// MakeWorkDir creates a scratch directory for one job's raw artifacts.
func MakeWorkDir() (string, error) {
	dir, err := os.MkdirTemp("", "uvd-job-")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return dir, nil
}

// CreateDirectoryIfNotExists creates dirPath and all parents.
func CreateDirectoryIfNotExists(dirPath string) error {
	info, err := os.Stat(dirPath)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists and is not a directory", dirPath)
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dirPath, 0o755)
}

// ScanArtifacts lists the files in a work directory, largest first.
// yt-dlp partial files (.part, .ytdl) are excluded.
func ScanArtifacts(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if ext == "part" || ext == "ytdl" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Path: filepath.Join(dir, name),
			Size: info.Size(),
			Ext:  ext,
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Size > artifacts[j].Size })
	return artifacts, nil
}

// MoveToDestination moves src into destDir, optionally appending a sanitized
// suffix tag before the extension. An existing file at the target path is
// replaced. Falls back to copy+remove across filesystems.
func MoveToDestination(src, destDir, suffix string) (string, error) {
	if err := CreateDirectoryIfNotExists(destDir); err != nil {
		return "", err
	}

	base := filepath.Base(src)
	if suffix = SanitizeSuffix(suffix); suffix != "" {
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		if !strings.HasSuffix(stem, suffix) {
			base = stem + " " + suffix + ext
		}
	}

	dest := filepath.Join(destDir, base)
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("replace %s: %w", dest, err)
	}

	if err := os.Rename(src, dest); err == nil {
		return dest, nil
	}
	if err := copyFile(src, dest); err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return dest, fmt.Errorf("remove staged file %s: %w", src, err)
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	return out.Close()
}
