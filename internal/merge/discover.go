package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// videoExtensions lists the extensions Discover accepts (lowercase).
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
	".wmv":  true,
	".flv":  true,
	".ts":   true,
	".m2ts": true,
	".mpg":  true,
	".mpeg": true,
	".3gp":  true,
}

// mergedOutput matches the stems OutputStem and artifact.ReserveOutput
// produce, including the counter and timestamp suffixes.
var mergedOutput = regexp.MustCompile(`_(merged_all|group\d+)(_\d+|_\d{8}-\d{6}\.\d{9})?$`)

// Discover lists the video files directly inside dir, sorted by name so the
// merge order is deterministic. Hidden files and earlier merge outputs are
// ignored so a rerun over the same directory merges only the source clips.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		if videoExtensions[strings.ToLower(ext)] && !mergedOutput.MatchString(strings.TrimSuffix(name, ext)) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	slices.Sort(files)
	return files, nil
}
