package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxCounter bounds the numeric suffixes tried before falling back to a
// timestamp.
const maxCounter = 999

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReserveOutput creates an empty file named stem+ext in dir, or
// stem_1+ext, stem_2+ext and so on when the name is taken, and returns its
// path. Creation is exclusive, so an existing file is never overwritten and
// two reservations never share a name. now supplies the timestamp used once
// the counter is exhausted.
func ReserveOutput(dir, stem, ext string, now func() time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	candidates := func(yield func(string) bool) {
		if !yield(stem + ext) {
			return
		}
		for i := 1; i <= maxCounter; i++ {
			if !yield(fmt.Sprintf("%s_%d%s", stem, i, ext)) {
				return
			}
		}
		yield(fmt.Sprintf("%s_%s%s", stem, now().Format("20060102-150405.000000000"), ext))
	}

	for name := range candidates {
		p := filepath.Join(dir, name)
		f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0640) // #nosec G304 - dir is the configured output directory
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserve output %s: %w", p, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("reserve output %s: %w", p, err)
		}
		return p, nil
	}
	return "", fmt.Errorf("reserve output %s%s in %s: every candidate name is taken", stem, ext, dir)
}
