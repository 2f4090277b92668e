// Package artifact manages the files a merge run creates: intermediate
// renders that must be removed once their group finishes, and final outputs
// that must never overwrite an existing file.
package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/maauso/clipmerge/internal/storage"
)

// Tracker records the intermediate files of one merge group. Cleanup removes
// every tracked file; it is safe to call on success, failure and
// cancellation paths.
type Tracker struct {
	store  storage.Storage
	prefix string
	logger *slog.Logger

	mu    sync.Mutex
	paths []string
}

// NewTracker creates a Tracker whose file names start with prefix.
func NewTracker(store storage.Storage, prefix string, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, prefix: prefix, logger: logger}
}

// Path returns a tracked path in the storage temp directory. The file is not
// created; an engine is expected to write it.
func (t *Tracker) Path(name, ext string) string {
	p := filepath.Join(t.store.TempDir(), fmt.Sprintf("%s_%s%s", t.prefix, name, ext))
	t.Track(p)
	return p
}

// Track adds an existing path to the tracked set.
func (t *Tracker) Track(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

// SaveTemp writes data through the storage and tracks the resulting file.
func (t *Tracker) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	p, err := t.store.SaveTemp(ctx, t.prefix+"_"+name, data)
	if err != nil {
		return "", err
	}
	t.Track(p)
	return p, nil
}

// Tracked returns a copy of the tracked paths.
func (t *Tracker) Tracked() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

// Cleanup removes every tracked file and forgets them. It ignores
// cancellation of ctx so that cancelled runs still clean up.
func (t *Tracker) Cleanup(ctx context.Context) error {
	t.mu.Lock()
	paths := t.paths
	t.paths = nil
	t.mu.Unlock()

	if len(paths) == 0 {
		return nil
	}
	if err := t.store.CleanupTemp(context.WithoutCancel(ctx), paths); err != nil {
		t.logger.Warn("failed to clean up intermediate files",
			slog.String("prefix", t.prefix),
			slog.Int("count", len(paths)),
			slog.String("error", err.Error()),
		)
		return err
	}
	t.logger.Debug("intermediate files removed", slog.String("prefix", t.prefix), slog.Int("count", len(paths)))
	return nil
}
