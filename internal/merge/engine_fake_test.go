package merge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maauso/clipmerge/internal/media"
	"github.com/maauso/clipmerge/internal/storage"
)

var concatLine = regexp.MustCompile(`(?m)^file '(.*)'$`)

// fakeEngine is an in-memory media.Engine. Compose and Concat write their
// outputs so that file lifecycle can be asserted on disk.
type fakeEngine struct {
	mu sync.Mutex

	infos      map[string]media.ClipInfo
	probeErr   map[string]error
	composeErr func(req media.ComposeRequest) error
	concatErr  error

	composes     []media.ComposeRequest
	concats      []media.ConcatRequest
	concatInputs [][]string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{infos: map[string]media.ClipInfo{}, probeErr: map[string]error{}}
}

func (f *fakeEngine) addClip(name string, w, h int, hasAudio bool) {
	f.infos[name] = media.ClipInfo{Codec: "h264", Width: w, Height: h, FrameRate: 30, Duration: 4, HasAudio: hasAudio}
}

func (f *fakeEngine) Probe(_ context.Context, path string) (media.ClipInfo, error) {
	name := filepath.Base(path)
	if err, ok := f.probeErr[name]; ok {
		return media.ClipInfo{}, err
	}
	info, ok := f.infos[name]
	if !ok {
		return media.ClipInfo{}, errors.New("no such clip")
	}
	return info, nil
}

func (f *fakeEngine) Compose(ctx context.Context, req media.ComposeRequest) error {
	f.mu.Lock()
	f.composes = append(f.composes, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(req.Output, []byte("composed"), 0600); err != nil {
		return err
	}
	if f.composeErr != nil {
		return f.composeErr(req)
	}
	return nil
}

func (f *fakeEngine) Concat(ctx context.Context, req media.ConcatRequest) error {
	list, err := os.ReadFile(req.ListFile)
	if err != nil {
		return err
	}
	var inputs []string
	for _, m := range concatLine.FindAllStringSubmatch(string(list), -1) {
		inputs = append(inputs, m[1])
	}

	f.mu.Lock()
	f.concats = append(f.concats, req)
	f.concatInputs = append(f.concatInputs, inputs)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(req.Output, []byte("partial"), 0600); err != nil {
		return err
	}
	return f.concatErr
}

// normalizeRequests returns the compose requests that produced normalized
// clips, skipping background renders.
func (f *fakeEngine) normalizeRequests() []media.ComposeRequest {
	var out []media.ComposeRequest
	for _, r := range f.composes {
		if r.Audio.Mode != media.AudioNone {
			out = append(out, r)
		}
	}
	return out
}

type testEnv struct {
	engine  *fakeEngine
	store   *storage.LocalStorage
	tempDir string
	outDir  string
	inDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tempDir := t.TempDir()
	store, err := storage.NewLocalStorage(tempDir)
	require.NoError(t, err)
	return &testEnv{
		engine:  newFakeEngine(),
		store:   store,
		tempDir: tempDir,
		outDir:  t.TempDir(),
		inDir:   t.TempDir(),
	}
}

func (e *testEnv) clip(name string) string {
	return filepath.Join(e.inDir, name)
}

func (e *testEnv) runner(opts ...RunnerOption) *Runner {
	return NewRunner(e.engine, e.store, discardLogger(), opts...)
}

func (e *testEnv) config() RunConfig {
	return DefaultRunConfig(e.outDir)
}

func (e *testEnv) requireTempDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.tempDir)
	require.NoError(t, err)
	require.Empty(t, entries, "intermediate files must be removed")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
