package merge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maauso/clipmerge/internal/media"
)

// Prober reads clip properties with a per-clip timeout.
type Prober struct {
	engine  media.Engine
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber creates a Prober.
func NewProber(engine media.Engine, timeout time.Duration, logger *slog.Logger) *Prober {
	return &Prober{engine: engine, timeout: timeout, logger: logger}
}

// Probe returns the clip reference for path. On failure the returned
// reference carries the path with zero dimensions and the error wraps
// ErrProbeFailure.
func (p *Prober) Probe(ctx context.Context, index int, path string) (ClipRef, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	ref := ClipRef{Index: index, Path: path}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	info, err := p.engine.Probe(ctx, path)
	if err != nil {
		return ref, fmt.Errorf("%w: %w", ErrProbeFailure, err)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return ref, fmt.Errorf("%w: %w", ErrProbeFailure, media.ErrInvalidDimensions)
	}
	ref.Info = info

	p.logger.Debug("clip probed",
		slog.String("clip", path),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.Float64("fps", info.FrameRate),
		slog.Float64("duration", info.Duration),
		slog.Bool("has_audio", info.HasAudio),
	)
	return ref, nil
}

// ProbeAll probes clips in input order. Failed clips are kept in the
// returned list (with zero dimensions) so grouping still follows the input
// order; their errors are returned alongside.
func (p *Prober) ProbeAll(ctx context.Context, paths []string) ([]ClipRef, []Failure, error) {
	refs := make([]ClipRef, 0, len(paths))
	var failures []Failure
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return refs, failures, err
		}
		ref, err := p.Probe(ctx, i, path)
		if err != nil {
			if ctx.Err() != nil {
				return refs, failures, ctx.Err()
			}
			p.logger.Warn("clip probe failed", slog.String("clip", path), slog.String("error", err.Error()))
			failures = append(failures, Failure{Kind: ErrProbeFailure, Clip: ref.Path, Err: unwrapKind(err, ErrProbeFailure)})
		}
		refs = append(refs, ref)
	}
	return refs, failures, nil
}
