package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/samber/lo"

	"github.com/maauso/clipmerge/internal/artifact"
	"github.com/maauso/clipmerge/internal/media"
)

// outputExt is the container of every merged output.
const outputExt = ".mp4"

// Partition splits clips into merge groups in input order. A size of zero
// yields a single group of every clip. Otherwise clips are chunked into
// groups of exactly size; a trailing partial chunk is returned as remainder
// and never merged.
func Partition(clips []ClipRef, size int) (groups []MergeGroup, remainder []ClipRef) {
	if len(clips) == 0 {
		return nil, nil
	}
	if size <= 0 {
		return []MergeGroup{{Index: 0, Clips: clips}}, nil
	}

	chunks := lo.Chunk(clips, size)
	if last := chunks[len(chunks)-1]; len(last) < size {
		remainder = last
		chunks = chunks[:len(chunks)-1]
	}
	groups = lo.Map(chunks, func(c []ClipRef, i int) MergeGroup {
		return MergeGroup{Index: i + 1, Clips: c}
	})
	return groups, remainder
}

// OutputStem names a group's output after its first clip: "<stem>_merged_all"
// in simple mode and "<stem>_group<N>" in group mode.
func OutputStem(group MergeGroup) string {
	stem := artifact.Stem(group.Clips[0].Path)
	if group.Index == 0 {
		return stem + "_merged_all"
	}
	return fmt.Sprintf("%s_group%d", stem, group.Index)
}

// Assembler concatenates normalized clips into a group's final output.
type Assembler struct {
	engine media.Engine
	logger *slog.Logger
	now    func() time.Time
}

// NewAssembler creates an Assembler.
func NewAssembler(engine media.Engine, logger *slog.Logger) *Assembler {
	return &Assembler{engine: engine, logger: logger, now: time.Now}
}

// Assemble writes the concat list for normalized through the tracker,
// reserves a collision-free output path in cfg.OutputDir and concatenates.
// totalDuration (seconds) scales the timeout. On failure no partial output
// is left behind.
func (a *Assembler) Assemble(ctx context.Context, tracker *artifact.Tracker, group MergeGroup, normalized []string, totalDuration float64, cfg RunConfig) (string, error) {
	var list bytes.Buffer
	if err := media.WriteConcatList(&list, normalized); err != nil {
		return "", fmt.Errorf("%w: %w", ErrConcatFailure, err)
	}
	listPath, err := tracker.SaveTemp(ctx, "concat", &list)
	if err != nil {
		return "", fmt.Errorf("%w: write concat list: %w", ErrConcatFailure, err)
	}

	output, err := artifact.ReserveOutput(cfg.OutputDir, OutputStem(group), outputExt, a.now)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConcatFailure, err)
	}

	timeout := cfg.Timeouts.Concat(totalDuration)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.logger.Info("assembling group",
		slog.Int("group", group.Index),
		slog.Int("clips", len(normalized)),
		slog.String("mode", string(cfg.Assembly)),
		slog.Duration("timeout", timeout),
		slog.String("output", output),
	)

	err = a.engine.Concat(ctx, media.ConcatRequest{ListFile: listPath, Output: output, Mode: cfg.Assembly})
	if err != nil {
		if rmErr := os.Remove(output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			a.logger.Warn("failed to remove partial output", slog.String("output", output), slog.String("error", rmErr.Error()))
		}
		return "", fmt.Errorf("%w: %w", ErrConcatFailure, err)
	}
	return output, nil
}
