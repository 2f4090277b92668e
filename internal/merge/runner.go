package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/maauso/clipmerge/internal/artifact"
	"github.com/maauso/clipmerge/internal/media"
	"github.com/maauso/clipmerge/internal/storage"
)

// RunResult summarizes a merge run.
type RunResult struct {
	// RunID identifies the run in logs and intermediate file names.
	RunID string
	// Strategy names the policy and background of the run.
	Strategy string
	// SuccessCount is the number of outputs written.
	SuccessCount int
	// ErrorCount counts probe, compose and concat failures.
	ErrorCount int
	// OutputPaths lists the written outputs in group order.
	OutputPaths []string
	// OutputURLs lists published URLs, aligned with OutputPaths when publishing.
	OutputURLs []string
	// Skipped lists clips left out of group mode because they did not fill a group.
	Skipped []string
	Groups  []GroupResult
	// Failures lists every failure, including skipped incomplete groups.
	Failures []Failure
}

// GroupResult is the outcome of one merge group.
type GroupResult struct {
	Index  int
	Canvas Canvas
	Clips  []ClipOutcome
	Output string
	URL    string
	Err    error
}

// ClipOutcome is the fate of one clip within a group.
type ClipOutcome struct {
	Path     string
	Strategy Strategy
	Err      error
}

// Runner executes merge runs. A Runner is safe for concurrent use; each run
// keeps its own state.
type Runner struct {
	engine     media.Engine
	store      storage.Storage
	logger     *slog.Logger
	observer   Observer
	normalizer *Normalizer
	assembler  *Assembler
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithObserver sets the progress observer.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewRunner creates a Runner that encodes with engine and keeps intermediate
// files in store.
func NewRunner(engine media.Engine, store storage.Storage, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		engine:     engine,
		store:      store,
		logger:     logger,
		observer:   nopObserver{},
		normalizer: NewNormalizer(engine, NewBackgroundSynthesizer(engine, logger), logger),
		assembler:  NewAssembler(engine, logger),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run holds the mutable state of one Run call.
type run struct {
	*Runner
	id       string
	cfg      RunConfig
	observer Observer
	result   *RunResult
	step     int
	steps    int
}

// Run merges clips under cfg. Probe, compose and concat failures are
// recorded in the result and never abort the run. The returned error is
// non-nil only for invalid configuration, fewer than two clips, or
// cancellation of ctx; on cancellation the partial result is returned too.
func (r *Runner) Run(ctx context.Context, clips []string, cfg RunConfig) (*RunResult, error) {
	return r.RunObserved(ctx, clips, cfg, nil)
}

// RunObserved is Run with an observer for this run only, used in addition
// to the Runner's observer.
func (r *Runner) RunObserved(ctx context.Context, clips []string, cfg RunConfig, observer Observer) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(clips) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewClips, len(clips))
	}

	rn := &run{
		Runner:   r,
		id:       uuid.NewString(),
		cfg:      cfg,
		observer: r.observer,
		result:   &RunResult{Strategy: cfg.StrategyName()},
	}
	if observer != nil {
		outer := r.observer
		rn.observer = ObserverFunc(func(e Event) {
			outer.Observe(e)
			observer.Observe(e)
		})
	}
	rn.result.RunID = rn.id

	logger := r.logger.With(slog.String("run_id", rn.id))
	logger.Info("merge run started",
		slog.Int("clips", len(clips)),
		slog.String("strategy", rn.result.Strategy),
		slog.Int("group_size", cfg.GroupSize),
		slog.String("assembly", string(cfg.Assembly)),
		slog.String("output_dir", cfg.OutputDir),
	)

	refs, probeFailures, err := NewProber(r.engine, cfg.Timeouts.Probe, logger).ProbeAll(ctx, clips)
	rn.result.Failures = append(rn.result.Failures, probeFailures...)
	rn.result.ErrorCount += len(probeFailures)
	for _, f := range probeFailures {
		rn.emit(Event{Kind: EventClipFailed, Clip: f.Clip, Err: f})
	}
	if err != nil {
		return rn.result, err
	}

	groups, remainder := Partition(refs, cfg.GroupSize)
	if len(remainder) > 0 {
		rn.skip(logger, remainder)
	}

	rn.steps = lo.SumBy(groups, func(g MergeGroup) int {
		return lo.CountBy(g.Clips, ClipRef.Valid) + 1
	})

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			logger.Warn("merge run cancelled", slog.Int("next_group", g.Index))
			return rn.result, err
		}
		rn.runGroup(ctx, logger, g)
	}

	logger.Info("merge run finished",
		slog.Int("success_count", rn.result.SuccessCount),
		slog.Int("error_count", rn.result.ErrorCount),
		slog.Int("skipped", len(rn.result.Skipped)),
	)
	if err := ctx.Err(); err != nil {
		return rn.result, err
	}
	return rn.result, nil
}

func (rn *run) skip(logger *slog.Logger, clips []ClipRef) {
	paths := lo.Map(clips, func(c ClipRef, _ int) string { return c.Path })
	rn.result.Skipped = append(rn.result.Skipped, paths...)
	rn.result.Failures = append(rn.result.Failures, Failure{
		Kind: ErrIncompleteGroup,
		Err:  fmt.Errorf("%d trailing clip(s) do not fill a group of %d", len(clips), rn.cfg.GroupSize),
	})
	logger.Warn("trailing clips skipped",
		slog.Int("count", len(clips)),
		slog.Int("group_size", rn.cfg.GroupSize),
	)
	for _, p := range paths {
		rn.emit(Event{Kind: EventClipSkipped, Clip: p})
	}
}

func (rn *run) emit(e Event) {
	switch e.Kind {
	case EventClipNormalized, EventGroupAssembled, EventGroupFailed:
		rn.step++
	case EventClipFailed:
		if errors.Is(e.Err, ErrComposeFailure) {
			rn.step++
		}
	}
	e.Step, e.Steps = min(rn.step, rn.steps), rn.steps
	rn.observer.Observe(e)
}

// runGroup processes one group. Intermediate files are removed before it
// returns, whatever the outcome.
func (rn *run) runGroup(ctx context.Context, logger *slog.Logger, g MergeGroup) {
	logger = logger.With(slog.Int("group", g.Index))
	res := GroupResult{Index: g.Index}
	defer func() { rn.result.Groups = append(rn.result.Groups, res) }()

	tracker := artifact.NewTracker(rn.store, fmt.Sprintf(".clipmerge_%s_g%d", rn.id[:8], g.Index), logger)
	defer func() { _ = tracker.Cleanup(ctx) }()

	valid := lo.Filter(g.Clips, func(c ClipRef, _ int) bool { return c.Valid() })
	for _, c := range g.Clips {
		if !c.Valid() {
			res.Clips = append(res.Clips, ClipOutcome{Path: c.Path, Err: ErrProbeFailure})
		}
	}
	if len(valid) == 0 {
		rn.failGroup(logger, &res, ErrNoUsableClips, false)
		return
	}

	canvas, err := SelectCanvas(rn.cfg, valid)
	if err != nil {
		rn.failGroup(logger, &res, err, false)
		return
	}
	res.Canvas = canvas
	logger.Info("group canvas selected", slog.String("canvas", canvas.String()), slog.Int("clips", len(valid)))

	var normalized []string
	var duration float64
	for _, clip := range valid {
		if ctx.Err() != nil {
			rn.failGroup(logger, &res, ctx.Err(), false)
			return
		}

		plan := PlanFit(clip, canvas, rn.cfg)
		out, applied, err := rn.normalizer.Normalize(ctx, tracker, clip, canvas, plan, rn.cfg)
		if err != nil {
			if ctx.Err() != nil {
				rn.failGroup(logger, &res, ctx.Err(), false)
				return
			}
			f := Failure{Kind: ErrComposeFailure, Clip: clip.Path, Group: g.Index, Err: unwrapKind(err, ErrComposeFailure)}
			rn.result.Failures = append(rn.result.Failures, f)
			rn.result.ErrorCount++
			res.Clips = append(res.Clips, ClipOutcome{Path: clip.Path, Strategy: plan.Strategy, Err: err})
			logger.Warn("clip normalization failed", slog.String("clip", clip.Path), slog.String("error", err.Error()))
			rn.emit(Event{Kind: EventClipFailed, Group: g.Index, Clip: clip.Path, Strategy: plan.Strategy, Err: f})
			continue
		}

		normalized = append(normalized, out)
		duration += clip.Info.Duration
		res.Clips = append(res.Clips, ClipOutcome{Path: clip.Path, Strategy: applied.Strategy})
		rn.emit(Event{Kind: EventClipNormalized, Group: g.Index, Clip: clip.Path, Strategy: applied.Strategy})
	}

	if len(normalized) == 0 {
		rn.failGroup(logger, &res, ErrNoUsableClips, false)
		return
	}

	output, err := rn.assembler.Assemble(ctx, tracker, g, normalized, duration, rn.cfg)
	if err != nil {
		if ctx.Err() != nil {
			rn.failGroup(logger, &res, ctx.Err(), false)
			return
		}
		rn.failGroup(logger, &res, err, true)
		return
	}

	res.Output = output
	rn.result.SuccessCount++
	rn.result.OutputPaths = append(rn.result.OutputPaths, output)
	if rn.cfg.Publish {
		res.URL = rn.publish(ctx, logger, output)
		if res.URL != "" {
			rn.result.OutputURLs = append(rn.result.OutputURLs, res.URL)
		}
	}

	logger.Info("group assembled", slog.String("output", output), slog.Int("clips", len(normalized)))
	rn.emit(Event{Kind: EventGroupAssembled, Group: g.Index, Output: output})
}

// failGroup records a group without output. Concat failures count as
// errors; other causes were already counted per clip or are cancellations.
func (rn *run) failGroup(logger *slog.Logger, res *GroupResult, err error, concat bool) {
	res.Err = err
	if concat {
		rn.result.ErrorCount++
		rn.result.Failures = append(rn.result.Failures, Failure{Kind: ErrConcatFailure, Group: res.Index, Err: unwrapKind(err, ErrConcatFailure)})
	} else if errors.Is(err, ErrNoUsableClips) {
		rn.result.Failures = append(rn.result.Failures, Failure{Kind: ErrNoUsableClips, Group: res.Index})
	}
	logger.Error("group failed", slog.String("error", err.Error()))
	rn.emit(Event{Kind: EventGroupFailed, Group: res.Index, Err: err})
}

func (rn *run) publish(ctx context.Context, logger *slog.Logger, output string) string {
	rc, err := rn.store.LoadTemp(ctx, output)
	if err != nil {
		logger.Warn("failed to open output for publishing", slog.String("output", output), slog.String("error", err.Error()))
		return ""
	}
	defer func(c io.Closer) { _ = c.Close() }(rc)

	url, err := rn.store.Publish(ctx, filepath.Base(output), rc)
	if err != nil {
		logger.Warn("failed to publish output", slog.String("output", output), slog.String("error", err.Error()))
		return ""
	}
	logger.Info("output published", slog.String("url", url))
	return url
}
