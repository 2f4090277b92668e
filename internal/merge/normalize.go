package merge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/clipmerge/internal/artifact"
	"github.com/maauso/clipmerge/internal/media"
)

// Normalizer renders a clip onto the canvas according to its FitPlan.
// Every normalized clip shares the canvas size, frame rate and pixel format
// of the run.
type Normalizer struct {
	engine     media.Engine
	background *BackgroundSynthesizer
	logger     *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(engine media.Engine, background *BackgroundSynthesizer, logger *slog.Logger) *Normalizer {
	return &Normalizer{engine: engine, background: background, logger: logger}
}

// Normalize renders clip into a tracked temporary file and returns its path
// together with the plan that was actually applied. A blur_background plan
// whose background cannot be synthesized degrades to pad.
func (n *Normalizer) Normalize(ctx context.Context, tracker *artifact.Tracker, clip ClipRef, canvas Canvas, plan FitPlan, cfg RunConfig) (string, FitPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Normalize)
	defer cancel()

	req := media.ComposeRequest{
		Output:      tracker.Path(fmt.Sprintf("norm_%03d", clip.Index), ".mp4"),
		FrameRate:   cfg.FrameRate,
		PixelFormat: cfg.PixelFormat,
	}

	switch plan.Strategy {
	case StrategyCrop:
		req.Inputs = []string{clip.Path}
		req.Graph = cropGraph(*plan.Crop, canvas)
		req.Audio = audioSpec(cfg, clip, 0)

	case StrategyBlurBackground:
		bg, err := n.background.Synthesize(ctx, tracker, clip, canvas, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return "", plan, fmt.Errorf("%w: %w", ErrComposeFailure, err)
			}
			n.logger.Warn("background synthesis failed, falling back to pad",
				slog.String("clip", clip.Path),
				slog.String("error", err.Error()),
			)
			plan = PadPlan(clip, canvas)
			req.Inputs = []string{clip.Path}
			req.Graph = padGraph(canvas)
			req.Audio = audioSpec(cfg, clip, 0)
			break
		}
		req.Inputs = []string{bg, clip.Path}
		req.Graph = overlayGraph(canvas)
		req.Audio = audioSpec(cfg, clip, 1)

	default:
		req.Inputs = []string{clip.Path}
		req.Graph = padGraph(canvas)
		req.Audio = audioSpec(cfg, clip, 0)
	}

	if err := n.engine.Compose(ctx, req); err != nil {
		return "", plan, fmt.Errorf("%w: %w", ErrComposeFailure, err)
	}

	n.logger.Debug("clip normalized",
		slog.String("clip", clip.Path),
		slog.String("strategy", string(plan.Strategy)),
		slog.String("canvas", canvas.String()),
		slog.String("output", req.Output),
	)
	return req.Output, plan, nil
}

func padGraph(canvas Canvas) media.Graph {
	return media.Graph{Base: []media.Op{
		{Kind: media.OpScaleFit, W: canvas.Width, H: canvas.Height},
		{Kind: media.OpPad, W: canvas.Width, H: canvas.Height},
	}}
}

func cropGraph(rect Rect, canvas Canvas) media.Graph {
	return media.Graph{Base: []media.Op{
		{Kind: media.OpCrop, W: rect.W, H: rect.H, X: rect.X, Y: rect.Y},
		{Kind: media.OpScaleExact, W: canvas.Width, H: canvas.Height},
	}}
}

// overlayGraph composites input 1, scaled to fit, over the background at
// input 0.
func overlayGraph(canvas Canvas) media.Graph {
	return media.Graph{
		Foreground:      []media.Op{{Kind: media.OpScaleFit, W: canvas.Width, H: canvas.Height}},
		ForegroundInput: 1,
	}
}

// audioSpec takes audio from input, or synthesizes silence when the clip has
// none so that every normalized clip carries an audio track.
func audioSpec(cfg RunConfig, clip ClipRef, input int) media.AudioSpec {
	if !clip.Info.HasAudio {
		input = -1
	}
	return media.AudioSpec{Mode: cfg.Audio, Input: input}
}
