package merge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/clipmerge/internal/artifact"
	"github.com/maauso/clipmerge/internal/media"
)

// BackgroundSynthesizer renders the blurred, darkened, canvas-sized
// background layer of a clip.
type BackgroundSynthesizer struct {
	engine media.Engine
	logger *slog.Logger
}

// NewBackgroundSynthesizer creates a BackgroundSynthesizer.
func NewBackgroundSynthesizer(engine media.Engine, logger *slog.Logger) *BackgroundSynthesizer {
	return &BackgroundSynthesizer{engine: engine, logger: logger}
}

// BackgroundGraph scales the clip to cover the canvas, center-crops the
// overflow, then blurs and darkens it.
func BackgroundGraph(canvas Canvas, sigma, opacity float64) media.Graph {
	return media.Graph{Base: []media.Op{
		{Kind: media.OpScaleCover, W: canvas.Width, H: canvas.Height},
		{Kind: media.OpCenterCrop, W: canvas.Width, H: canvas.Height},
		{Kind: media.OpBlur, Sigma: sigma},
		{Kind: media.OpDarken, Opacity: opacity},
	}}
}

// Synthesize renders the background of clip into a tracked temporary file.
// The background carries no audio.
func (b *BackgroundSynthesizer) Synthesize(ctx context.Context, tracker *artifact.Tracker, clip ClipRef, canvas Canvas, cfg RunConfig) (string, error) {
	out := tracker.Path(fmt.Sprintf("bg_%03d", clip.Index), ".mp4")

	err := b.engine.Compose(ctx, media.ComposeRequest{
		Inputs:      []string{clip.Path},
		Graph:       BackgroundGraph(canvas, cfg.BlurSigma, cfg.DarkenOpacity),
		Output:      out,
		FrameRate:   cfg.FrameRate,
		PixelFormat: cfg.PixelFormat,
		Audio:       media.AudioSpec{Mode: media.AudioNone},
	})
	if err != nil {
		return "", fmt.Errorf("synthesize background: %w", err)
	}

	b.logger.Debug("background synthesized", slog.String("clip", clip.Path), slog.String("output", out))
	return out, nil
}
