package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipmerge/internal/media"
)

func clipOf(w, h int) ClipRef {
	return ClipRef{Path: "/clips/c.mp4", Info: media.ClipInfo{Width: w, Height: h, HasAudio: true}}
}

func TestCropRect(t *testing.T) {
	landscape := 16.0 / 9.0
	portrait := 9.0 / 16.0

	tests := []struct {
		name   string
		w, h   int
		target float64
		want   Rect
	}{
		{name: "matching aspect is untouched", w: 1920, h: 1080, target: landscape, want: Rect{W: 1920, H: 1080}},
		{name: "wider source crops width", w: 2560, h: 1080, target: landscape, want: Rect{X: 320, W: 1920, H: 1080}},
		{name: "4:3 crops height", w: 1440, h: 1080, target: landscape, want: Rect{Y: 135, W: 1440, H: 810}},
		{name: "square crops height to the exact aspect", w: 1080, h: 1080, target: landscape, want: Rect{Y: 236, W: 1080, H: 608}},
		{name: "portrait under landscape crops height", w: 1080, h: 1920, target: landscape, want: Rect{Y: 656, W: 1080, H: 608}},
		{name: "landscape under portrait crops width", w: 1920, h: 1080, target: portrait, want: Rect{X: 656, W: 608, H: 1080}},
		{name: "2.39:1 crops width", w: 1920, h: 804, target: landscape, want: Rect{X: 245, W: 1430, H: 804}},
		{name: "2.4:1 crops width", w: 2592, h: 1080, target: landscape, want: Rect{X: 336, W: 1920, H: 1080}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropRect(tt.w, tt.h, tt.target)
			assert.Equal(t, tt.want, got)
			assert.Zero(t, got.W%2)
			assert.Zero(t, got.H%2)
			assert.LessOrEqual(t, got.X+got.W, tt.w)
			assert.LessOrEqual(t, got.Y+got.H, tt.h)
			assert.InDelta(t, float64(got.H)*tt.target, float64(got.W), 1.5)
		})
	}
}

func TestLossLimitedCrop(t *testing.T) {
	landscape := 16.0 / 9.0

	tests := []struct {
		name string
		w, h int
		want Rect
	}{
		{name: "reachable aspect matches CropRect", w: 1440, h: 1080, want: Rect{Y: 135, W: 1440, H: 810}},
		{name: "square is clamped to max loss", w: 1080, h: 1080, want: Rect{Y: 135, W: 1080, H: 810}},
		{name: "portrait is clamped to max loss", w: 1080, h: 1920, want: Rect{Y: 240, W: 1080, H: 1440}},
		{name: "2.39:1 keeps three quarters of the width", w: 1920, h: 804, want: Rect{X: 240, W: 1440, H: 804}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lossLimitedCrop(tt.w, tt.h, landscape))
		})
	}
}

func TestPlanFit(t *testing.T) {
	fixed := DefaultFixedCanvas

	t.Run("square under crop 16:9 falls back to blurred background", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")
		cfg.Policy = PolicyCropToAspect

		plan := PlanFit(clipOf(1080, 1080), cfg.Aspect.Canvas(), cfg)

		assert.Equal(t, StrategyBlurBackground, plan.Strategy)
		assert.Nil(t, plan.Crop)
		assert.Equal(t, Size{W: 1080, H: 1080}, plan.Scaled)
		assert.Equal(t, Point{X: 420, Y: 0}, plan.Offset)
	})

	t.Run("4:3 under crop 16:9 crops", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")
		cfg.Policy = PolicyCropToAspect

		plan := PlanFit(clipOf(1440, 1080), cfg.Aspect.Canvas(), cfg)

		assert.Equal(t, StrategyCrop, plan.Strategy)
		require.NotNil(t, plan.Crop)
		assert.Equal(t, Rect{Y: 135, W: 1440, H: 810}, *plan.Crop)
		assert.Equal(t, Size{W: 1920, H: 1080}, plan.Scaled)
	})

	t.Run("tolerance is configurable", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")
		cfg.Policy = PolicyCropToAspect
		cfg.AspectTolerance = 0.5

		plan := PlanFit(clipOf(1080, 1080), cfg.Aspect.Canvas(), cfg)

		assert.Equal(t, StrategyCrop, plan.Strategy)
		require.NotNil(t, plan.Crop)
		assert.Equal(t, Rect{Y: 236, W: 1080, H: 608}, *plan.Crop)
	})

	for _, tc := range []struct {
		name string
		w, h int
	}{
		{name: "2.39:1", w: 1920, h: 804},
		{name: "2.4:1", w: 2592, h: 1080},
	} {
		t.Run(tc.name+" under crop 16:9 keeps the canvas aspect", func(t *testing.T) {
			cfg := DefaultRunConfig("/out")
			cfg.Policy = PolicyCropToAspect
			canvas := cfg.Aspect.Canvas()

			plan := PlanFit(clipOf(tc.w, tc.h), canvas, cfg)

			assert.Equal(t, StrategyCrop, plan.Strategy)
			require.NotNil(t, plan.Crop)
			assert.Equal(t, Size{W: canvas.Width, H: canvas.Height}, plan.Scaled)
			// one source pixel of width either way
			onePixel := 1 / float64(plan.Crop.H)
			assert.InDelta(t, canvas.AspectRatio(), plan.Crop.AspectRatio(), onePixel)
		})
	}

	t.Run("fixed pad letterboxes a portrait clip", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")
		cfg.Policy = PolicyFixedTarget

		plan := PlanFit(clipOf(1080, 1920), fixed, cfg)

		assert.Equal(t, StrategyPad, plan.Strategy)
		assert.Equal(t, Size{W: 608, H: 1080}, plan.Scaled)
		assert.Equal(t, Point{X: 656, Y: 0}, plan.Offset)
	})

	t.Run("blur style with matching aspect pads", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")
		cfg.Background = BackgroundBlur

		plan := PlanFit(clipOf(1280, 720), fixed, cfg)

		assert.Equal(t, StrategyPad, plan.Strategy)
		assert.Equal(t, Size{W: 1920, H: 1080}, plan.Scaled)
		assert.Equal(t, Point{}, plan.Offset)
	})

	t.Run("blur style with different aspect blurs", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")
		cfg.Background = BackgroundBlur

		plan := PlanFit(clipOf(1080, 1920), fixed, cfg)

		assert.Equal(t, StrategyBlurBackground, plan.Strategy)
	})

	t.Run("wide clip is pillarboxed vertically", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")

		plan := PlanFit(clipOf(2560, 1080), fixed, cfg)

		assert.Equal(t, Size{W: 1920, H: 810}, plan.Scaled)
		assert.Equal(t, Point{X: 0, Y: 135}, plan.Offset)
	})
}

func TestPadPlan(t *testing.T) {
	plan := PadPlan(clipOf(1080, 1080), DefaultFixedCanvas)

	assert.Equal(t, StrategyPad, plan.Strategy)
	assert.Equal(t, Size{W: 1080, H: 1080}, plan.Scaled)
	assert.Equal(t, Point{X: 420}, plan.Offset)
}
