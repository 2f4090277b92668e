package merge

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/clipmerge/internal/media"
)

// Defaults for RunConfig.
const (
	DefaultFrameRate       = 30
	DefaultPixelFormat     = "yuv420p"
	DefaultAspectTolerance = 0.05
	DefaultBlurSigma       = 20
	DefaultDarkenOpacity   = 0.4

	DefaultProbeTimeout        = 30 * time.Second
	DefaultNormalizeTimeout    = 10 * time.Minute
	DefaultConcatBaseTimeout   = 2 * time.Minute
	DefaultConcatTimeoutFactor = 2.0
)

// Timeouts bounds every external media operation.
type Timeouts struct {
	Probe     time.Duration `validate:"gt=0s"`
	Normalize time.Duration `validate:"gt=0s"`
	// Concat scales with content: ConcatBase + ConcatFactor × total duration.
	ConcatBase   time.Duration `validate:"gt=0s"`
	ConcatFactor float64       `validate:"gte=0"`
}

// Concat returns the concat timeout for the given total content duration.
func (t Timeouts) Concat(totalSeconds float64) time.Duration {
	return t.ConcatBase + time.Duration(t.ConcatFactor*totalSeconds*float64(time.Second))
}

// RunConfig is the explicit configuration of a merge run.
type RunConfig struct {
	OutputDir  string          `validate:"required"`
	Policy     Policy          `validate:"min=0,max=2"`
	Background BackgroundStyle `validate:"min=0,max=1"`
	// Aspect is required by PolicyCropToAspect.
	Aspect      Aspect
	FixedCanvas Canvas
	// GroupSize of zero merges all clips into a single output.
	GroupSize int `validate:"gte=0,ne=1"`

	Assembly media.ConcatMode `validate:"oneof=reencode copy"`
	Audio    media.AudioMode  `validate:"oneof=reencode passthrough"`

	FrameRate   int    `validate:"gt=0,lte=240"`
	PixelFormat string `validate:"required"`

	AspectTolerance float64 `validate:"gt=0,lt=1"`
	BlurSigma       float64 `validate:"gt=0"`
	DarkenOpacity   float64 `validate:"gte=0,lt=1"`

	Timeouts Timeouts

	// Publish uploads each output through the configured storage.
	Publish bool
}

// DefaultRunConfig returns a RunConfig with every default applied.
func DefaultRunConfig(outputDir string) RunConfig {
	return RunConfig{
		OutputDir:       outputDir,
		Policy:          PolicyFirstClip,
		Background:      BackgroundPad,
		Aspect:          Aspect16x9,
		FixedCanvas:     DefaultFixedCanvas,
		Assembly:        media.ConcatReencode,
		Audio:           media.AudioReencode,
		FrameRate:       DefaultFrameRate,
		PixelFormat:     DefaultPixelFormat,
		AspectTolerance: DefaultAspectTolerance,
		BlurSigma:       DefaultBlurSigma,
		DarkenOpacity:   DefaultDarkenOpacity,
		Timeouts: Timeouts{
			Probe:        DefaultProbeTimeout,
			Normalize:    DefaultNormalizeTimeout,
			ConcatBase:   DefaultConcatBaseTimeout,
			ConcatFactor: DefaultConcatTimeoutFactor,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Policy == PolicyCropToAspect && !c.Aspect.Valid() {
		return fmt.Errorf("%w: crop policy requires an aspect", ErrInvalidConfig)
	}
	if c.Policy == PolicyFixedTarget && (c.FixedCanvas.Width < 2 || c.FixedCanvas.Height < 2) {
		return fmt.Errorf("%w: fixed policy requires a canvas", ErrInvalidConfig)
	}
	return nil
}

// StrategyName names the run's strategy for logs and job records, e.g.
// "first_video_blur", "fixed_1920x1080_pad" or "crop_16:9".
func (c RunConfig) StrategyName() string {
	switch c.Policy {
	case PolicyFixedTarget:
		return fmt.Sprintf("fixed_%s_%s", c.FixedCanvas, c.Background)
	case PolicyCropToAspect:
		return "crop_" + c.Aspect.String()
	default:
		return "first_video_" + c.Background.String()
	}
}
