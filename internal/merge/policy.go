package merge

import "fmt"

// SelectCanvas picks the canvas of a group under the configured policy.
// FirstClip takes the first clip that probed successfully, rounded to even
// dimensions so downstream encoders accept it.
func SelectCanvas(cfg RunConfig, clips []ClipRef) (Canvas, error) {
	switch cfg.Policy {
	case PolicyFixedTarget:
		return cfg.FixedCanvas, nil
	case PolicyCropToAspect:
		return cfg.Aspect.Canvas(), nil
	case PolicyFirstClip:
		for _, c := range clips {
			if c.Valid() {
				return Canvas{Width: evenFloor(c.Info.Width), Height: evenFloor(c.Info.Height)}, nil
			}
		}
		return Canvas{}, ErrNoUsableClips
	default:
		return Canvas{}, fmt.Errorf("%w: policy %v", ErrInvalidConfig, cfg.Policy)
	}
}
