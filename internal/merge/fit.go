package merge

import (
	"math"
)

// MaxCropLoss is the largest share of a source dimension that a crop may
// remove. Clips that would lose more keep their full frame and fall back to
// a blurred background.
const MaxCropLoss = 0.25

// matchTolerance is how close a clip's aspect must be to the canvas for the
// blur style to skip background synthesis.
const matchTolerance = 0.01

// CropRect returns the centered crop of a w×h frame at the target aspect.
// Width is cropped at full height when possible, otherwise height is cropped
// at full width. The cropped side is the even size nearest the exact aspect.
func CropRect(w, h int, target float64) Rect {
	var cw, ch int
	if exact := float64(h) * target; exact <= float64(w) {
		cw = min(evenRound(exact), evenFloor(w))
		ch = evenFloor(h)
	} else {
		cw = evenFloor(w)
		ch = min(evenRound(float64(w)/target), evenFloor(h))
	}
	return Rect{X: (w - cw) / 2, Y: (h - ch) / 2, W: cw, H: ch}
}

// lossLimitedCrop widens CropRect so neither dimension loses more than
// MaxCropLoss. Its aspect shows how close an acceptable crop gets to target.
func lossLimitedCrop(w, h int, target float64) Rect {
	rect := CropRect(w, h, target)
	cw := max(rect.W, int(math.Ceil(float64(w)*(1-MaxCropLoss))))
	ch := max(rect.H, int(math.Ceil(float64(h)*(1-MaxCropLoss))))
	cw, ch = evenFloor(min(cw, w)), evenFloor(min(ch, h))
	return Rect{X: (w - cw) / 2, Y: (h - ch) / 2, W: cw, H: ch}
}

// PlanFit decides how a clip is mapped onto the canvas.
//
//	policy       background  decision
//	crop         any         crop, or blur_background when a loss-limited crop misses the aspect
//	first/fixed  pad         pad
//	first/fixed  blur        blur_background, or pad when the aspect already matches
func PlanFit(clip ClipRef, canvas Canvas, cfg RunConfig) FitPlan {
	target := canvas.AspectRatio()

	if cfg.Policy == PolicyCropToAspect {
		limit := lossLimitedCrop(clip.Info.Width, clip.Info.Height, target)
		if math.Abs(limit.AspectRatio()-target) > cfg.AspectTolerance {
			return fitPlan(StrategyBlurBackground, Size{W: clip.Info.Width, H: clip.Info.Height}, canvas)
		}
		rect := CropRect(clip.Info.Width, clip.Info.Height, target)
		return FitPlan{
			Strategy: StrategyCrop,
			Crop:     &rect,
			Scaled:   Size{W: canvas.Width, H: canvas.Height},
		}
	}

	src := Size{W: clip.Info.Width, H: clip.Info.Height}
	if cfg.Background == BackgroundBlur && math.Abs(clip.AspectRatio()-target) > matchTolerance {
		return fitPlan(StrategyBlurBackground, src, canvas)
	}
	return fitPlan(StrategyPad, src, canvas)
}

// PadPlan returns the pad fit for a clip, used when background synthesis
// fails.
func PadPlan(clip ClipRef, canvas Canvas) FitPlan {
	return fitPlan(StrategyPad, Size{W: clip.Info.Width, H: clip.Info.Height}, canvas)
}

func fitPlan(s Strategy, src Size, canvas Canvas) FitPlan {
	scaled := fitWithin(src, canvas)
	return FitPlan{
		Strategy: s,
		Scaled:   scaled,
		Offset:   Point{X: (canvas.Width - scaled.W) / 2, Y: (canvas.Height - scaled.H) / 2},
	}
}

// fitWithin scales src to the largest even size inside canvas that keeps
// its aspect ratio.
func fitWithin(src Size, canvas Canvas) Size {
	sa := float64(src.W) / float64(src.H)
	if sa > canvas.AspectRatio() {
		return Size{W: canvas.Width, H: min(evenRound(float64(canvas.Width)/sa), canvas.Height)}
	}
	return Size{W: min(evenRound(float64(canvas.Height)*sa), canvas.Width), H: canvas.Height}
}
