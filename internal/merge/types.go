package merge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/maauso/clipmerge/internal/media"
)

// Policy selects how the canonical canvas of a run is chosen.
type Policy int

const (
	// PolicyFirstClip uses the dimensions of the first clip.
	PolicyFirstClip Policy = iota
	// PolicyFixedTarget uses a constant canvas (1920×1080 by default).
	PolicyFixedTarget
	// PolicyCropToAspect uses a constant canvas matching a requested aspect
	// and crops clips to it where that does not cost too much content.
	PolicyCropToAspect
)

var policyNames = map[Policy]string{
	PolicyFirstClip:    "first",
	PolicyFixedTarget:  "fixed",
	PolicyCropToAspect: "crop",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return "Policy(" + strconv.Itoa(int(p)) + ")"
}

// ParsePolicy parses a sizing policy name.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first", "first_clip", "first-clip":
		return PolicyFirstClip, nil
	case "fixed", "fixed_target", "fixed-target":
		return PolicyFixedTarget, nil
	case "crop", "crop_to_aspect", "crop-to-aspect":
		return PolicyCropToAspect, nil
	default:
		return 0, fmt.Errorf("%w: unknown sizing policy %q", ErrInvalidConfig, s)
	}
}

// BackgroundStyle selects what fills the canvas around an aspect-preserved clip.
type BackgroundStyle int

const (
	// BackgroundPad fills with solid black.
	BackgroundPad BackgroundStyle = iota
	// BackgroundBlur fills with a blurred, darkened copy of the same clip.
	BackgroundBlur
)

func (b BackgroundStyle) String() string {
	switch b {
	case BackgroundPad:
		return "pad"
	case BackgroundBlur:
		return "blur"
	default:
		return "BackgroundStyle(" + strconv.Itoa(int(b)) + ")"
	}
}

// ParseBackgroundStyle parses a background style name.
func ParseBackgroundStyle(s string) (BackgroundStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pad", "black":
		return BackgroundPad, nil
	case "blur":
		return BackgroundBlur, nil
	default:
		return 0, fmt.Errorf("%w: unknown background style %q", ErrInvalidConfig, s)
	}
}

// Strategy is the per-clip fit decision.
type Strategy string

const (
	StrategyCrop           Strategy = "crop"
	StrategyPad            Strategy = "pad"
	StrategyBlurBackground Strategy = "blur_background"
)

// Aspect is a width:height ratio such as 16:9.
type Aspect struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Common aspects.
var (
	Aspect16x9 = Aspect{W: 16, H: 9}
	Aspect9x16 = Aspect{W: 9, H: 16}
)

// canvasShortEdge is the short edge of canvases derived from an aspect.
const canvasShortEdge = 1080

// ParseAspect parses "W:H" (or "WxH").
func ParseAspect(s string) (Aspect, error) {
	s = strings.TrimSpace(s)
	sep := ":"
	if !strings.Contains(s, sep) {
		sep = "x"
	}
	ws, hs, ok := strings.Cut(s, sep)
	if !ok {
		return Aspect{}, fmt.Errorf("%w: aspect %q must look like 16:9", ErrInvalidConfig, s)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Aspect{}, fmt.Errorf("%w: aspect %q must look like 16:9", ErrInvalidConfig, s)
	}
	return Aspect{W: w, H: h}, nil
}

// Valid reports whether both terms are positive.
func (a Aspect) Valid() bool {
	return a.W > 0 && a.H > 0
}

// Ratio returns W/H.
func (a Aspect) Ratio() float64 {
	return float64(a.W) / float64(a.H)
}

func (a Aspect) String() string {
	return fmt.Sprintf("%d:%d", a.W, a.H)
}

// Canvas returns the constant canvas for the aspect: the short edge is
// 1080 pixels, so 16:9 maps to 1920×1080 and 9:16 to 1080×1920.
func (a Aspect) Canvas() Canvas {
	if a.W >= a.H {
		return Canvas{Width: evenRound(canvasShortEdge * a.Ratio()), Height: canvasShortEdge}
	}
	return Canvas{Width: canvasShortEdge, Height: evenRound(canvasShortEdge / a.Ratio())}
}

// Canvas is the output frame size of a merge group.
type Canvas struct {
	Width  int `json:"width" validate:"gte=2"`
	Height int `json:"height" validate:"gte=2"`
}

// DefaultFixedCanvas is the FixedTarget canvas.
var DefaultFixedCanvas = Canvas{Width: 1920, Height: 1080}

// AspectRatio returns Width/Height.
func (c Canvas) AspectRatio() float64 {
	return float64(c.Width) / float64(c.Height)
}

func (c Canvas) String() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// Size is a width/height pair in pixels.
type Size struct {
	W, H int
}

// Point is a pixel offset.
type Point struct {
	X, Y int
}

// Rect is a crop rectangle within a source frame.
type Rect struct {
	X, Y, W, H int
}

// AspectRatio returns W/H.
func (r Rect) AspectRatio() float64 {
	return float64(r.W) / float64(r.H)
}

// ClipRef is an input clip and its probed properties. It is never mutated
// after probing.
type ClipRef struct {
	// Index is the position of the clip in the input list.
	Index int
	// Path is the absolute path of the clip.
	Path string
	// Info holds the probed properties; zero dimensions mean the probe failed.
	Info media.ClipInfo
}

// Valid reports whether the clip probed with usable dimensions.
func (c ClipRef) Valid() bool {
	return c.Info.Width > 0 && c.Info.Height > 0
}

// AspectRatio returns the clip's display aspect ratio.
func (c ClipRef) AspectRatio() float64 {
	return float64(c.Info.Width) / float64(c.Info.Height)
}

// FitPlan describes how one clip is mapped onto the canvas.
type FitPlan struct {
	Strategy Strategy
	// Crop is set only for StrategyCrop.
	Crop *Rect
	// Scaled is the size of the clip's content on the canvas.
	Scaled Size
	// Offset is the top-left position of the scaled content.
	Offset Point
}

// MergeGroup is a contiguous run of input clips that becomes one output.
type MergeGroup struct {
	// Index is 1-based in group mode and 0 in simple mode.
	Index int
	Clips []ClipRef
}

// evenRound rounds to the nearest even integer, never below 2.
func evenRound(f float64) int {
	n := int(math.Round(f/2)) * 2
	if n < 2 {
		return 2
	}
	return n
}

// evenFloor rounds n down to an even integer, never below 2.
func evenFloor(n int) int {
	n &^= 1
	if n < 2 {
		return 2
	}
	return n
}
