package media

import (
	"fmt"
	"strconv"
	"strings"
)

// videoOutLabel is the filter_complex label of the final video stream.
const videoOutLabel = "v"

// BuildFilterGraph renders g as an ffmpeg filter_complex string whose output
// is labelled [v]. The tail normalizes frame rate, pixel format and sample
// aspect ratio so every render is concat-compatible.
func BuildFilterGraph(g Graph, frameRate int, pixelFormat string) string {
	tail := outputTail(frameRate, pixelFormat)

	if len(g.Foreground) == 0 {
		return fmt.Sprintf("[0:v]%s[%s]", joinFilters(renderOps(g.Base), tail), videoOutLabel)
	}

	base := fmt.Sprintf("[0:v]%s[base]", joinFilters(renderOps(g.Base)))
	fg := fmt.Sprintf("[%d:v]%s[fg]", g.ForegroundInput, joinFilters(renderOps(g.Foreground)))
	overlay := fmt.Sprintf("[base][fg]%s[%s]",
		joinFilters([]string{"overlay=(W-w)/2:(H-h)/2"}, tail), videoOutLabel)

	return strings.Join([]string{base, fg, overlay}, ";")
}

func outputTail(frameRate int, pixelFormat string) []string {
	var tail []string
	if frameRate > 0 {
		tail = append(tail, "fps="+strconv.Itoa(frameRate))
	}
	if pixelFormat != "" {
		tail = append(tail, "format="+pixelFormat)
	}
	return append(tail, "setsar=1")
}

// joinFilters concatenates filter groups into one comma separated chain.
// An empty chain renders as the null filter.
func joinFilters(groups ...[]string) string {
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	if len(all) == 0 {
		return "null"
	}
	return strings.Join(all, ",")
}

func renderOps(ops []Op) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, renderOp(op))
	}
	return out
}

func renderOp(op Op) string {
	switch op.Kind {
	case OpScaleFit:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease:force_divisible_by=2", op.W, op.H)
	case OpScaleCover:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", op.W, op.H)
	case OpScaleExact:
		return fmt.Sprintf("scale=%d:%d", op.W, op.H)
	case OpCrop:
		return fmt.Sprintf("crop=%d:%d:%d:%d", op.W, op.H, op.X, op.Y)
	case OpCenterCrop:
		return fmt.Sprintf("crop=%d:%d", op.W, op.H)
	case OpPad:
		return fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black", op.W, op.H)
	case OpBlur:
		return "gblur=sigma=" + formatFloat(op.Sigma)
	case OpDarken:
		f := formatFloat(1 - op.Opacity)
		return fmt.Sprintf("colorchannelmixer=rr=%s:gg=%s:bb=%s", f, f, f)
	default:
		panic(fmt.Sprintf("media: unknown op kind %d", op.Kind))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
