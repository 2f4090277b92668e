// Package media provides the encoding engine used by the merge pipeline.
// The Engine interface is the only place the pipeline touches encoding; the
// ffmpeg implementation is the only place that knows ffmpeg syntax.
package media

import "context"

// ClipInfo describes the primary video stream of a clip.
type ClipInfo struct {
	// Codec is the video codec name (e.g. "h264").
	Codec string
	// Width is the display width in pixels.
	Width int
	// Height is the display height in pixels.
	Height int
	// FrameRate is the average frame rate in frames per second.
	FrameRate float64
	// Duration is the container duration in seconds (0 when unknown).
	Duration float64
	// HasAudio reports whether the clip carries at least one audio stream.
	HasAudio bool
}

// OpKind identifies a declarative filter operation.
type OpKind int

const (
	// OpScaleFit scales to fit within W×H preserving aspect ratio.
	OpScaleFit OpKind = iota
	// OpScaleCover scales to cover W×H preserving aspect ratio.
	OpScaleCover
	// OpScaleExact scales to exactly W×H.
	OpScaleExact
	// OpCrop crops a W×H rectangle at X,Y.
	OpCrop
	// OpCenterCrop crops a centered W×H rectangle.
	OpCenterCrop
	// OpPad pads to W×H, centering the content on a black canvas.
	OpPad
	// OpBlur applies a Gaussian blur with the given Sigma.
	OpBlur
	// OpDarken multiplies every color channel by 1-Opacity.
	OpDarken
)

// Op is a single step of a filter chain.
type Op struct {
	Kind    OpKind
	W, H    int
	X, Y    int
	Sigma   float64
	Opacity float64
}

// Graph is a declarative composition of up to two inputs.
//
// Base is applied to input 0 and forms the bottom layer. When Foreground is
// non-empty it is applied to ForegroundInput and the result is overlaid
// centered on top of the base layer.
type Graph struct {
	Base            []Op
	Foreground      []Op
	ForegroundInput int
}

// AudioMode selects how audio is carried into a render.
type AudioMode string

const (
	// AudioReencode re-encodes audio with the configured codec and bitrate.
	AudioReencode AudioMode = "reencode"
	// AudioPassthrough copies the source audio stream unchanged.
	AudioPassthrough AudioMode = "passthrough"
	// AudioNone drops audio entirely.
	AudioNone AudioMode = "none"
)

// AudioSpec describes the audio track of a render.
type AudioSpec struct {
	Mode AudioMode
	// Input is the index of the input carrying audio. Negative means the
	// source has no audio and a silent track is synthesized instead.
	Input int
}

// ComposeRequest asks the engine to render one output from one or two inputs.
type ComposeRequest struct {
	Inputs      []string
	Graph       Graph
	Output      string
	FrameRate   int
	PixelFormat string
	Audio       AudioSpec
}

// ConcatMode selects the assembly reliability mode.
type ConcatMode string

const (
	// ConcatReencode decodes and re-encodes every frame.
	ConcatReencode ConcatMode = "reencode"
	// ConcatCopy stream-copies every input.
	ConcatCopy ConcatMode = "copy"
)

// ConcatRequest asks the engine to join an ordered list of same-format clips.
type ConcatRequest struct {
	// ListFile is a concat list previously written with WriteConcatList.
	ListFile string
	Output   string
	Mode     ConcatMode
}

// Engine is the encoding collaborator. Implementations must honor context
// cancellation and deadlines by terminating any spawned process.
type Engine interface {
	// Probe inspects a clip and returns its primary video stream properties.
	Probe(ctx context.Context, path string) (ClipInfo, error)

	// Compose renders a single output from a declarative graph.
	Compose(ctx context.Context, req ComposeRequest) error

	// Concat joins the clips named in a concat list into one output.
	Concat(ctx context.Context, req ConcatRequest) error
}
