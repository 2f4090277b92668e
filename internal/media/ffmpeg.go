package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrNoInputs is returned when a request names no input files.
	ErrNoInputs = errors.New("no input paths provided")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoVideoStream is returned when a probed file has no video stream.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrTimeout is returned when an invocation exceeded its deadline.
	ErrTimeout = errors.New("encoding engine timed out")
)

// EncoderSettings holds the video/audio encoder parameters used for every
// re-encoding render.
type EncoderSettings struct {
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string
}

// DefaultEncoderSettings returns libx264/aac settings.
func DefaultEncoderSettings() EncoderSettings {
	return EncoderSettings{
		VideoCodec:   "libx264",
		Preset:       "fast",
		CRF:          23,
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	}
}

// FFmpegEngine implements Engine using the ffmpeg and ffprobe CLIs.
type FFmpegEngine struct {
	ffmpegPath  string
	ffprobePath string
	encoder     EncoderSettings
	// waitDelay bounds how long a killed process may keep its pipes open.
	waitDelay time.Duration
	stderr    io.Writer
}

// EngineOption configures an FFmpegEngine.
type EngineOption func(*FFmpegEngine)

// WithFFprobePath overrides the ffprobe binary.
func WithFFprobePath(path string) EngineOption {
	return func(e *FFmpegEngine) {
		if path != "" {
			e.ffprobePath = path
		}
	}
}

// WithEncoderSettings overrides the default encoder parameters.
func WithEncoderSettings(s EncoderSettings) EngineOption {
	return func(e *FFmpegEngine) {
		e.encoder = s
	}
}

// WithStderr tees ffmpeg's stderr to w in addition to the captured buffer.
func WithStderr(w io.Writer) EngineOption {
	return func(e *FFmpegEngine) {
		e.stderr = w
	}
}

// NewFFmpegEngine creates a new FFmpegEngine.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegEngine(ffmpegPath string, opts ...EngineOption) *FFmpegEngine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	e := &FFmpegEngine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: "ffprobe",
		encoder:     DefaultEncoderSettings(),
		waitDelay:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify interface implementation at compile time.
var _ Engine = (*FFmpegEngine)(nil)

// Probe runs a single ffprobe JSON call and returns the primary video stream.
func (e *FFmpegEngine) Probe(ctx context.Context, path string) (ClipInfo, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	cmd.WaitDelay = e.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ClipInfo{}, fmt.Errorf("ffprobe %s: %w", path, ctxErr)
		}
		return ClipInfo{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return ParseProbeJSON(stdout.Bytes())
}

// Compose renders req.Output from req.Inputs through the declarative graph.
func (e *FFmpegEngine) Compose(ctx context.Context, req ComposeRequest) error {
	args, err := e.composeArgs(req)
	if err != nil {
		return err
	}
	return e.runFFmpeg(ctx, args)
}

func (e *FFmpegEngine) composeArgs(req ComposeRequest) ([]string, error) {
	if len(req.Inputs) == 0 {
		return nil, ErrNoInputs
	}

	args := []string{"-y", "-hide_banner"}
	for _, in := range req.Inputs {
		args = append(args, "-i", in)
	}

	silentInput := -1
	if req.Audio.Mode != AudioNone && req.Audio.Input < 0 {
		silentInput = len(req.Inputs)
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=48000")
	}

	args = append(args,
		"-filter_complex", BuildFilterGraph(req.Graph, req.FrameRate, req.PixelFormat),
		"-map", "["+videoOutLabel+"]",
	)

	switch {
	case req.Audio.Mode == AudioNone:
		args = append(args, "-an")
	case silentInput >= 0:
		args = append(args, "-map", strconv.Itoa(silentInput)+":a", "-shortest")
		args = append(args, e.audioEncodeArgs()...)
	case req.Audio.Mode == AudioPassthrough:
		args = append(args, "-map", strconv.Itoa(req.Audio.Input)+":a:0?", "-c:a", "copy")
	default:
		args = append(args, "-map", strconv.Itoa(req.Audio.Input)+":a:0?")
		args = append(args, e.audioEncodeArgs()...)
	}

	args = append(args, e.videoEncodeArgs()...)
	if req.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(req.FrameRate))
	}
	if req.PixelFormat != "" {
		args = append(args, "-pix_fmt", req.PixelFormat)
	}
	args = append(args, "-movflags", "+faststart", req.Output)
	return args, nil
}

// Concat joins the clips in req.ListFile into req.Output.
func (e *FFmpegEngine) Concat(ctx context.Context, req ConcatRequest) error {
	return e.runFFmpeg(ctx, e.concatArgs(req))
}

func (e *FFmpegEngine) concatArgs(req ConcatRequest) []string {
	args := []string{
		"-y", "-hide_banner",
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", req.ListFile,
	}
	if req.Mode == ConcatCopy {
		args = append(args, "-c", "copy")
	} else {
		args = append(args, e.videoEncodeArgs()...)
		args = append(args, e.audioEncodeArgs()...)
	}
	return append(args, "-movflags", "+faststart", req.Output)
}

func (e *FFmpegEngine) videoEncodeArgs() []string {
	return []string{
		"-c:v", e.encoder.VideoCodec,
		"-preset", e.encoder.Preset,
		"-crf", strconv.Itoa(e.encoder.CRF),
	}
}

func (e *FFmpegEngine) audioEncodeArgs() []string {
	return []string{
		"-c:a", e.encoder.AudioCodec,
		"-b:a", e.encoder.AudioBitrate,
	}
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (e *FFmpegEngine) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.WaitDelay = e.waitDelay

	var stderr bytes.Buffer
	if e.stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, e.stderr)
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return fmt.Errorf("ffmpeg: %w", ctxErr)
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// contextError maps an expired deadline to ErrTimeout and passes
// cancellation through unchanged.
func contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// WriteConcatList writes the concat demuxer list for paths to w.
// Paths are made absolute and single quotes are escaped.
func WriteConcatList(w io.Writer, paths []string) error {
	if len(paths) == 0 {
		return ErrNoInputs
	}
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(w, "file '%s'\n", escapedPath); err != nil {
			return fmt.Errorf("write to concat list: %w", err)
		}
	}
	return nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	Disposition  map[string]int    `json:"disposition"`
	Tags         map[string]string `json:"tags"`
	SideData     []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	Rotation int `json:"rotation"`
}

// ParseProbeJSON converts raw ffprobe JSON output into a ClipInfo.
// Exported for testing without a real ffprobe binary.
func ParseProbeJSON(data []byte) (ClipInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return ClipInfo{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	info := ClipInfo{Duration: parseFloat(raw.Format.Duration)}
	found := false
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if found || s.Disposition["attached_pic"] == 1 {
				continue
			}
			found = true
			info.Codec = s.CodecName
			info.Width, info.Height = s.Width, s.Height
			if isRotated(s) {
				info.Width, info.Height = s.Height, s.Width
			}
			info.FrameRate = parseRate(s.AvgFrameRate)
			if info.FrameRate == 0 {
				info.FrameRate = parseRate(s.RFrameRate)
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if !found {
		return ClipInfo{}, ErrNoVideoStream
	}
	return info, nil
}

// isRotated reports whether a stream is displayed rotated by ±90°, which
// phone footage commonly is.
func isRotated(s *ffprobeStream) bool {
	rotation := 0
	if v, ok := s.Tags["rotate"]; ok {
		rotation, _ = strconv.Atoi(v)
	}
	for _, sd := range s.SideData {
		if sd.Rotation != 0 {
			rotation = sd.Rotation
		}
	}
	rotation %= 180
	return rotation == 90 || rotation == -90
}

// parseRate parses an ffprobe rational such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
