package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestVideo creates a solid color test clip, optionally with silent audio.
func createTestVideo(t *testing.T, path string, width, height int, withAudio bool) {
	t.Helper()

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=red:s=%dx%d:d=0.5:r=25", width, height),
	}
	if withAudio {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=r=44100:cl=mono:d=0.5", "-c:a", "aac", "-shortest")
	}
	args = append(args, "-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p", path)

	cmd := exec.Command("ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegEngine(t *testing.T) {
	t.Run("default paths", func(t *testing.T) {
		e := NewFFmpegEngine("")
		assert.Equal(t, "ffmpeg", e.ffmpegPath)
		assert.Equal(t, "ffprobe", e.ffprobePath)
		assert.Equal(t, DefaultEncoderSettings(), e.encoder)
	})

	t.Run("custom paths", func(t *testing.T) {
		e := NewFFmpegEngine("/usr/local/bin/ffmpeg", WithFFprobePath("/usr/local/bin/ffprobe"))
		assert.Equal(t, "/usr/local/bin/ffmpeg", e.ffmpegPath)
		assert.Equal(t, "/usr/local/bin/ffprobe", e.ffprobePath)
	})

	t.Run("empty ffprobe path keeps default", func(t *testing.T) {
		e := NewFFmpegEngine("", WithFFprobePath(""))
		assert.Equal(t, "ffprobe", e.ffprobePath)
	})
}

func TestParseProbeJSON(t *testing.T) {
	t.Run("video and audio", func(t *testing.T) {
		data := []byte(`{
			"format": {"duration": "12.480000"},
			"streams": [
				{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "avg_frame_rate": "30000/1001"},
				{"codec_type": "audio", "codec_name": "aac"}
			]
		}`)

		info, err := ParseProbeJSON(data)
		require.NoError(t, err)
		assert.Equal(t, "h264", info.Codec)
		assert.Equal(t, 1920, info.Width)
		assert.Equal(t, 1080, info.Height)
		assert.InDelta(t, 29.97, info.FrameRate, 0.01)
		assert.InDelta(t, 12.48, info.Duration, 0.001)
		assert.True(t, info.HasAudio)
	})

	t.Run("rotated phone clip swaps dimensions", func(t *testing.T) {
		data := []byte(`{"format": {}, "streams": [
			{"codec_type": "video", "codec_name": "hevc", "width": 1920, "height": 1080,
			 "avg_frame_rate": "30/1", "side_data_list": [{"rotation": -90}]}
		]}`)

		info, err := ParseProbeJSON(data)
		require.NoError(t, err)
		assert.Equal(t, 1080, info.Width)
		assert.Equal(t, 1920, info.Height)
		assert.False(t, info.HasAudio)
	})

	t.Run("rotate tag", func(t *testing.T) {
		data := []byte(`{"format": {}, "streams": [
			{"codec_type": "video", "width": 640, "height": 480, "tags": {"rotate": "270"}}
		]}`)

		info, err := ParseProbeJSON(data)
		require.NoError(t, err)
		assert.Equal(t, 480, info.Width)
		assert.Equal(t, 640, info.Height)
	})

	t.Run("skips attached picture", func(t *testing.T) {
		data := []byte(`{"format": {}, "streams": [
			{"codec_type": "video", "codec_name": "mjpeg", "width": 600, "height": 600, "disposition": {"attached_pic": 1}},
			{"codec_type": "video", "codec_name": "vp9", "width": 1280, "height": 720, "avg_frame_rate": "0/0", "r_frame_rate": "24/1"}
		]}`)

		info, err := ParseProbeJSON(data)
		require.NoError(t, err)
		assert.Equal(t, "vp9", info.Codec)
		assert.Equal(t, 1280, info.Width)
		assert.InDelta(t, 24.0, info.FrameRate, 0.001)
	})

	t.Run("no video stream", func(t *testing.T) {
		data := []byte(`{"format": {}, "streams": [{"codec_type": "audio"}]}`)
		_, err := ParseProbeJSON(data)
		assert.ErrorIs(t, err, ErrNoVideoStream)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := ParseProbeJSON([]byte("not json"))
		assert.Error(t, err)
	})
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"30/1", 30},
		{"30000/1001", 30000.0 / 1001.0},
		{"0/0", 0},
		{"25", 25},
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.InDelta(t, tt.expected, parseRate(tt.input), 0.0001)
		})
	}
}

func TestComposeArgs(t *testing.T) {
	e := NewFFmpegEngine("")
	graph := Graph{Base: []Op{{Kind: OpScaleFit, W: 1920, H: 1080}, {Kind: OpPad, W: 1920, H: 1080}}}

	t.Run("re-encoded audio from the source", func(t *testing.T) {
		args, err := e.composeArgs(ComposeRequest{
			Inputs:      []string{"in.mp4"},
			Graph:       graph,
			Output:      "out.mp4",
			FrameRate:   30,
			PixelFormat: "yuv420p",
			Audio:       AudioSpec{Mode: AudioReencode, Input: 0},
		})
		require.NoError(t, err)

		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "-i in.mp4")
		assert.Contains(t, joined, "-map [v]")
		assert.Contains(t, joined, "-map 0:a:0?")
		assert.Contains(t, joined, "-c:a aac -b:a 192k")
		assert.Contains(t, joined, "-r 30")
		assert.Contains(t, joined, "-pix_fmt yuv420p")
		assert.Equal(t, "out.mp4", args[len(args)-1])
	})

	t.Run("silent track synthesized for clips without audio", func(t *testing.T) {
		args, err := e.composeArgs(ComposeRequest{
			Inputs: []string{"in.mp4"},
			Graph:  graph,
			Output: "out.mp4",
			Audio:  AudioSpec{Mode: AudioReencode, Input: -1},
		})
		require.NoError(t, err)

		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "-f lavfi -i anullsrc")
		assert.Contains(t, joined, "-map 1:a -shortest")
	})

	t.Run("passthrough copies audio", func(t *testing.T) {
		args, err := e.composeArgs(ComposeRequest{
			Inputs: []string{"bg.mp4", "in.mp4"},
			Graph:  graph,
			Output: "out.mp4",
			Audio:  AudioSpec{Mode: AudioPassthrough, Input: 1},
		})
		require.NoError(t, err)

		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "-map 1:a:0? -c:a copy")
	})

	t.Run("no audio", func(t *testing.T) {
		args, err := e.composeArgs(ComposeRequest{
			Inputs: []string{"in.mp4"},
			Graph:  graph,
			Output: "bg.mp4",
			Audio:  AudioSpec{Mode: AudioNone, Input: -1},
		})
		require.NoError(t, err)
		assert.Contains(t, args, "-an")
		assert.NotContains(t, strings.Join(args, " "), "anullsrc")
	})

	t.Run("no inputs", func(t *testing.T) {
		_, err := e.composeArgs(ComposeRequest{Output: "out.mp4"})
		assert.ErrorIs(t, err, ErrNoInputs)
	})
}

func TestConcatArgs(t *testing.T) {
	e := NewFFmpegEngine("")

	copyArgs := strings.Join(e.concatArgs(ConcatRequest{ListFile: "list.txt", Output: "out.mp4", Mode: ConcatCopy}), " ")
	assert.Contains(t, copyArgs, "-f concat -safe 0 -i list.txt")
	assert.Contains(t, copyArgs, "-c copy")
	assert.NotContains(t, copyArgs, "libx264")

	reencodeArgs := strings.Join(e.concatArgs(ConcatRequest{ListFile: "list.txt", Output: "out.mp4", Mode: ConcatReencode}), " ")
	assert.Contains(t, reencodeArgs, "-c:v libx264 -preset fast -crf 23")
	assert.Contains(t, reencodeArgs, "-c:a aac")
	assert.NotContains(t, reencodeArgs, "-c copy")
}

func TestWriteConcatList(t *testing.T) {
	t.Run("escapes quotes and uses absolute paths", func(t *testing.T) {
		var buf bytes.Buffer
		err := WriteConcatList(&buf, []string{"/clips/a.mp4", "/clips/it's.mp4"})
		require.NoError(t, err)

		assert.Equal(t, "file '/clips/a.mp4'\nfile '/clips/it'\\''s.mp4'\n", buf.String())
	})

	t.Run("relative paths resolved", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteConcatList(&buf, []string{"rel.mp4"}))

		wd, err := os.Getwd()
		require.NoError(t, err)
		assert.Contains(t, buf.String(), filepath.Join(wd, "rel.mp4"))
	})

	t.Run("empty list", func(t *testing.T) {
		err := WriteConcatList(&bytes.Buffer{}, nil)
		assert.ErrorIs(t, err, ErrNoInputs)
	})
}

func TestRunFFmpeg_DeadlineMapsToTimeout(t *testing.T) {
	e := NewFFmpegEngine("")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-1*time.Second))
	defer cancel()

	err := e.Concat(ctx, ConcatRequest{ListFile: "list.txt", Output: "out.mp4"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunFFmpeg_CancelledContext(t *testing.T) {
	e := NewFFmpegEngine("")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Probe(ctx, "clip.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestFFmpegError(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-i", "input.mp4", "-c", "copy", "output.mp4"},
		Stderr: "Error opening input file",
		Err:    fmt.Errorf("exit status 1"),
	}

	errStr := err.Error()
	assert.Contains(t, errStr, "exit status 1")
	assert.Contains(t, errStr, "Error opening input file")

	unwrapped := errors.Unwrap(err)
	require.NotNil(t, unwrapped)
	assert.Equal(t, "exit status 1", unwrapped.Error())
}

func TestFFmpegEngine_Integration(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	e := NewFFmpegEngine("", WithEncoderSettings(EncoderSettings{
		VideoCodec:   "libx264",
		Preset:       "ultrafast",
		CRF:          30,
		AudioCodec:   "aac",
		AudioBitrate: "64k",
	}))
	ctx := context.Background()

	wide := filepath.Join(tmpDir, "wide.mp4")
	square := filepath.Join(tmpDir, "square.mp4")
	createTestVideo(t, wide, 128, 72, true)
	createTestVideo(t, square, 64, 64, false)

	t.Run("probe", func(t *testing.T) {
		info, err := e.Probe(ctx, wide)
		require.NoError(t, err)
		assert.Equal(t, 128, info.Width)
		assert.Equal(t, 72, info.Height)
		assert.True(t, info.HasAudio)
	})

	t.Run("probe non-existent file", func(t *testing.T) {
		_, err := e.Probe(ctx, filepath.Join(tmpDir, "missing.mp4"))
		assert.ErrorIs(t, err, ErrFFprobeExecution)
	})

	padded := filepath.Join(tmpDir, "padded.mp4")
	t.Run("compose pad with synthesized audio", func(t *testing.T) {
		err := e.Compose(ctx, ComposeRequest{
			Inputs:      []string{square},
			Graph:       Graph{Base: []Op{{Kind: OpScaleFit, W: 128, H: 72}, {Kind: OpPad, W: 128, H: 72}}},
			Output:      padded,
			FrameRate:   30,
			PixelFormat: "yuv420p",
			Audio:       AudioSpec{Mode: AudioReencode, Input: -1},
		})
		require.NoError(t, err)

		info, err := e.Probe(ctx, padded)
		require.NoError(t, err)
		assert.Equal(t, 128, info.Width)
		assert.Equal(t, 72, info.Height)
		assert.InDelta(t, 30.0, info.FrameRate, 0.5)
		assert.True(t, info.HasAudio)
	})

	t.Run("concat", func(t *testing.T) {
		listPath := filepath.Join(tmpDir, "list.txt")
		f, err := os.Create(listPath)
		require.NoError(t, err)
		require.NoError(t, WriteConcatList(f, []string{padded, padded}))
		require.NoError(t, f.Close())

		out := filepath.Join(tmpDir, "joined.mp4")
		require.NoError(t, e.Concat(ctx, ConcatRequest{ListFile: listPath, Output: out, Mode: ConcatReencode}))

		info, err := e.Probe(ctx, out)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, info.Duration, 0.3)
	})

	t.Run("compose failure returns FFmpegError", func(t *testing.T) {
		err := e.Compose(ctx, ComposeRequest{
			Inputs: []string{filepath.Join(tmpDir, "missing.mp4")},
			Graph:  Graph{Base: []Op{{Kind: OpScaleExact, W: 64, H: 64}}},
			Output: filepath.Join(tmpDir, "never.mp4"),
			Audio:  AudioSpec{Mode: AudioNone, Input: -1},
		})
		var ffErr *FFmpegError
		assert.ErrorAs(t, err, &ffErr)
	})
}
