package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectCanvas(t *testing.T) {
	failed := ClipRef{Path: "/clips/broken.mp4"}

	t.Run("first clip uses first probed clip", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")

		canvas, err := SelectCanvas(cfg, []ClipRef{failed, clipOf(1280, 720), clipOf(1920, 1080)})
		require.NoError(t, err)
		assert.Equal(t, Canvas{Width: 1280, Height: 720}, canvas)
	})

	t.Run("first clip rounds to even dimensions", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")

		canvas, err := SelectCanvas(cfg, []ClipRef{clipOf(1279, 721)})
		require.NoError(t, err)
		assert.Equal(t, Canvas{Width: 1278, Height: 720}, canvas)
	})

	t.Run("first clip without probed clips", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")

		_, err := SelectCanvas(cfg, []ClipRef{failed})
		assert.ErrorIs(t, err, ErrNoUsableClips)
	})

	t.Run("fixed target ignores clips", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")
		cfg.Policy = PolicyFixedTarget

		canvas, err := SelectCanvas(cfg, []ClipRef{clipOf(640, 480)})
		require.NoError(t, err)
		assert.Equal(t, Canvas{Width: 1920, Height: 1080}, canvas)
	})

	t.Run("crop to portrait aspect", func(t *testing.T) {
		cfg := DefaultRunConfig("/out")
		cfg.Policy = PolicyCropToAspect
		cfg.Aspect = Aspect9x16

		canvas, err := SelectCanvas(cfg, []ClipRef{clipOf(1920, 1080)})
		require.NoError(t, err)
		assert.Equal(t, Canvas{Width: 1080, Height: 1920}, canvas)
	})
}

func TestAspect_Canvas(t *testing.T) {
	tests := map[string]Canvas{
		"16:9": {Width: 1920, Height: 1080},
		"9:16": {Width: 1080, Height: 1920},
		"4:3":  {Width: 1440, Height: 1080},
		"1:1":  {Width: 1080, Height: 1080},
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			a, err := ParseAspect(in)
			require.NoError(t, err)
			assert.Equal(t, want, a.Canvas())
		})
	}
}
