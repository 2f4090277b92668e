package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFilterGraph(t *testing.T) {
	tests := []struct {
		name     string
		graph    Graph
		fps      int
		pixFmt   string
		expected string
	}{
		{
			name:     "pad",
			graph:    Graph{Base: []Op{{Kind: OpScaleFit, W: 1920, H: 1080}, {Kind: OpPad, W: 1920, H: 1080}}},
			fps:      30,
			pixFmt:   "yuv420p",
			expected: "[0:v]scale=1920:1080:force_original_aspect_ratio=decrease:force_divisible_by=2,pad=1920:1080:(ow-iw)/2:(oh-ih)/2:black,fps=30,format=yuv420p,setsar=1[v]",
		},
		{
			name:     "crop then exact scale",
			graph:    Graph{Base: []Op{{Kind: OpCrop, W: 1440, H: 810, X: 0, Y: 135}, {Kind: OpScaleExact, W: 1920, H: 1080}}},
			fps:      30,
			pixFmt:   "yuv420p",
			expected: "[0:v]crop=1440:810:0:135,scale=1920:1080,fps=30,format=yuv420p,setsar=1[v]",
		},
		{
			name: "blurred background",
			graph: Graph{Base: []Op{
				{Kind: OpScaleCover, W: 1080, H: 1920},
				{Kind: OpCenterCrop, W: 1080, H: 1920},
				{Kind: OpBlur, Sigma: 20},
				{Kind: OpDarken, Opacity: 0.5},
			}},
			fps:      30,
			expected: "[0:v]scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,gblur=sigma=20,colorchannelmixer=rr=0.5:gg=0.5:bb=0.5,fps=30,setsar=1[v]",
		},
		{
			name: "overlay on background input",
			graph: Graph{
				Foreground:      []Op{{Kind: OpScaleFit, W: 1920, H: 1080}},
				ForegroundInput: 1,
			},
			fps:    30,
			pixFmt: "yuv420p",
			expected: "[0:v]null[base];" +
				"[1:v]scale=1920:1080:force_original_aspect_ratio=decrease:force_divisible_by=2[fg];" +
				"[base][fg]overlay=(W-w)/2:(H-h)/2,fps=30,format=yuv420p,setsar=1[v]",
		},
		{
			name:     "empty chain without tail options",
			graph:    Graph{},
			expected: "[0:v]setsar=1[v]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildFilterGraph(tt.graph, tt.fps, tt.pixFmt))
		})
	}
}

func TestRenderOp_UnknownKindPanics(t *testing.T) {
	assert.Panics(t, func() {
		renderOp(Op{Kind: OpKind(99)})
	})
}
