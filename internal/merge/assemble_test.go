package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipmerge/internal/artifact"
)

func refs(n int) []ClipRef {
	out := make([]ClipRef, n)
	for i := range out {
		out[i] = ClipRef{Index: i, Path: filepath.Join("/clips", string(rune('a'+i))+".mp4")}
	}
	return out
}

func TestPartition(t *testing.T) {
	t.Run("simple mode is one group", func(t *testing.T) {
		groups, rest := Partition(refs(5), 0)

		require.Len(t, groups, 1)
		assert.Equal(t, 0, groups[0].Index)
		assert.Len(t, groups[0].Clips, 5)
		assert.Empty(t, rest)
	})

	t.Run("seven clips in groups of three", func(t *testing.T) {
		groups, rest := Partition(refs(7), 3)

		require.Len(t, groups, 2)
		assert.Equal(t, 1, groups[0].Index)
		assert.Equal(t, 2, groups[1].Index)
		assert.Equal(t, "/clips/a.mp4", groups[0].Clips[0].Path)
		assert.Equal(t, "/clips/d.mp4", groups[1].Clips[0].Path)
		require.Len(t, rest, 1)
		assert.Equal(t, "/clips/g.mp4", rest[0].Path)
	})

	t.Run("exact multiple leaves no remainder", func(t *testing.T) {
		groups, rest := Partition(refs(6), 3)

		assert.Len(t, groups, 2)
		assert.Empty(t, rest)
	})

	t.Run("fewer clips than one group", func(t *testing.T) {
		groups, rest := Partition(refs(2), 3)

		assert.Empty(t, groups)
		assert.Len(t, rest, 2)
	})

	t.Run("no clips", func(t *testing.T) {
		groups, rest := Partition(nil, 3)

		assert.Empty(t, groups)
		assert.Empty(t, rest)
	})
}

func TestOutputStem(t *testing.T) {
	clips := []ClipRef{{Path: "/clips/holiday.mp4"}, {Path: "/clips/beach.mov"}}

	assert.Equal(t, "holiday_merged_all", OutputStem(MergeGroup{Index: 0, Clips: clips}))
	assert.Equal(t, "holiday_group3", OutputStem(MergeGroup{Index: 3, Clips: clips}))
}

func TestAssembler_Assemble(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.config()
	tracker := artifact.NewTracker(env.store, ".test", discardLogger())
	a := NewAssembler(env.engine, discardLogger())
	group := MergeGroup{Clips: []ClipRef{{Path: "/clips/holiday.mp4"}}}
	normalized := []string{"/tmp/n0.mp4", "/tmp/n1.mp4"}

	out, err := a.Assemble(context.Background(), tracker, group, normalized, 10, cfg)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(env.outDir, "holiday_merged_all.mp4"), out)
	require.Len(t, env.engine.concats, 1)
	assert.Equal(t, cfg.Assembly, env.engine.concats[0].Mode)
	assert.Equal(t, normalized, env.engine.concatInputs[0])
	assert.Contains(t, tracker.Tracked(), env.engine.concats[0].ListFile)
}

func TestAssembler_Assemble_FailureRemovesPartialOutput(t *testing.T) {
	env := newTestEnv(t)
	env.engine.concatErr = assert.AnError
	tracker := artifact.NewTracker(env.store, ".test", discardLogger())
	a := NewAssembler(env.engine, discardLogger())
	group := MergeGroup{Clips: []ClipRef{{Path: "/clips/holiday.mp4"}}}

	_, err := a.Assemble(context.Background(), tracker, group, []string{"/tmp/n0.mp4"}, 4, env.config())

	require.ErrorIs(t, err, ErrConcatFailure)
	assert.ErrorIs(t, err, assert.AnError)
	entries, err := os.ReadDir(env.outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
