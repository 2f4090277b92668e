package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/maauso/clipmerge/internal/merge"
)

// progressObserver draws run progress. The bar is created on the first
// event since the step count is known only once clips are probed.
type progressObserver struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (p *progressObserver) Observe(e merge.Event) {
	if e.Steps <= 0 {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(e.Steps,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("merging"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetPredictTime(false),
		)
	}
	if e.Group > 0 {
		p.bar.Describe(fmt.Sprintf("group %d", e.Group))
	}
	_ = p.bar.Set(e.Step)
}

// Finish completes the bar and moves the cursor past it.
func (p *progressObserver) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(p.w)
}
