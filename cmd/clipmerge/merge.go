package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/clipmerge/internal/bootstrap"
	"github.com/maauso/clipmerge/internal/config"
	"github.com/maauso/clipmerge/internal/merge"
)

// errNoOutput makes the process exit non-zero when every group failed.
var errNoOutput = errors.New("no output produced")

type mergeOptions struct {
	dir        string
	preset     string
	policy     string
	aspect     string
	background string
	groupSize  int
	assembly   string
	audio      string
	output     string
	pushToS3   bool
	quiet      bool
}

func newMergeCmd() *cobra.Command {
	return mergeCmd(&mergeOptions{})
}

// mergeCmd binds the merge flags to opts.
func mergeCmd(opts *mergeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [clips...]",
		Short: "Merge clips into one output file, or one per group",
		Long: `Merge clips in the given order, or every video in --dir sorted by name.

Flags override values from --preset, which override the environment defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.dir, "dir", "", "merge every video directly inside this folder")
	f.StringVar(&opts.preset, "preset", "", "YAML file with saved run choices")
	f.StringVarP(&opts.policy, "policy", "p", "first", "canvas policy: first, fixed or crop")
	f.StringVar(&opts.aspect, "aspect", "16:9", "target aspect ratio for the crop policy")
	f.StringVarP(&opts.background, "background", "b", "pad", "background style: pad or blur")
	f.IntVarP(&opts.groupSize, "group-size", "g", 0, "merge every N clips into their own file (0 merges all)")
	f.StringVar(&opts.assembly, "assembly", "reencode", "final concat mode: reencode or copy")
	f.StringVar(&opts.audio, "audio", "reencode", "audio handling: reencode or passthrough")
	f.StringVarP(&opts.output, "output", "o", "", "output directory (defaults to the folder of the first clip)")
	f.BoolVar(&opts.pushToS3, "push-to-s3", false, "upload every output when S3 is configured")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func runMerge(cmd *cobra.Command, opts *mergeOptions, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLoggerTo(cmd.ErrOrStderr())

	clips, err := inputClips(opts.dir, args)
	if err != nil {
		return err
	}
	rc, err := opts.runConfig(cmd, cfg, clips)
	if err != nil {
		return err
	}

	pipeline, err := bootstrap.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := newProgressObserver(cmd.ErrOrStderr())
	var observer merge.Observer = bar
	if opts.quiet {
		observer = merge.ObserverFunc(func(merge.Event) {})
	}

	result, err := pipeline.Runner.RunObserved(ctx, clips, rc, observer)
	bar.Finish()
	if result != nil {
		printSummary(cmd.OutOrStdout(), result)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("merge interrupted: %w", err)
		}
		return err
	}
	if result.SuccessCount == 0 {
		return errNoOutput
	}
	return nil
}

// inputClips returns the explicit clip list, or the videos inside dir.
func inputClips(dir string, args []string) ([]string, error) {
	switch {
	case dir != "" && len(args) > 0:
		return nil, errors.New("pass clips or --dir, not both")
	case dir != "":
		return merge.Discover(dir)
	default:
		return args, nil
	}
}

// runConfig layers the environment defaults, the preset and the changed
// flags, in that order.
func (o *mergeOptions) runConfig(cmd *cobra.Command, cfg *config.Config, clips []string) (merge.RunConfig, error) {
	outputDir := o.dir
	if outputDir == "" && len(clips) > 0 {
		outputDir = filepath.Dir(clips[0])
	}
	rc := cfg.RunConfig(outputDir)

	if o.preset != "" {
		preset, err := config.LoadPreset(o.preset)
		if err != nil {
			return rc, err
		}
		if err := preset.Apply(&rc); err != nil {
			return rc, fmt.Errorf("preset %s: %w", o.preset, err)
		}
	}

	flags := cmd.Flags()
	var overlay config.Preset
	if flags.Changed("policy") {
		overlay.Policy = o.policy
	}
	if flags.Changed("aspect") {
		overlay.Aspect = o.aspect
	}
	if flags.Changed("background") {
		overlay.Background = o.background
	}
	if flags.Changed("group-size") {
		overlay.GroupSize = &o.groupSize
	}
	if flags.Changed("assembly") {
		overlay.Assembly = o.assembly
	}
	if flags.Changed("audio") {
		overlay.Audio = o.audio
	}
	if flags.Changed("output") {
		overlay.OutputDir = o.output
	}
	if flags.Changed("push-to-s3") {
		overlay.PushToS3 = &o.pushToS3
	}
	if err := overlay.Apply(&rc); err != nil {
		return rc, err
	}
	return rc, nil
}

func printSummary(w io.Writer, res *merge.RunResult) {
	fmt.Fprintf(w, "strategy: %s\n", res.Strategy)
	fmt.Fprintf(w, "outputs: %d, errors: %d\n", res.SuccessCount, res.ErrorCount)
	for _, g := range res.Groups {
		switch {
		case g.URL != "":
			fmt.Fprintf(w, "  %s (%s)\n", g.Output, g.URL)
		case g.Output != "":
			fmt.Fprintf(w, "  %s\n", g.Output)
		}
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "skipped (incomplete group): %d\n", len(res.Skipped))
		for _, p := range res.Skipped {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	for _, f := range res.Failures {
		if errors.Is(f.Kind, merge.ErrIncompleteGroup) {
			continue
		}
		fmt.Fprintf(w, "failed: %v\n", f)
	}
}
