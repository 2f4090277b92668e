package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/maauso/clipmerge/internal/merge"
)

// ErrNotCancellable is returned when cancelling a job that already finished.
var ErrNotCancellable = errors.New("job is not cancellable")

// Runner executes merge runs.
type Runner interface {
	RunObserved(ctx context.Context, clips []string, cfg merge.RunConfig, observer merge.Observer) (*merge.RunResult, error)
}

// MergeInput contains the input of a merge job.
type MergeInput struct {
	// Clips are the input clip paths in merge order.
	Clips []string
	// Config is the explicit run configuration.
	Config merge.RunConfig
}

// MergeService runs merge jobs in the background and tracks them in a
// Repository.
type MergeService struct {
	repo   Repository
	runner Runner
	logger *slog.Logger
	// slots limits concurrently running merges.
	slots chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// ServiceOption configures a MergeService.
type ServiceOption func(*MergeService)

// WithMaxConcurrentJobs limits how many merges run at once. Extra jobs wait
// IN_QUEUE.
func WithMaxConcurrentJobs(n int) ServiceOption {
	return func(s *MergeService) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		}
	}
}

// NewMergeService creates a new MergeService.
func NewMergeService(repo Repository, runner Runner, logger *slog.Logger, opts ...ServiceOption) *MergeService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MergeService{
		repo:    repo,
		runner:  runner,
		logger:  logger,
		slots:   make(chan struct{}, 1),
		cancels: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OptionsFromConfig records the run choices of cfg on a job.
func OptionsFromConfig(cfg merge.RunConfig) Options {
	opts := Options{
		Policy:     cfg.Policy.String(),
		Background: cfg.Background.String(),
		GroupSize:  cfg.GroupSize,
		Assembly:   string(cfg.Assembly),
		Audio:      string(cfg.Audio),
		OutputDir:  cfg.OutputDir,
		PushToS3:   cfg.Publish,
	}
	if cfg.Policy == merge.PolicyCropToAspect {
		opts.Aspect = cfg.Aspect.String()
	}
	return opts
}

// CreateJob validates the input and persists a new IN_QUEUE job. Clip paths
// are made absolute.
func (s *MergeService) CreateJob(ctx context.Context, input *MergeInput) (*Job, error) {
	if err := input.Config.Validate(); err != nil {
		return nil, err
	}
	if len(input.Clips) < 2 {
		return nil, fmt.Errorf("%w: got %d", merge.ErrTooFewClips, len(input.Clips))
	}
	for i, p := range input.Clips {
		if abs, err := filepath.Abs(p); err == nil {
			input.Clips[i] = abs
		}
	}

	job := New(input.Clips, OptionsFromConfig(input.Config))
	job.SetStrategy(input.Config.StrategyName())

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.Int("clips", len(input.Clips)),
		slog.String("strategy", job.Strategy),
		slog.Int("group_size", input.Config.GroupSize),
		slog.Bool("push_to_s3", input.Config.Publish),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// Submit creates a job and processes it in the background. The returned job
// is the IN_QUEUE snapshot.
func (s *MergeService) Submit(ctx context.Context, input MergeInput) (*Job, error) {
	input.Clips = append([]string(nil), input.Clips...)
	job, err := s.CreateJob(ctx, &input)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func(j *Job) {
		defer s.wg.Done()
		defer s.forget(j.ID)
		if err := s.Process(runCtx, j, input); err != nil {
			s.logger.Error("job processing failed", slog.String("job_id", j.ID), slog.String("error", err.Error()))
		}
	}(job.Clone())

	return job, nil
}

// Process runs the merge for job and records the outcome. A run that writes
// at least one output completes even when some clips failed.
func (s *MergeService) Process(ctx context.Context, job *Job, input MergeInput) error {
	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return s.finish(job, nil, ctx.Err())
	}

	if err := job.Start(); err != nil {
		return fmt.Errorf("start job %s: %w", job.ID, err)
	}
	s.save(job)
	s.logger.Info("job started", slog.String("job_id", job.ID))

	result, err := s.runner.RunObserved(ctx, input.Clips, input.Config, s.observer(job))
	return s.finish(job, result, err)
}

func (s *MergeService) finish(job *Job, result *merge.RunResult, runErr error) error {
	if result != nil {
		job.SetCounts(result.SuccessCount, result.ErrorCount)
		for _, g := range result.Groups {
			if g.Output != "" {
				job.AddOutput(Output{Group: g.Index, Path: g.Output, URL: g.URL})
			}
		}
	}

	var err error
	switch {
	case errors.Is(runErr, context.Canceled):
		err = job.Cancel()
	case runErr != nil:
		err = job.Fail(runErr.Error())
	case result.SuccessCount == 0:
		msg := "no output produced"
		if len(result.Failures) > 0 {
			msg = fmt.Sprintf("%s: %v", msg, result.Failures[len(result.Failures)-1])
		}
		err = job.Fail(msg)
	default:
		err = job.Complete()
	}
	s.save(job)

	snapshot := job.Clone()
	s.logger.Info("job finished",
		slog.String("job_id", snapshot.ID),
		slog.String("status", string(snapshot.Status)),
		slog.Int("success_count", snapshot.SuccessCount),
		slog.Int("error_count", snapshot.ErrorCount),
	)
	return err
}

// observer mirrors run progress onto the job.
func (s *MergeService) observer(job *Job) merge.Observer {
	return merge.ObserverFunc(func(e merge.Event) {
		switch e.Kind {
		case merge.EventClipNormalized:
			job.UpdateClip(e.Clip, func(c *Clip) {
				c.Status = ClipStatusNormalized
				c.Group = e.Group
				c.Strategy = string(e.Strategy)
			})
		case merge.EventClipFailed:
			job.UpdateClip(e.Clip, func(c *Clip) {
				c.Status = ClipStatusFailed
				c.Group = e.Group
				c.Strategy = string(e.Strategy)
				if e.Err != nil {
					c.Error = e.Err.Error()
				}
			})
		case merge.EventClipSkipped:
			job.UpdateClip(e.Clip, func(c *Clip) { c.Status = ClipStatusSkipped })
		}
		if e.Steps > 0 {
			job.UpdateProgress(e.Step * 100 / e.Steps)
		}
		s.save(job)
	})
}

func (s *MergeService) save(job *Job) {
	if err := s.repo.Save(context.Background(), job); err != nil {
		s.logger.Warn("failed to save job", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
}

func (s *MergeService) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
}

// Cancel stops a queued or running job. The run stops before its next group
// and kills any encode in flight.
func (s *MergeService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		s.logger.Info("cancelling job", slog.String("job_id", id))
		cancel()
		return nil
	}

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return ErrNotCancellable
	}
	if err := job.Cancel(); err != nil {
		return err
	}
	return s.repo.Save(ctx, job)
}

// GetJob retrieves a job by ID.
func (s *MergeService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns every job, oldest first.
func (s *MergeService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Wait blocks until every submitted job has finished.
func (s *MergeService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels every running job and waits for them to finish.
func (s *MergeService) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	s.Wait()
}
