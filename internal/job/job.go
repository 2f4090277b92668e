// Package job provides the Job aggregate for managing merge jobs run in the
// background by the HTTP API. It includes the Job entity with its state
// machine, repository implementations and the MergeService use case.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/clipmerge/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to start.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the merge is in progress.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates at least one output was written.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the run was rejected or produced no output.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled by a client.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ClipStatus represents the status of a single input clip.
type ClipStatus string

const (
	// ClipStatusPending indicates the clip has not been normalized yet.
	ClipStatusPending ClipStatus = "PENDING"
	// ClipStatusNormalized indicates the clip was rendered onto the canvas.
	ClipStatusNormalized ClipStatus = "NORMALIZED"
	// ClipStatusFailed indicates the clip was excluded after a failure.
	ClipStatusFailed ClipStatus = "FAILED"
	// ClipStatusSkipped indicates the clip did not fill a group.
	ClipStatusSkipped ClipStatus = "SKIPPED"
)

// Clip is an input clip of a job.
type Clip struct {
	Index    int        `json:"index"`
	Path     string     `json:"path"`
	Group    int        `json:"group,omitempty"`
	Status   ClipStatus `json:"status"`
	Strategy string     `json:"strategy,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Output is a merged file produced by a job.
type Output struct {
	Group int    `json:"group"`
	Path  string `json:"path"`
	URL   string `json:"url,omitempty"`
}

// Options records the run choices a job was submitted with.
type Options struct {
	Policy     string `json:"policy"`
	Aspect     string `json:"aspect,omitempty"`
	Background string `json:"background"`
	GroupSize  int    `json:"group_size"`
	Assembly   string `json:"assembly"`
	Audio      string `json:"audio"`
	OutputDir  string `json:"output_dir"`
	PushToS3   bool   `json:"push_to_s3"`
}

// Job represents a merge job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string `json:"id"`
	// Status is the current job state.
	Status Status `json:"status"`
	// Options are the run choices.
	Options Options `json:"options"`
	// Strategy names the run strategy, e.g. "fixed_1920x1080_pad".
	Strategy string `json:"strategy,omitempty"`
	// Clips holds the inputs in merge order.
	Clips []Clip `json:"clips"`
	// Outputs holds the written files in group order.
	Outputs []Output `json:"outputs"`
	// SuccessCount is the number of outputs written.
	SuccessCount int `json:"success_count"`
	// ErrorCount counts probe, compose and concat failures.
	ErrorCount int `json:"error_count"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time `json:"updated_at"`
	// StartedAt is when processing started.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when processing finished.
	CompletedAt time.Time `json:"completed_at"`
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New(paths []string, opts Options) *Job {
	return NewWithID(id.Generate(), paths, opts)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string, paths []string, opts Options) *Job {
	now := time.Now()
	clips := make([]Clip, len(paths))
	for i, p := range paths {
		clips[i] = Clip{Index: i, Path: p, Status: ClipStatusPending}
	}
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Options:   opts,
		Clips:     clips,
		Outputs:   make([]Output, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted:
		j.CompletedAt = j.UpdatedAt
		j.Progress = 100
	case StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStrategy records the run strategy name.
func (j *Job) SetStrategy(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Strategy = name
	j.UpdatedAt = time.Now()
}

// UpdateClip applies fn to the clip with the given path. It reports whether
// a clip matched.
func (j *Job) UpdateClip(path string, fn func(*Clip)) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.Clips {
		if j.Clips[i].Path == path {
			fn(&j.Clips[i])
			j.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// AddOutput records a merged file.
func (j *Job) AddOutput(out Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outputs = append(j.Outputs, out)
	j.UpdatedAt = time.Now()
}

// SetCounts records the run's success and error counts.
func (j *Job) SetCounts(success, errs int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.SuccessCount = success
	j.ErrorCount = errs
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	clips := make([]Clip, len(j.Clips))
	copy(clips, j.Clips)
	outputs := make([]Output, len(j.Outputs))
	copy(outputs, j.Outputs)

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		Options:      j.Options,
		Strategy:     j.Strategy,
		Clips:        clips,
		Outputs:      outputs,
		SuccessCount: j.SuccessCount,
		ErrorCount:   j.ErrorCount,
		Progress:     j.Progress,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
