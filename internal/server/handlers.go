package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/maauso/clipmerge/internal/config"
	"github.com/maauso/clipmerge/internal/job"
	"github.com/maauso/clipmerge/internal/job/id"
	"github.com/maauso/clipmerge/internal/merge"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service *job.MergeService
	// defaults is the run configuration requests are layered onto.
	defaults           merge.RunConfig
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateMerge only records the job as IN_QUEUE.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.MergeService, defaults merge.RunConfig, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		defaults:           defaults,
		validator:          validator.New(validator.WithRequiredStructEnabled()),
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateMerge handles POST /merges requests.
func (h *Handlers) CreateMerge(w http.ResponseWriter, r *http.Request) {
	var req CreateMergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input, err := h.mergeInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	var created *job.Job
	if h.enableAsyncProcess {
		created, err = h.service.Submit(r.Context(), input)
	} else {
		created, err = h.service.CreateJob(r.Context(), &input)
	}
	if err != nil {
		if errors.Is(err, merge.ErrInvalidConfig) || errors.Is(err, merge.ErrTooFewClips) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	h.logger.Info("job created",
		slog.String("job_id", created.ID),
		slog.Int("clips", len(req.Clips)),
		slog.String("strategy", created.Strategy),
	)

	writeJSON(w, http.StatusAccepted, CreateMergeResponse{
		ID:       created.ID,
		Status:   string(created.Status),
		Strategy: created.Strategy,
	})
}

// mergeInput layers the request onto the default run configuration.
func (h *Handlers) mergeInput(req CreateMergeRequest) (job.MergeInput, error) {
	cfg := h.defaults
	preset := config.Preset{
		Policy:     req.Policy,
		Aspect:     req.Aspect,
		Background: req.Background,
		GroupSize:  req.GroupSize,
		Assembly:   req.Assembly,
		Audio:      req.Audio,
		OutputDir:  req.OutputDir,
		PushToS3:   &req.PushToS3,
	}
	if err := preset.Apply(&cfg); err != nil {
		return job.MergeInput{}, err
	}
	return job.MergeInput{Clips: req.Clips, Config: cfg}, nil
}

// GetJob handles GET /merges/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(found))
}

// ListJobs handles GET /merges requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: lo.Map(jobs, func(j *job.Job, _ int) JobResponse {
		return toJobResponse(j)
	})})
}

// CancelJob handles DELETE /merges/{id} requests.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrNotCancellable) {
			writeError(w, http.StatusConflict, "job already finished", "JOB_NOT_CANCELLABLE")
			return
		}
		h.writeLookupError(w, jobID, err)
		return
	}

	writeJSON(w, http.StatusAccepted, CreateMergeResponse{ID: jobID, Status: string(job.StatusCancelled)})
}

func (h *Handlers) jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return "", false
	}
	if !id.Valid(jobID) {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return "", false
	}
	return jobID, true
}

func (h *Handlers) writeLookupError(w http.ResponseWriter, jobID string, err error) {
	if errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}
	h.logger.Error("failed to get job",
		slog.String("job_id", jobID),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
}

func toJobResponse(j *job.Job) JobResponse {
	snapshot := j.Clone()
	return JobResponse{
		ID:           snapshot.ID,
		Status:       string(snapshot.Status),
		Strategy:     snapshot.Strategy,
		Progress:     snapshot.Progress,
		SuccessCount: snapshot.SuccessCount,
		ErrorCount:   snapshot.ErrorCount,
		Error:        snapshot.Error,
		Clips: lo.Map(snapshot.Clips, func(c job.Clip, _ int) ClipResponse {
			return ClipResponse{Path: c.Path, Group: c.Group, Status: string(c.Status), Strategy: c.Strategy, Error: c.Error}
		}),
		Outputs: lo.Map(snapshot.Outputs, func(o job.Output, _ int) OutputResponse {
			return OutputResponse{Group: o.Group, Path: o.Path, URL: o.URL}
		}),
		CreatedAt: snapshot.CreatedAt,
		UpdatedAt: snapshot.UpdatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
