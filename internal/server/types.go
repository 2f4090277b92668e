// Package server provides the HTTP API for submitting and tracking merge jobs.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateMergeRequest is the HTTP request body for starting a merge.
type CreateMergeRequest struct {
	// Clips are the input clip paths in merge order.
	Clips []string `json:"clips" validate:"required,min=2,dive,required"`
	// OutputDir is the directory outputs are written to.
	OutputDir string `json:"output_dir" validate:"required"`
	// Policy selects the canvas: first, fixed or crop.
	Policy string `json:"policy" validate:"omitempty,oneof=first first_clip first-clip fixed fixed_target fixed-target crop crop_to_aspect crop-to-aspect"`
	// Aspect is the crop target, e.g. "16:9".
	Aspect string `json:"aspect"`
	// Background is pad or blur.
	Background string `json:"background" validate:"omitempty,oneof=pad black blur"`
	// GroupSize enables group mode when set above 1.
	GroupSize *int `json:"group_size" validate:"omitempty,gte=0"`
	// Assembly is reencode or copy.
	Assembly string `json:"assembly" validate:"omitempty,oneof=reencode copy"`
	// Audio is reencode or passthrough.
	Audio string `json:"audio" validate:"omitempty,oneof=reencode passthrough"`
	// PushToS3 uploads every output when S3 is configured.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateMergeResponse is the HTTP response after creating a merge job.
type CreateMergeResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
	// Strategy names the run strategy.
	Strategy string `json:"strategy"`
}

// ClipResponse describes one input clip of a job.
type ClipResponse struct {
	Path     string `json:"path"`
	Group    int    `json:"group"`
	Status   string `json:"status"`
	Strategy string `json:"strategy,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OutputResponse describes one written output.
type OutputResponse struct {
	Group int    `json:"group"`
	Path  string `json:"path"`
	URL   string `json:"url,omitempty"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Strategy names the run strategy.
	Strategy string `json:"strategy"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// SuccessCount is the number of outputs written.
	SuccessCount int `json:"success_count"`
	// ErrorCount is the number of failed clips and groups.
	ErrorCount int `json:"error_count"`
	// Error contains any error message if the job failed.
	Error   string           `json:"error,omitempty"`
	Clips   []ClipResponse   `json:"clips"`
	Outputs []OutputResponse `json:"outputs"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
