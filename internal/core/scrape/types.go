package scrape

import (
	"context"
	"time"

	"leadscraper/internal/core/lead"
)

// Status for job tracking
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one submitted scraping request and its progress state. A Job
// is written only by its orchestrator goroutine; everything else reads
// snapshots through the Store.
type Job struct {
	ID          string   `json:"job_id"`
	Status      Status   `json:"status"`
	Sources     []string `json:"sources"`
	Fields      []string `json:"fields"`
	TargetCount int      `json:"target_count"`

	Percent          int     `json:"percentage"`
	Message          string  `json:"message"`
	ScrapedCount     int     `json:"scraped_count"`
	SourcesProcessed int     `json:"sources_processed"`
	ErrorCount       int     `json:"error_count"`
	AttemptCount     int     `json:"attempt_count"`
	CurrentSource    string  `json:"current_source,omitempty"`
	EstimatedTime    string  `json:"estimated_time,omitempty"`
	ProcessingRate   float64 `json:"processing_rate,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	Records []lead.Record `json:"records,omitempty"`
}

// Elapsed is the wall time since the job entered Running.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(j.StartedAt)
}

// RunResult is the outcome of one completed provider run.
type RunResult struct {
	Status  string           `json:"status"`
	Data    []lead.RawRecord `json:"data"`
	Message string           `json:"message"`
}

// ProviderRun is an in-flight provider execution: Wait blocks until the
// remote run settles, Log fetches the incremental free-text log from
// the given byte offset.
type ProviderRun interface {
	Wait(ctx context.Context) (*RunResult, error)
	Log(ctx context.Context, offset int) (chunk string, next int, err error)
}

// Provider starts one batch scraping run for a single source.
type Provider interface {
	Start(ctx context.Context, source string, quota int, fields []string) (ProviderRun, error)
}

// SubmitRequest is the submission payload.
type SubmitRequest struct {
	Sources     []string `json:"urls" validate:"required,min=1,max=10,dive,url"`
	LeadCount   int      `json:"lead_count" validate:"required,min=1,max=50000"`
	Fields      []string `json:"fields" validate:"omitempty,max=12"`
}

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// StatusResponse is the point-in-time job snapshot returned by the
// status endpoint. Data is populated only once the job completed.
type StatusResponse struct {
	Success          bool          `json:"success"`
	JobID            string        `json:"job_id"`
	Status           Status        `json:"status"`
	Percentage       int           `json:"percentage"`
	Message          string        `json:"message"`
	ScrapedCount     int           `json:"scraped_count"`
	SourcesProcessed int           `json:"sources_processed"`
	TotalSources     int           `json:"total_sources"`
	ErrorCount       int           `json:"error_count"`
	AttemptCount     int           `json:"attempt_count"`
	Data             []lead.Record `json:"data,omitempty"`
	TotalCount       int           `json:"total_count"`
}

// ErrorResponse mirrors the API error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
