package stream

import (
	"context"
	"math"
	"time"

	"leadscraper/internal/core/scrape"
	"leadscraper/internal/logger"
)

// Event is one SSE frame of job progress. Field names match what the
// browser client expects.
type Event struct {
	JobID            string  `json:"job_id,omitempty"`
	Status           string  `json:"status,omitempty"`
	Percent          int     `json:"percentage"`
	Message          string  `json:"message"`
	ScrapedCount     int     `json:"scraped_count"`
	SourcesProcessed int     `json:"urls_processed"`
	TotalSources     int     `json:"total_urls"`
	ErrorCount       int     `json:"error_count"`
	CurrentSource    string  `json:"current_url,omitempty"`
	EstimatedTime    string  `json:"estimated_time,omitempty"`
	ProcessingRate   float64 `json:"processing_rate,omitempty"`
	ElapsedTime      float64 `json:"elapsed_time"`
	Timestamp        string  `json:"timestamp"`
	Final            bool    `json:"final,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// Service turns the polling job store into a push stream: it samples a
// job on an interval and emits an event whenever something the client
// renders has changed.
type Service struct {
	store    *scrape.Store
	interval time.Duration
	log      *logger.Logger
}

func NewService(store *scrape.Store, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Service{store: store, interval: interval, log: logger.New("StreamService")}
}

// Stream emits progress events for a job until it reaches a terminal
// state or ctx is cancelled. An unknown job id produces a single error
// event. emit returning an error ends the stream (client went away).
func (s *Service) Stream(ctx context.Context, jobID string, emit func(Event) error) error {
	job, ok := s.store.Get(jobID)
	if !ok {
		return emit(Event{Error: "job not found", Timestamp: now()})
	}

	if err := emit(s.snapshot(job)); err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}
	last := job

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		job, ok = s.store.Get(jobID)
		if !ok {
			return emit(Event{Error: "job evicted", Timestamp: now()})
		}

		if changed(last, job) {
			if err := emit(s.snapshot(job)); err != nil {
				return err
			}
			last = job
		}
		if job.Status.Terminal() {
			return nil
		}
	}
}

func (s *Service) snapshot(j scrape.Job) Event {
	// Terminal jobs report the elapsed time they finished with, not
	// wall time that keeps growing for late subscribers.
	asOf := time.Now()
	if j.Status.Terminal() && !j.FinishedAt.IsZero() {
		asOf = j.FinishedAt
	}
	ev := Event{
		JobID:            j.ID,
		Status:           string(j.Status),
		Percent:          j.Percent,
		Message:          j.Message,
		ScrapedCount:     j.ScrapedCount,
		SourcesProcessed: j.SourcesProcessed,
		TotalSources:     len(j.Sources),
		ErrorCount:       j.ErrorCount,
		CurrentSource:    j.CurrentSource,
		EstimatedTime:    j.EstimatedTime,
		ProcessingRate:   j.ProcessingRate,
		ElapsedTime:      round1(j.Elapsed(asOf).Seconds()),
		Timestamp:        now(),
	}
	if j.Status.Terminal() || j.Percent >= 100 {
		ev.Final = true
	}
	return ev
}

func changed(a, b scrape.Job) bool {
	return a.Percent != b.Percent ||
		a.Message != b.Message ||
		a.ScrapedCount != b.ScrapedCount ||
		a.SourcesProcessed != b.SourcesProcessed ||
		a.ErrorCount != b.ErrorCount ||
		a.Status != b.Status
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
