package scrape

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"leadscraper/internal/config"
	"leadscraper/internal/core/lead"
	"leadscraper/internal/core/progress"
	"leadscraper/internal/logger"
	"leadscraper/internal/platform/retry"
)

// Progress below this is reserved for job initialization; the per-source
// loop fills the band up to maxLoopPercent and finalization takes it to
// 100.
const (
	basePercent    = 10
	maxLoopPercent = 95
)

// How often an in-flight run's log is polled for progress signal.
const logPollInterval = 2 * time.Second

// DefaultFields is applied when a submission names no fields.
var DefaultFields = []string{lead.FieldName, lead.FieldEmail, lead.FieldCompany, lead.FieldTitle}

// Service is the scrape orchestrator. Each submitted job gets its own
// goroutine that drives it from Pending to a terminal state, writing
// every intermediate step into the Store.
type Service struct {
	store    *Store
	provider Provider
	limiter  *rate.Limiter
	retry    retry.Policy
	overhead int
	logPoll  time.Duration
	log      *logger.Logger
}

func NewService(store *Store, provider Provider, cfg config.Config) *Service {
	pause := time.Duration(cfg.SourcePauseSeconds) * time.Second
	if pause <= 0 {
		pause = time.Second
	}
	return &Service{
		store:    store,
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(pause), 1),
		retry: retry.Policy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
			MaxDelay:  cfg.RetryMaxDelay,
		},
		overhead: cfg.SourceQuotaOverhead,
		logPoll:  logPollInterval,
		log:      logger.New("ScrapeService"),
	}
}

// Submit registers a new job and schedules its orchestrator to run in
// the background. The returned id is immediately queryable.
func (s *Service) Submit(req SubmitRequest) (string, error) {
	fields := req.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	for _, f := range fields {
		if !lead.IsKnownField(f) {
			return "", fmt.Errorf("unknown field: %s", f)
		}
	}

	id := uuid.New().String()
	s.store.Create(&Job{
		ID:          id,
		Status:      StatusPending,
		Sources:     req.Sources,
		Fields:      fields,
		TargetCount: req.LeadCount,
		Message:     "Job accepted",
		CreatedAt:   time.Now(),
	})

	go s.run(id)

	s.log.LogInfof("submitted job %s: %d sources, target %d leads", id, len(req.Sources), req.LeadCount)
	return id, nil
}

// run drives one job to a terminal state. Only a job-level fatal fault
// produces Failed; per-source failures are folded into counters and the
// job still completes with whatever was gathered.
func (s *Service) run(id string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.LogErrorf("job %s panicked: %v", id, r)
			s.fail(id, fmt.Errorf("internal fault: %v", r))
		}
	}()

	ctx := context.Background()
	snap, ok := s.store.Get(id)
	if !ok {
		return
	}

	start := time.Now()
	s.store.Update(id, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = start
		j.Percent = basePercent
		j.Message = "Initializing scraper..."
	})

	total := len(snap.Sources)
	var acc []lead.Record
	var sourceTimes []time.Duration
	skipped := 0

	for i, source := range snap.Sources {
		if len(acc) >= snap.TargetCount {
			skipped = total - i
			break
		}

		// Self-throttle between provider round trips.
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		idx := i
		s.store.Update(id, func(j *Job) {
			j.CurrentSource = source
			j.Message = fmt.Sprintf("Scraping source %d of %d...", idx+1, total)
		})

		quota := s.sourceQuota(snap.TargetCount, total, len(acc))
		srcStart := time.Now()
		res, err := s.runSource(ctx, id, idx, total, source, quota, snap.Fields, start)
		sourceTimes = append(sourceTimes, time.Since(srcStart))

		acc = s.applyOutcome(id, idx, total, source, classify(res, err), acc, snap.TargetCount, snap.Fields, start, sourceTimes)
	}

	if len(acc) > snap.TargetCount {
		acc = acc[:snap.TargetCount]
	}
	processed := total - skipped
	s.store.Update(id, func(j *Job) {
		j.Records = acc
		j.ScrapedCount = len(acc)
		j.Status = StatusCompleted
		j.Percent = 100
		j.FinishedAt = time.Now()
		j.EstimatedTime = "00:00"
		msg := fmt.Sprintf("Successfully scraped %d leads from %d sources", len(acc), processed)
		if skipped > 0 {
			msg += fmt.Sprintf(" (%d remaining sources skipped, target reached)", skipped)
		}
		j.Message = msg
	})
	s.log.LogInfof("job %s completed: %d leads, %d sources, %d skipped", id, len(acc), processed, skipped)
}

// sourceQuota over-asks a single source rather than paying extra round
// trips: the provider routinely under-delivers per page.
func (s *Service) sourceQuota(target, sourceCount, scraped int) int {
	remaining := target - scraped
	perSource := target/sourceCount + s.overhead
	if remaining < perSource {
		return remaining
	}
	return perSource
}

// runSource executes one provider run for a source under the retry
// policy, with a monitor goroutine translating the run's live log into
// store updates while it is in flight.
func (s *Service) runSource(ctx context.Context, jobID string, idx, total int, source string, quota int, fields []string, jobStart time.Time) (*RunResult, error) {
	policy := s.retry
	policy.OnRetry = func(attempt int, err error) {
		s.store.Update(jobID, func(j *Job) {
			j.Message = fmt.Sprintf("Retrying %s (attempt %d/%d): %v", hostOf(source), attempt, policy.Attempts, err)
		})
	}

	return retry.Do(ctx, policy, func(ctx context.Context) (*RunResult, error) {
		s.store.Update(jobID, func(j *Job) { j.AttemptCount++ })

		run, err := s.provider.Start(ctx, source, quota, fields)
		if err != nil {
			return nil, err
		}

		monCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.monitor(monCtx, jobID, idx, total, run, jobStart)
		}()
		// Reap the monitor even when Wait unwinds with a panic.
		defer func() {
			cancel()
			<-done
		}()

		res, err := run.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if res.Status != "success" {
			return nil, errors.New(orMessage(res.Message, "provider run failed"))
		}
		return res, nil
	})
}

// monitor polls the run log and folds parsed deltas into the job. The
// caller tracks nothing; the log offset lives here.
func (s *Service) monitor(ctx context.Context, jobID string, idx, total int, run ProviderRun, jobStart time.Time) {
	ticker := time.NewTicker(s.logPoll)
	defer ticker.Stop()

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		chunk, next, err := run.Log(ctx, offset)
		if err != nil {
			continue
		}
		offset = next

		delta := progress.Parse(chunk, time.Since(jobStart))
		if delta == nil {
			continue
		}
		s.applyDelta(jobID, idx, total, delta)
	}
}

// applyDelta merges a parsed log delta into the job. Only fields the
// delta actually carries are written; the store clamps any regression.
func (s *Service) applyDelta(jobID string, idx, total int, d *progress.Delta) {
	s.store.Update(jobID, func(j *Job) {
		if d.Percent > 0 {
			j.Percent = loopPercent(idx, total, d.Percent)
		}
		if d.Message != "" {
			j.Message = d.Message
		} else if d.ErrorSeen {
			j.Message = "Provider reported a problem, continuing..."
		}
		if d.CurrentURL != "" {
			j.CurrentSource = d.CurrentURL
		}
		if d.ProcessingRate > 0 {
			j.ProcessingRate = round1(d.ProcessingRate)
		}
		if d.ETA > 0 {
			j.EstimatedTime = mmss(d.ETA)
		}
	})
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeEmpty
	outcomeFailure
)

// sourceOutcome makes the per-source result explicit so the fold into
// job counters is a plain reducer instead of scattered branches.
type sourceOutcome struct {
	kind   outcomeKind
	raw    []lead.RawRecord
	reason string
}

func classify(res *RunResult, err error) sourceOutcome {
	switch {
	case err != nil:
		return sourceOutcome{kind: outcomeFailure, reason: err.Error()}
	case res == nil || len(res.Data) == 0:
		return sourceOutcome{kind: outcomeEmpty, reason: "no results"}
	default:
		return sourceOutcome{kind: outcomeSuccess, raw: res.Data}
	}
}

// applyOutcome is the reducer: it normalizes and accumulates records on
// success, otherwise bumps the error counter, and in every case
// advances the source-level progress. A bad source never aborts the
// job.
func (s *Service) applyOutcome(id string, idx, total int, source string, oc sourceOutcome, acc []lead.Record, target int, fields []string, jobStart time.Time, sourceTimes []time.Duration) []lead.Record {
	switch oc.kind {
	case outcomeSuccess:
		kept := 0
		for _, raw := range oc.raw {
			if len(acc) >= target {
				break
			}
			rec := lead.MapRecord(raw, fields)
			if rec.Empty() {
				continue
			}
			acc = append(acc, rec)
			kept++
		}
		count := len(acc)
		s.store.Update(id, func(j *Job) {
			j.SourcesProcessed++
			j.ScrapedCount = count
			j.Percent = loopPercent(idx+1, total, 0)
			if mins := time.Since(jobStart).Minutes(); mins > 0 {
				j.ProcessingRate = round1(float64(count) / mins)
			}
			j.EstimatedTime = etaFromSources(sourceTimes, total)
			j.Message = fmt.Sprintf("Source %d of %d done: %d new leads (%d total)", idx+1, total, kept, count)
		})
	default:
		s.store.Update(id, func(j *Job) {
			j.SourcesProcessed++
			j.ErrorCount++
			j.Percent = loopPercent(idx+1, total, 0)
			j.EstimatedTime = etaFromSources(sourceTimes, total)
			if oc.kind == outcomeEmpty {
				j.Message = fmt.Sprintf("Source %d of %d (%s) returned no results, continuing", idx+1, total, hostOf(source))
			} else {
				j.Message = fmt.Sprintf("Source %d of %d (%s) failed: %s", idx+1, total, hostOf(source), oc.reason)
			}
		})
		s.log.LogWarnf("job %s source %s: %s", id, hostOf(source), oc.reason)
	}
	return acc
}

// fail is the job-level fatal path: the job goes straight to Failed and
// any partial records are withheld from the visible result.
func (s *Service) fail(id string, err error) {
	s.store.Update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Records = nil
		j.FinishedAt = time.Now()
		j.Message = fmt.Sprintf("Scraping failed: %v", err)
	})
}

// loopPercent maps source-loop position (plus an optional 0-100
// within-source estimate) into the basePercent..maxLoopPercent band.
// The band never reaches 100 before finalization.
func loopPercent(processed, total, within int) int {
	if total <= 0 {
		return basePercent
	}
	span := maxLoopPercent - basePercent
	p := basePercent + (processed*span)/total + (within*span)/(total*100)
	if p > maxLoopPercent {
		return maxLoopPercent
	}
	return p
}

// etaFromSources estimates remaining time from the average per-source
// elapsed time times the number of sources left.
func etaFromSources(sourceTimes []time.Duration, total int) string {
	if len(sourceTimes) == 0 {
		return ""
	}
	var sum time.Duration
	for _, d := range sourceTimes {
		sum += d
	}
	avg := sum / time.Duration(len(sourceTimes))
	remaining := total - len(sourceTimes)
	if remaining <= 0 {
		return "00:00"
	}
	return mmss(avg * time.Duration(remaining))
}

func mmss(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func hostOf(source string) string {
	if u, err := url.Parse(source); err == nil && u.Host != "" {
		return u.Host
	}
	return source
}

func orMessage(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}
