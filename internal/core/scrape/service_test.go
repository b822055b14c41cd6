package scrape

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"leadscraper/internal/config"
	"leadscraper/internal/core/lead"
	"leadscraper/internal/platform/retry"
)

type fakeRun struct {
	result *RunResult
	err    error
	log    string
}

func (r *fakeRun) Wait(ctx context.Context) (*RunResult, error) {
	return r.result, r.err
}

func (r *fakeRun) Log(ctx context.Context, offset int) (string, int, error) {
	if offset >= len(r.log) {
		return "", offset, nil
	}
	return r.log[offset:], len(r.log), nil
}

// fakeProvider scripts one outcome per source URL. failFor sources
// error on every attempt.
type fakeProvider struct {
	records map[string]int
	failFor map[string]bool
	quotas  map[string][]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		records: map[string]int{},
		failFor: map[string]bool{},
		quotas:  map[string][]int{},
	}
}

func (p *fakeProvider) Start(ctx context.Context, source string, quota int, fields []string) (ProviderRun, error) {
	p.quotas[source] = append(p.quotas[source], quota)
	if p.failFor[source] {
		return nil, errors.New("actor unavailable")
	}
	n := p.records[source]
	if n > quota {
		n = quota
	}
	data := make([]lead.RawRecord, n)
	for i := range data {
		data[i] = lead.RawRecord{"name": "jane doe", "email": "jane@acme.com"}
	}
	return &fakeRun{result: &RunResult{Status: "success", Data: data}}, nil
}

// faultyRun blows up inside the orchestrator itself, past the
// per-source error handling.
type faultyRun struct{}

func (faultyRun) Wait(ctx context.Context) (*RunResult, error) {
	panic("job table corrupted")
}

func (faultyRun) Log(ctx context.Context, offset int) (string, int, error) {
	return "", offset, nil
}

type faultyProvider struct{}

func (faultyProvider) Start(ctx context.Context, source string, quota int, fields []string) (ProviderRun, error) {
	return faultyRun{}, nil
}

// leakyRun panics in Wait while its log is still being polled, so the
// monitor teardown on the fatal path is observable through logCalls.
type leakyRun struct {
	logCalls *int64
}

func (r leakyRun) Wait(ctx context.Context) (*RunResult, error) {
	time.Sleep(10 * time.Millisecond)
	panic("job table corrupted")
}

func (r leakyRun) Log(ctx context.Context, offset int) (string, int, error) {
	atomic.AddInt64(r.logCalls, 1)
	return "", offset, nil
}

type leakyProvider struct {
	logCalls *int64
}

func (p leakyProvider) Start(ctx context.Context, source string, quota int, fields []string) (ProviderRun, error) {
	return leakyRun{logCalls: p.logCalls}, nil
}

// floodProvider ignores the requested quota entirely and over-delivers.
type floodProvider struct {
	perSource int
}

func (p *floodProvider) Start(ctx context.Context, source string, quota int, fields []string) (ProviderRun, error) {
	data := make([]lead.RawRecord, p.perSource)
	for i := range data {
		data[i] = lead.RawRecord{"name": "jane doe"}
	}
	return &fakeRun{result: &RunResult{Status: "success", Data: data}}, nil
}

func newTestService(p Provider) (*Service, *Store) {
	store := NewStore()
	svc := NewService(store, p, config.Config{
		SourceQuotaOverhead: 100,
		RetryAttempts:       3,
		RetryBaseDelay:      time.Millisecond,
		RetryMaxDelay:       4 * time.Millisecond,
	})
	svc.limiter = rate.NewLimiter(rate.Inf, 1)
	svc.retry = retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	return svc, store
}

func awaitTerminal(t *testing.T, store *Store, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := store.Get(id); ok && job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return Job{}
}

func TestSubmitRejectsUnknownField(t *testing.T) {
	svc, _ := newTestService(newFakeProvider())
	_, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/s1"},
		LeadCount: 10,
		Fields:    []string{"shoe_size"},
	})
	assert.Error(t, err)
}

func TestSubmitDefaultsFields(t *testing.T) {
	p := newFakeProvider()
	p.records["https://example.com/s1"] = 2
	svc, store := newTestService(p)

	id, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/s1"},
		LeadCount: 5,
	})
	require.NoError(t, err)

	job := awaitTerminal(t, store, id)
	assert.Equal(t, DefaultFields, job.Fields)
}

func TestRunCompletesAcrossSources(t *testing.T) {
	p := newFakeProvider()
	p.records["https://example.com/s1"] = 6
	p.records["https://example.com/s2"] = 8
	svc, store := newTestService(p)

	id, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/s1", "https://example.com/s2"},
		LeadCount: 10,
		Fields:    []string{lead.FieldName, lead.FieldEmail},
	})
	require.NoError(t, err)

	job := awaitTerminal(t, store, id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Percent)
	assert.Equal(t, 10, job.ScrapedCount)
	assert.Len(t, job.Records, 10)
	assert.Equal(t, 2, job.SourcesProcessed)
	assert.Equal(t, 0, job.ErrorCount)
	assert.Equal(t, "Jane Doe", job.Records[0][lead.FieldName])
	assert.False(t, job.FinishedAt.IsZero())
}

func TestRunSkipsSourcesOnceTargetMet(t *testing.T) {
	p := newFakeProvider()
	p.records["https://example.com/s1"] = 50
	p.records["https://example.com/s2"] = 50
	svc, store := newTestService(p)

	id, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/s1", "https://example.com/s2"},
		LeadCount: 3,
	})
	require.NoError(t, err)

	job := awaitTerminal(t, store, id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 3, job.ScrapedCount)
	assert.Equal(t, 1, job.SourcesProcessed)
	assert.Contains(t, job.Message, "skipped")
	assert.Empty(t, p.quotas["https://example.com/s2"])
}

func TestRunSurvivesFailingSource(t *testing.T) {
	p := newFakeProvider()
	p.records["https://example.com/s1"] = 4
	p.failFor["https://example.com/bad"] = true
	p.records["https://example.com/s3"] = 4
	svc, store := newTestService(p)

	id, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/s1", "https://example.com/bad", "https://example.com/s3"},
		LeadCount: 20,
	})
	require.NoError(t, err)

	job := awaitTerminal(t, store, id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 8, job.ScrapedCount)
	assert.Equal(t, 3, job.SourcesProcessed)
	assert.Equal(t, 1, job.ErrorCount)
	// The failing source burned the full retry budget.
	assert.Len(t, p.quotas["https://example.com/bad"], 3)
	assert.GreaterOrEqual(t, job.AttemptCount, 5)
}

func TestRunEmptySourceCountsAsError(t *testing.T) {
	p := newFakeProvider()
	p.records["https://example.com/empty"] = 0
	svc, store := newTestService(p)

	id, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/empty"},
		LeadCount: 10,
	})
	require.NoError(t, err)

	job := awaitTerminal(t, store, id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 0, job.ScrapedCount)
	assert.Equal(t, 1, job.ErrorCount)
	// Empty is not a failure; no retries are spent on it.
	assert.Len(t, p.quotas["https://example.com/empty"], 1)
}

func TestRunInternalFaultFailsJob(t *testing.T) {
	svc, store := newTestService(faultyProvider{})

	id, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/s1"},
		LeadCount: 10,
	})
	require.NoError(t, err)

	job := awaitTerminal(t, store, id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Nil(t, job.Records)
	assert.Contains(t, job.Message, "internal fault")
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.FinishedAt.IsZero())
}

func TestRunInternalFaultReapsMonitor(t *testing.T) {
	var calls int64
	svc, store := newTestService(leakyProvider{logCalls: &calls})
	svc.logPoll = time.Millisecond

	id, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/s1"},
		LeadCount: 10,
	})
	require.NoError(t, err)

	job := awaitTerminal(t, store, id)
	require.Equal(t, StatusFailed, job.Status)

	// The monitor must stop polling once the job has failed.
	time.Sleep(20 * time.Millisecond)
	settled := atomic.LoadInt64(&calls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt64(&calls))
}

func TestRunTruncatesOverDeliveringProvider(t *testing.T) {
	svc, store := newTestService(&floodProvider{perSource: 500})

	id, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/s1", "https://example.com/s2"},
		LeadCount: 10,
	})
	require.NoError(t, err)

	job := awaitTerminal(t, store, id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Len(t, job.Records, 10)
	assert.Equal(t, 10, job.ScrapedCount)
	// A flooded first source satisfies the target on its own.
	assert.Equal(t, 1, job.SourcesProcessed)
}

func TestProgressNeverRegresses(t *testing.T) {
	p := newFakeProvider()
	for _, s := range []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"} {
		p.records[s] = 2
	}
	svc, store := newTestService(p)

	id, err := svc.Submit(SubmitRequest{
		Sources:   []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"},
		LeadCount: 100,
	})
	require.NoError(t, err)

	last := -1
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := store.Get(id)
		require.True(t, ok)
		require.GreaterOrEqual(t, job.Percent, last)
		last = job.Percent
		if job.Status.Terminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 100, last)
}

func TestSourceQuota(t *testing.T) {
	svc, _ := newTestService(newFakeProvider())

	// target/sources + overhead while plenty remains.
	assert.Equal(t, 150, svc.sourceQuota(100, 2, 0))
	// Clamped to what is still needed near the end.
	assert.Equal(t, 20, svc.sourceQuota(100, 2, 80))
}

func TestLoopPercentBand(t *testing.T) {
	assert.Equal(t, basePercent, loopPercent(0, 4, 0))
	assert.Equal(t, 95, loopPercent(4, 4, 0))
	assert.Less(t, loopPercent(2, 4, 50), 95)
	assert.GreaterOrEqual(t, loopPercent(2, 4, 50), loopPercent(2, 4, 0))
	// Within-source estimates can never push past the band.
	assert.LessOrEqual(t, loopPercent(3, 4, 100), 95)
	assert.Equal(t, 95, loopPercent(4, 4, 100))
}

func TestMMSS(t *testing.T) {
	assert.Equal(t, "00:00", mmss(0))
	assert.Equal(t, "01:05", mmss(65*time.Second))
	assert.Equal(t, "12:03", mmss(12*time.Minute+3*time.Second))
}
