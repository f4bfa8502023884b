package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	history "paygo-cloud/internal/history/domain"
	historymetrics "paygo-cloud/internal/history/metrics"
	historynotify "paygo-cloud/internal/history/notify"
)

const (
	JobTypeRebuild = "rebuild"
	JobTypeAppend  = "append"

	JobStatusCreated   = "created"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

var (
	// ErrJobRunning is returned when a build is requested while one is active.
	ErrJobRunning = errors.New("history: build already running")
	// ErrJobNotFound is returned when no job matches the requested id.
	ErrJobNotFound = errors.New("history: job not found")
)

// Job is one table build run.
type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Units     int       `json:"units"`
	Failures  int       `json:"failures"`
	StartDay  time.Time `json:"startDay"`
	EndDay    time.Time `json:"endDay"`
	CreatedAt time.Time `json:"createdAt"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// JobStore persists build jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	UpdateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
}

// Runner executes table build jobs one at a time.
type Runner struct {
	rebuild  *RebuildService
	appender *AppendService
	jobs     JobStore
	notifier historynotify.Notifier
	metrics  *historymetrics.Metrics
	logger   *log.Logger
	clock    Clock
	mu       sync.Mutex
}

// NewRunner constructs a Runner. Notifier, metrics and logger may be nil.
func NewRunner(
	rebuild *RebuildService,
	appender *AppendService,
	jobs JobStore,
	notifier historynotify.Notifier,
	metrics *historymetrics.Metrics,
	logger *log.Logger,
	clock Clock,
) (*Runner, error) {
	if rebuild == nil {
		return nil, errors.New("history runner: nil rebuild service")
	}
	if appender == nil {
		return nil, errors.New("history runner: nil append service")
	}
	if jobs == nil {
		return nil, errors.New("history runner: nil job store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Runner{
		rebuild:  rebuild,
		appender: appender,
		jobs:     jobs,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		clock:    clock,
	}, nil
}

// RunNow executes a build job in the given mode. A second call while a
// build is active fails with ErrJobRunning.
func (r *Runner) RunNow(ctx context.Context, mode string) (*Job, error) {
	if r == nil {
		return nil, errors.New("history runner: nil")
	}
	if mode != JobTypeRebuild && mode != JobTypeAppend {
		return nil, fmt.Errorf("history: unknown job type %q", mode)
	}
	if !r.mu.TryLock() {
		return nil, ErrJobRunning
	}
	defer r.mu.Unlock()

	job := &Job{
		ID:        newJobID(),
		Type:      mode,
		Status:    JobStatusCreated,
		CreatedAt: r.clock.Now(),
	}
	if err := r.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	job.Status = JobStatusRunning
	job.StartedAt = r.clock.Now()
	_ = r.jobs.UpdateJob(ctx, job)
	if r.metrics != nil {
		r.metrics.JobsTotal.WithLabelValues(JobStatusRunning).Inc()
	}
	r.logf("history_job_start", job)

	units, failures, start, end, runErr := r.execute(ctx, mode)
	ended := r.clock.Now()
	if runErr != nil {
		job.Status = JobStatusFailed
		job.Error = runErr.Error()
		job.EndedAt = ended
		_ = r.jobs.UpdateJob(ctx, job)
		if r.metrics != nil {
			r.metrics.JobsTotal.WithLabelValues(JobStatusFailed).Inc()
		}
		r.logf("history_job_failed", job)
		r.notify(ctx, job)
		return job, runErr
	}

	job.Status = JobStatusSucceeded
	job.Units = units
	job.Failures = failures
	job.StartDay = start
	job.EndDay = end
	job.EndedAt = ended
	_ = r.jobs.UpdateJob(ctx, job)
	if r.metrics != nil {
		r.metrics.JobsTotal.WithLabelValues(JobStatusSucceeded).Inc()
		r.metrics.JobDuration.Observe(ended.Sub(job.StartedAt).Seconds())
	}
	r.logf("history_job_success", job)
	r.notify(ctx, job)
	return job, nil
}

func (r *Runner) execute(ctx context.Context, mode string) (int, int, time.Time, time.Time, error) {
	if mode == JobTypeRebuild {
		result, err := r.rebuild.Rebuild(ctx)
		if err != nil {
			return 0, 0, time.Time{}, time.Time{}, err
		}
		axis := result.Table.Axis()
		return result.Units, len(result.Failures), axis.Start(), axis.End(), nil
	}

	result, err := r.appender.Append(ctx)
	if errors.Is(err, history.ErrHistoryNotFound) {
		// Nothing stored yet, the first append becomes a full build.
		if r.logger != nil {
			r.logger.Printf("event=history_append_fallback_rebuild")
		}
		full, ferr := r.rebuild.Rebuild(ctx)
		if ferr != nil {
			return 0, 0, time.Time{}, time.Time{}, ferr
		}
		axis := full.Table.Axis()
		return full.Units, len(full.Failures), axis.Start(), axis.End(), nil
	}
	if err != nil {
		return 0, 0, time.Time{}, time.Time{}, err
	}
	return result.Extended + result.Fresh, len(result.Failures), result.Start, result.End, nil
}

func (r *Runner) notify(ctx context.Context, job *Job) {
	if r.notifier == nil {
		return
	}
	msg := historynotify.BuildMessage{
		JobID:    job.ID,
		Mode:     job.Type,
		Status:   job.Status,
		Units:    job.Units,
		Failures: job.Failures,
		Error:    job.Error,
	}
	if !job.StartDay.IsZero() {
		msg.StartDay = job.StartDay.Format(dateLayout)
		msg.EndDay = job.EndDay.Format(dateLayout)
	}
	if !job.EndedAt.IsZero() && !job.StartedAt.IsZero() {
		msg.Duration = job.EndedAt.Sub(job.StartedAt).Round(time.Millisecond).String()
	}
	if err := r.notifier.Notify(ctx, msg); err != nil && r.logger != nil {
		r.logger.Printf("event=history_notify_failed job_id=%s error=%s", job.ID, err)
	}
}

func (r *Runner) logf(event string, job *Job) {
	if r.logger == nil {
		return
	}
	r.logger.Printf("event=%s job_id=%s type=%s status=%s units=%d failures=%d error=%s",
		event, job.ID, job.Type, job.Status, job.Units, job.Failures, job.Error)
}

func newJobID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "job-" + hex.EncodeToString(buf)
}
