// Package outbox is the bounded-retry delivery queue for outbound
// notifications. A send that fails inline becomes a durable job; a periodic
// driver redelivers it until it succeeds or exhausts its attempts.
package outbox

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"homecrew/internal/config"
	"homecrew/internal/domain"
	"homecrew/internal/notify"
	"homecrew/internal/repo"
)

type Queue struct {
	Repo          repo.Repo
	Sender        notify.Sender
	ScanInterval  time.Duration
	RetryInterval time.Duration
	MaxAttempts   int
	Now           func() time.Time
	Logger        *log.Logger
}

func New(r repo.Repo, sender notify.Sender, cfg *config.Config) *Queue {
	return &Queue{
		Repo:          r,
		Sender:        sender,
		ScanInterval:  cfg.ScanInterval(),
		RetryInterval: cfg.RetryInterval(),
		MaxAttempts:   cfg.Retry.MaxAttempts,
		Now:           time.Now,
	}
}

func (q *Queue) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now()
}

func (q *Queue) logger() *log.Logger {
	if q.Logger != nil {
		return q.Logger
	}
	return log.Default()
}

// Notify attempts an immediate send and enqueues a retry job on failure.
// Send failures never propagate to the caller; the owning transition is
// already committed by the time this runs.
func (q *Queue) Notify(ctx context.Context, kind string, payload any) {
	payloadJSON, err := notify.Encode(payload)
	if err != nil {
		q.logger().Printf("outbox: drop unencodable %s notification: %v", kind, err)
		return
	}
	if err := notify.Dispatch(ctx, q.Sender, kind, payloadJSON); err != nil {
		q.logger().Printf("outbox: first send of %s failed, queued for retry: %v", kind, err)
		if err := q.Enqueue(ctx, kind, payloadJSON); err != nil {
			q.logger().Printf("outbox: enqueue %s failed: %v", kind, err)
		}
	}
}

// Enqueue records a failed send for redelivery. The attempt counter starts
// at zero; only driver retries count toward the maximum.
func (q *Queue) Enqueue(ctx context.Context, kind, payloadJSON string) error {
	now := q.now().UTC().Format(time.RFC3339)
	return q.Repo.InsertNotificationJob(ctx, domain.NotificationJob{
		ID:          uuid.New().String(),
		Kind:        kind,
		PayloadJSON: payloadJSON,
		CreatedAt:   now,
		LastAttempt: now,
		Attempts:    0,
	})
}

// RunOnce scans for due jobs and redelivers each once. A job's attempt
// counter and last-attempt timestamp are persisted before the send outcome
// is known. Jobs that fail their final attempt are dropped.
func (q *Queue) RunOnce(ctx context.Context) (delivered, dropped int, err error) {
	now := q.now().UTC()
	cutoff := now.Add(-q.RetryInterval).Format(time.RFC3339)
	jobs, err := q.Repo.DueNotificationJobs(ctx, cutoff, q.MaxAttempts)
	if err != nil {
		return 0, 0, err
	}
	for _, job := range jobs {
		attempts := job.Attempts + 1
		if err := q.Repo.TouchNotificationJob(ctx, job.ID, now.Format(time.RFC3339), attempts); err != nil {
			q.logger().Printf("outbox: touch job %s failed: %v", job.ID, err)
			continue
		}
		if err := notify.Dispatch(ctx, q.Sender, job.Kind, job.PayloadJSON); err != nil {
			if attempts >= q.MaxAttempts {
				// No dead-letter path: the job is silently dropped once its
				// retry budget is spent.
				if derr := q.Repo.DeleteNotificationJob(ctx, job.ID); derr == nil {
					dropped++
					q.logger().Printf("outbox: job %s (%s) dropped after %d attempts: %v", job.ID, job.Kind, attempts, err)
				}
			} else {
				q.logger().Printf("outbox: job %s (%s) attempt %d failed: %v", job.ID, job.Kind, attempts, err)
			}
			continue
		}
		if err := q.Repo.DeleteNotificationJob(ctx, job.ID); err != nil {
			q.logger().Printf("outbox: remove delivered job %s failed: %v", job.ID, err)
			continue
		}
		delivered++
	}
	return delivered, dropped, nil
}

// Run drives RunOnce on the scan interval until the context is cancelled.
func (q *Queue) Run(ctx context.Context) {
	interval := q.ScanInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, _, err := q.RunOnce(ctx); err != nil {
			q.logger().Printf("outbox: scan failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
