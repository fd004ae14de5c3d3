// Package dupqueue runs duplicate-content checks in the background, one job
// at a time, and notifies subscribers of outcomes.
package dupqueue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/trustlens/trustlens/internal/config"
	"github.com/trustlens/trustlens/internal/models"
)

// CheckFunc performs the duplicate check for one subject.
type CheckFunc func(ctx context.Context, subject models.AnalysisSubject) (*models.DuplicationVerdict, error)

// Subscriber receives every notification, synchronously, in emission order.
type Subscriber func(models.Notification)

// Queue is a single-consumer background job queue. Exactly one job is ever
// processing at a time; selection is by priority, then creation time.
type Queue struct {
	mu            sync.Mutex
	jobs          map[string]*models.DuplicateJob
	notifications []models.Notification // bounded ring, newest last
	subscribers   []Subscriber

	check     CheckFunc
	tick      time.Duration
	retention time.Duration
	maxNotifs int

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	wg     sync.WaitGroup
}

// New creates and starts a duplicate job queue.
func New(check CheckFunc, cfg *config.QueueConfig) *Queue {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 5 * time.Second
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	maxNotifs := cfg.MaxNotifications
	if maxNotifs <= 0 {
		maxNotifs = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:      make(map[string]*models.DuplicateJob),
		check:     check,
		tick:      tick,
		retention: retention,
		maxNotifs: maxNotifs,
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
	}

	q.wg.Add(1)
	go q.run()
	return q
}

// Close stops the background loop. A job mid-flight finishes first.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

// Enqueue adds a pending duplicate-check job for the subject.
func (q *Queue) Enqueue(subject models.AnalysisSubject, priority models.JobPriority) *models.DuplicateJob {
	if priority == "" {
		priority = models.JobPriorityMedium
	}

	job := &models.DuplicateJob{
		ID:        uuid.New().String(),
		Subject:   subject,
		Priority:  priority,
		Status:    models.JobPending,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	log.Debug().Str("job", job.ID).Str("priority", string(priority)).Msg("Duplicate check queued")
	cp := *job
	return &cp
}

// Job returns a snapshot of the job with the given id.
func (q *Queue) Job(id string) (*models.DuplicateJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// Jobs returns snapshots of all known jobs, newest first.
func (q *Queue) Jobs() []models.DuplicateJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.DuplicateJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Notifications returns the retained notifications, newest first.
func (q *Queue) Notifications() []models.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Notification, len(q.notifications))
	for i, n := range q.notifications {
		out[len(out)-1-i] = n
	}
	return out
}

// MarkRead flags a notification as read.
func (q *Queue) MarkRead(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.notifications {
		if q.notifications[i].ID == id {
			q.notifications[i].Read = true
			return true
		}
	}
	return false
}

// Subscribe registers a subscriber for future notifications.
func (q *Queue) Subscribe(fn Subscriber) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribers = append(q.subscribers, fn)
}

func (q *Queue) run() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.tick)
	defer ticker.Stop()

	for {
		// Drain everything ready before going back to sleep.
		for q.processNext() {
			if q.ctx.Err() != nil {
				return
			}
		}

		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.purgeTerminal()
		case <-q.wake:
		}
	}
}

// processNext claims and runs the highest-priority pending job. Returns false
// when no job was pending.
func (q *Queue) processNext() bool {
	job := q.claimNext()
	if job == nil {
		return false
	}

	log.Info().Str("job", job.ID).Str("subject", job.Subject.ID).Msg("Processing duplicate check")

	verdict, err := q.check(q.ctx, job.Subject)

	q.mu.Lock()
	stored, ok := q.jobs[job.ID]
	if !ok {
		q.mu.Unlock()
		return true
	}
	stored.FinishedAt = time.Now()
	if err != nil {
		stored.Status = models.JobFailed
		stored.Error = err.Error()
	} else {
		stored.Status = models.JobCompleted
		stored.Result = verdict
	}
	snapshot := *stored
	q.mu.Unlock()

	q.emit(snapshot)
	return true
}

// claimNext transitions the selected job to processing under the lock, so no
// second consumer could ever claim it.
func (q *Queue) claimNext() *models.DuplicateJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best *models.DuplicateJob
	for _, job := range q.jobs {
		if job.Status != models.JobPending {
			continue
		}
		if best == nil {
			best = job
			continue
		}
		if job.Priority.Rank() > best.Priority.Rank() ||
			(job.Priority.Rank() == best.Priority.Rank() && job.CreatedAt.Before(best.CreatedAt)) {
			best = job
		}
	}
	if best == nil {
		return nil
	}

	best.Status = models.JobProcessing
	cp := *best
	return &cp
}

// emit builds the notification for a terminal job and fans it out.
func (q *Queue) emit(job models.DuplicateJob) {
	notif := models.Notification{
		ID:        uuid.New().String(),
		SubjectID: job.Subject.ID,
		CreatedAt: time.Now(),
	}

	switch {
	case job.Status == models.JobFailed:
		notif.Type = models.NotifyCheckFailed
		notif.Severity = models.SeverityMedium
		notif.Message = fmt.Sprintf("Duplicate check failed: %s", job.Error)
	case job.Result != nil && job.Result.IsDuplicate && job.Result.Confidence > 0.9:
		notif.Type = models.NotifyDuplicateDetected
		notif.Severity = models.SeverityHigh
		notif.Message = fmt.Sprintf("High-confidence duplicate detected (%.0f%%)", job.Result.Confidence*100)
	case job.Result != nil && job.Result.IsDuplicate:
		notif.Type = models.NotifyDuplicateDetected
		notif.Severity = models.SeverityMedium
		notif.Message = fmt.Sprintf("Possible duplicate detected (%.0f%%)", job.Result.Confidence*100)
	default:
		notif.Type = models.NotifyCheckCompleted
		notif.Severity = models.SeverityLow
		notif.Message = "Duplicate check completed, no duplicates found"
	}

	q.mu.Lock()
	q.notifications = append(q.notifications, notif)
	if len(q.notifications) > q.maxNotifs {
		q.notifications = q.notifications[len(q.notifications)-q.maxNotifs:]
	}
	subs := make([]Subscriber, len(q.subscribers))
	copy(subs, q.subscribers)
	q.mu.Unlock()

	for _, fn := range subs {
		fn(notif)
	}

	log.Info().
		Str("job", job.ID).
		Str("type", string(notif.Type)).
		Str("severity", string(notif.Severity)).
		Msg("Duplicate check finished")
}

// purgeTerminal drops jobs terminal for longer than the retention window.
func (q *Queue) purgeTerminal() {
	cutoff := time.Now().Add(-q.retention)

	q.mu.Lock()
	defer q.mu.Unlock()
	for id, job := range q.jobs {
		if job.Status.Terminal() && !job.FinishedAt.IsZero() && job.FinishedAt.Before(cutoff) {
			delete(q.jobs, id)
		}
	}
}
