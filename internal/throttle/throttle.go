// Package throttle serializes outbound provider calls through a bounded
// priority queue under multi-window rate limits.
package throttle

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trustlens/trustlens/internal/config"
	"github.com/trustlens/trustlens/internal/provider"
)

// Priority orders queued tasks; higher runs first. Ties are FIFO.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// Task is a zero-argument unit of work, typically a single provider call.
type Task func(ctx context.Context) (interface{}, error)

// ErrQueueFull is returned by Submit when the queue is at capacity.
var ErrQueueFull = errors.New("throttle: queue full")

// ErrClosed is returned for tasks pending when the throttler shuts down.
var ErrClosed = errors.New("throttle: closed")

// maxTaskAge bounds how old a task may be and still qualify for a retry.
const maxTaskAge = 5 * time.Minute

type taskResult struct {
	value interface{}
	err   error
}

type queuedTask struct {
	task     Task
	ctx      context.Context
	priority Priority
	seq      uint64 // arrival order, for FIFO within a priority band
	enqueued time.Time
	retried  bool
	done     chan taskResult
}

type taskQueue []*queuedTask

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x interface{}) { *q = append(*q, x.(*queuedTask)) }

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// window is one rolling rate limit.
type window struct {
	span  time.Duration
	limit int
}

// Status is a point-in-time snapshot of throttler state.
type Status struct {
	QueueLength   int     `json:"queue_length"`
	CallsLastMin  int     `json:"calls_last_minute"`
	CallsLastHour int     `json:"calls_last_hour"`
	CallsLastDay  int     `json:"calls_last_day"`
	Successes     int64   `json:"successes"`
	Failures      int64   `json:"failures"`
	Retries       int64   `json:"retries"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
}

// Throttler gates every outbound provider call. A single worker drains the
// priority queue, admitting at most one underlying call at a time and never
// exceeding any configured window.
type Throttler struct {
	mu      sync.Mutex
	queue   taskQueue
	seq     uint64
	history []time.Time // timestamps of recorded attempts, oldest first
	windows []window
	cap     int
	closed  bool

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup

	successes    int64
	failures     int64
	retries      int64
	totalLatency time.Duration
	completed    int64

	// sleep is swapped out in tests
	sleep func(d time.Duration, cancel <-chan struct{})
}

// New creates and starts a throttler with the configured limits.
func New(cfg *config.ThrottleConfig) *Throttler {
	t := &Throttler{
		windows: []window{
			{span: time.Second, limit: cfg.BurstLimit},
			{span: time.Minute, limit: cfg.RequestsPerMinute},
			{span: time.Hour, limit: cfg.RequestsPerHour},
			{span: 24 * time.Hour, limit: cfg.RequestsPerDay},
		},
		cap:   cfg.QueueCapacity,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		sleep: defaultSleep,
	}

	t.wg.Add(1)
	go t.run()
	return t
}

func defaultSleep(d time.Duration, cancel <-chan struct{}) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-cancel:
	}
}

// Submit enqueues a task at the given priority and blocks until it completes,
// returning the task's result or failure. Submissions beyond queue capacity
// fail immediately with ErrQueueFull.
func (t *Throttler) Submit(ctx context.Context, priority Priority, task Task) (interface{}, error) {
	qt := &queuedTask{
		task:     task,
		ctx:      ctx,
		priority: priority,
		enqueued: time.Now(),
		done:     make(chan taskResult, 1),
	}

	if err := t.enqueue(qt); err != nil {
		return nil, err
	}

	select {
	case res := <-qt.done:
		return res.value, res.err
	case <-ctx.Done():
		// The task may still run; the buffered channel lets the worker
		// complete it without blocking.
		return nil, ctx.Err()
	}
}

func (t *Throttler) enqueue(qt *queuedTask) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if len(t.queue) >= t.cap {
		t.mu.Unlock()
		return ErrQueueFull
	}
	t.seq++
	qt.seq = t.seq
	heap.Push(&t.queue, qt)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the worker and fails all pending tasks with ErrClosed.
func (t *Throttler) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	pending := t.queue
	t.queue = nil
	t.mu.Unlock()

	close(t.stop)
	t.wg.Wait()

	for _, qt := range pending {
		qt.done <- taskResult{err: ErrClosed}
	}
}

func (t *Throttler) run() {
	defer t.wg.Done()

	for {
		qt := t.next()
		if qt == nil {
			select {
			case <-t.wake:
				continue
			case <-t.stop:
				return
			}
		}

		if !t.admit() {
			// Put it back at the head of its band and wait out the window.
			t.requeueFront(qt)
			continue
		}

		t.execute(qt)

		select {
		case <-t.stop:
			return
		default:
		}
	}
}

func (t *Throttler) next() *queuedTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return nil
	}
	return heap.Pop(&t.queue).(*queuedTask)
}

func (t *Throttler) requeueFront(qt *queuedTask) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		qt.done <- taskResult{err: ErrClosed}
		return
	}
	heap.Push(&t.queue, qt)
	t.mu.Unlock()
}

// admit checks every window against the recorded timestamps. When a window is
// full it sleeps until the oldest timestamp in the most restrictive window
// rotates out, then reports false so the worker re-checks.
func (t *Throttler) admit() bool {
	now := time.Now()

	t.mu.Lock()
	t.pruneHistory(now)

	var wait time.Duration
	for _, w := range t.windows {
		if w.limit <= 0 {
			continue
		}
		cutoff := now.Add(-w.span)
		count := 0
		var oldest time.Time
		for _, ts := range t.history {
			if ts.After(cutoff) {
				if count == 0 {
					oldest = ts
				}
				count++
			}
		}
		if count >= w.limit {
			if d := oldest.Add(w.span).Sub(now); d > wait {
				wait = d
			}
		}
	}

	if wait > 0 {
		t.mu.Unlock()
		log.Debug().Dur("wait", wait).Msg("Rate window full, waiting")
		t.sleep(wait, t.stop)
		return false
	}

	// Record the attempt inside the lock so no two admissions race a window.
	t.history = append(t.history, now)
	t.mu.Unlock()
	return true
}

// pruneHistory drops timestamps older than the widest window. Callers hold mu.
func (t *Throttler) pruneHistory(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	i := 0
	for i < len(t.history) && !t.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.history = append(t.history[:0], t.history[i:]...)
	}
}

func (t *Throttler) execute(qt *queuedTask) {
	if err := qt.ctx.Err(); err != nil {
		qt.done <- taskResult{err: err}
		return
	}

	start := time.Now()
	value, err := qt.task(qt.ctx)
	latency := time.Since(start)

	t.mu.Lock()
	t.completed++
	t.totalLatency += latency
	t.mu.Unlock()

	if err == nil {
		t.mu.Lock()
		t.successes++
		t.mu.Unlock()
		qt.done <- taskResult{value: value}
		return
	}

	if provider.IsRetryable(err) && !qt.retried && time.Since(qt.enqueued) < maxTaskAge {
		qt.retried = true
		qt.priority = PriorityLow
		t.mu.Lock()
		t.retries++
		t.mu.Unlock()
		log.Warn().Err(err).Msg("Retryable task failure, re-queuing at low priority")
		if reqErr := t.enqueue(qt); reqErr != nil {
			qt.done <- taskResult{err: err}
		}
		return
	}

	t.mu.Lock()
	t.failures++
	t.mu.Unlock()
	qt.done <- taskResult{err: err}
}

// Status returns a snapshot of queue depth, window usage and call metrics.
func (t *Throttler) Status() Status {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	countSince := func(span time.Duration) int {
		cutoff := now.Add(-span)
		n := 0
		for _, ts := range t.history {
			if ts.After(cutoff) {
				n++
			}
		}
		return n
	}

	var avgMs float64
	if t.completed > 0 {
		avgMs = float64(t.totalLatency.Milliseconds()) / float64(t.completed)
	}

	return Status{
		QueueLength:   len(t.queue),
		CallsLastMin:  countSince(time.Minute),
		CallsLastHour: countSince(time.Hour),
		CallsLastDay:  countSince(24 * time.Hour),
		Successes:     t.successes,
		Failures:      t.failures,
		Retries:       t.retries,
		AvgLatencyMs:  avgMs,
	}
}
