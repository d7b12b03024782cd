package collector

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Callback is a single periodic backend callback. Its return value is
// never surfaced to the caller of Run; a non-nil error is only logged
// (spec.md §4.11 step 2: "Invoke the callback; ignore its return value
// except for logging").
type Callback func(ctx context.Context) error

// Task is one entry in the scheduler's priority queue: a callback, the
// period it repeats on, and the time it next fires.
type Task struct {
	Name     string
	Callback Callback
	Interval time.Duration

	nextFire time.Time
	index    int
}

// taskHeap is a container/heap.Interface ordering Tasks by nextFire,
// earliest first (spec.md §4.11's "pop the earliest task").
type taskHeap []*Task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].nextFire.Before(h[j].nextFire) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *taskHeap) Push(x any)         { t := x.(*Task); t.index = len(*h); *h = append(*h, t) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler runs Task callbacks on their configured interval from a
// single goroutine, correcting for drift and skipping catch-up bursts
// when a callback overruns its own interval (spec.md §4.11). It
// generalizes a single-ticker health-monitor loop to a variable number
// of tasks with independent intervals, which a fixed time.Ticker cannot
// express.
type Scheduler struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	started bool
	pending []*Task // tasks added before Run starts

	addCh chan *Task
}

// New returns a Scheduler. A nil logger is replaced with a no-op logger.
func New(log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{log: log, addCh: make(chan *Task, 256)}
}

// Add registers task, scheduling its first run immediately (the next
// time Run's loop is free). It is safe to call before Run starts and
// concurrently with a running Scheduler. A Task with a zero Interval
// runs exactly once.
func (s *Scheduler) Add(task *Task) {
	task.nextFire = time.Now()

	s.mu.Lock()
	started := s.started
	if !started {
		s.pending = append(s.pending, task)
	}
	s.mu.Unlock()

	if started {
		s.addCh <- task
	}
}

// Run executes the scheduler loop until ctx is canceled, returning
// ctx.Err(). The sleep between tasks is interruptible by ctx
// cancellation or by a concurrent Add (spec.md §5's "collector's sleep
// must be interruptible").
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	h := make(taskHeap, 0, len(s.pending))
	for _, t := range s.pending {
		h = append(h, t)
	}
	s.pending = nil
	s.started = true
	s.mu.Unlock()
	heap.Init(&h)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if h.Len() == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case t := <-s.addCh:
				heap.Push(&h, t)
				continue
			}
		}

		next := h[0]
		wait := time.Until(next.nextFire)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case t := <-s.addCh:
				timer.Stop()
				heap.Push(&h, t)
				continue
			case <-timer.C:
			}
		}

		task := heap.Pop(&h).(*Task)
		s.runTask(ctx, task)

		if task.Interval <= 0 {
			// A nil or zero interval disables further scheduling for
			// this task (spec.md §4.11).
			continue
		}

		now := time.Now()
		task.nextFire = task.nextFire.Add(task.Interval)
		if now.After(task.nextFire) {
			s.log.Warnw("collector task overran its interval, skipping catch-up",
				"task", task.Name, "interval", task.Interval)
			task.nextFire = now
		}
		heap.Push(&h, task)
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *Task) {
	if err := task.Callback(ctx); err != nil {
		s.log.Warnw("collector task returned an error", "task", task.Name, "error", err)
	}
}
