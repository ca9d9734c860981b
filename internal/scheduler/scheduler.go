package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Task is a unit of periodic work. Run receives the scheduler context and
// should return promptly once it is cancelled.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler runs a fixed set of tasks, each on its own ticker.
type Scheduler struct {
	tasks  []Task
	active int32
}

func New(tasks ...Task) (*Scheduler, error) {
	for _, task := range tasks {
		if task.Interval <= 0 {
			return nil, errors.Errorf("task %s: interval must be positive, got %s", task.Name, task.Interval)
		}
		if task.Run == nil {
			return nil, errors.Errorf("task %s: nothing to run", task.Name)
		}
	}
	return &Scheduler{tasks: tasks}, nil
}

// Handle controls one started instance of the scheduler.
type Handle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Start launches every task. The first run of a task happens one interval
// after Start, never immediately.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel}
	for _, task := range s.tasks {
		h.wg.Add(1)
		atomic.AddInt32(&s.active, 1)
		go s.loop(ctx, h, task)
	}
	logrus.Debug("*** Scheduler started, tasks: ", len(s.tasks))
	return h
}

// ActiveTasks counts task loops still running, across all handles.
func (s *Scheduler) ActiveTasks() int {
	return int(atomic.LoadInt32(&s.active))
}

func (s *Scheduler) loop(ctx context.Context, h *Handle, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer func() {
		ticker.Stop()
		atomic.AddInt32(&s.active, -1)
		h.wg.Done()
		logrus.Debug("*** Task stopped: ", task.Name)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a tick may be pending while cancel is in progress
			if ctx.Err() != nil {
				return
			}
			task.Run(ctx)
		}
	}
}

// Cancel stops every task of this handle and waits for them to return.
// Calling it more than once is harmless.
func (h *Handle) Cancel() {
	h.once.Do(h.cancel)
	h.wg.Wait()
}
