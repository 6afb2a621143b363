package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/avelar/docindex/internal/logger"
)

// TaskFunc is one periodic maintenance task.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
}

// Registry schedules periodic background tasks. It is an explicit
// instance owned by the application context, started once and stopped
// on shutdown; tests create their own registries.
type Registry struct {
	logger *logger.Logger

	mu      sync.Mutex
	tasks   []task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewRegistry creates an empty task registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{logger: log}
}

// Register adds a periodic task. Registration after Start is ignored.
// Parameters:
//   - name: task name for logging.
//   - interval: time between runs.
//   - fn: the task body.
func (r *Registry) Register(name string, interval time.Duration, fn TaskFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.logger.WithField("task", name).Warn("Task registered after start, ignoring")
		return
	}
	r.tasks = append(r.tasks, task{name: name, interval: interval, fn: fn})
}

// Start launches one goroutine per registered task. Each task runs on
// its own ticker; a run that fails is logged and retried at the next
// tick.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(r.logger.WithContext(context.Background()))
	r.cancel = cancel

	for _, t := range r.tasks {
		r.wg.Add(1)
		go func(t task) {
			defer r.wg.Done()
			r.run(ctx, t)
		}(t)
	}

	r.logger.WithField("tasks", len(r.tasks)).Info("Maintenance registry started")
}

func (r *Registry) run(ctx context.Context, t task) {
	log := r.logger.WithField("task", t.name)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := t.fn(ctx); err != nil {
				log.WithError(err).Warn("Maintenance task failed")
				continue
			}
			log.WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).
				Debug("Maintenance task completed")
		}
	}
}

// Stop cancels all tasks and waits for in-flight runs to finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.started || r.cancel == nil {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.logger.Info("Maintenance registry stopped")
}
