package courier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// TaskRegistry tracks in-flight network tasks by key and raises one
// aggregate signal when the set drains. A batch is the span between a
// non-empty transition and the next empty transition; the all-complete
// callback fires exactly once per batch, and a later registration
// starts a fresh batch that may fire it again.
type TaskRegistry struct {
	logger *slog.Logger

	mu            sync.Mutex
	tasks         map[uuid.UUID]struct{}
	onAllComplete func()
}

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry(logger *slog.Logger) *TaskRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRegistry{
		logger: logger,
		tasks:  make(map[uuid.UUID]struct{}),
	}
}

// OnAllComplete registers the aggregate callback. The callback runs on
// the goroutine of whichever task drains the batch, so it may execute
// concurrently with new registrations; only tasks registered before the
// empty-check are ordered before it.
func (r *TaskRegistry) OnAllComplete(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAllComplete = fn
}

// Register assigns the task a fresh key and runs it on its own
// goroutine. The task counts as completed when run returns, success or
// failure alike.
func (r *TaskRegistry) Register(ctx context.Context, run func(ctx context.Context)) uuid.UUID {
	id := uuid.New()

	r.mu.Lock()
	r.tasks[id] = struct{}{}
	n := len(r.tasks)
	r.mu.Unlock()

	r.logger.Debug("Task registered", "taskId", id, "inFlight", n)

	go func() {
		run(ctx)
		r.complete(id)
	}()
	return id
}

// Len returns the number of in-flight tasks.
func (r *TaskRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *TaskRegistry) complete(id uuid.UUID) {
	r.mu.Lock()
	delete(r.tasks, id)
	drained := len(r.tasks) == 0
	fn := r.onAllComplete
	r.mu.Unlock()

	r.logger.Debug("Task completed", "taskId", id)

	if drained && fn != nil {
		r.logger.Debug("All tasks complete")
		fn()
	}
}
