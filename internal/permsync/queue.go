// internal/permsync/queue.go
package permsync

import (
	"context"

	"github.com/pulsar-base/pulsar-backend/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// TaskQueue serializes sync work onto one goroutine. Webhook triggers and the
// periodic ticker both enqueue here, so at most one sync runs at a time and a
// burst of triggers collapses to the queue capacity.
type TaskQueue struct {
	tasks chan func(context.Context)
}

func NewTaskQueue(capacity int) *TaskQueue {
	return &TaskQueue{tasks: make(chan func(context.Context), capacity)}
}

// Enqueue submits a task without blocking. When the queue is full the task is
// dropped; a pending sync already covers whatever the dropped trigger asked for.
func (q *TaskQueue) Enqueue(task func(context.Context)) bool {
	select {
	case q.tasks <- task:
		return true
	default:
		customLog.Warn("PermSync: Task queue full, dropping trigger")
		return false
	}
}

// Run consumes tasks until the context is cancelled.
func (q *TaskQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			customLog.Println("PermSync: Task queue stopped.")
			return
		case task := <-q.tasks:
			task(ctx)
		}
	}
}
