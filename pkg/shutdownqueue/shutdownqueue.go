// Package shutdownqueue runs cleanup tasks in reverse order of registration.
//
// Resources are registered right after they are opened, so draining the
// queue closes them in the opposite order: the HTTP server goes before the
// consumers, the consumers before the log, the log before the store.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task is a shutdown function. It should honor ctx.
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	run  Task
}

// Queue is a LIFO list of shutdown tasks. The zero value is ready to use.
type Queue struct {
	mu     sync.Mutex
	tasks  []namedTask
	closed bool
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Add registers a named task. Nil tasks and tasks added once Shutdown has
// started are ignored.
func (q *Queue) Add(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.tasks = append(q.tasks, namedTask{name: name, run: t})
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Shutdown runs every task once, last registered first. A failing or
// panicking task does not stop the rest. If ctx ends mid-drain the remaining
// tasks are skipped. Errors are joined; later calls return nil.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	var errs []error
	for i := len(tasks) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown canceled before %s: %w", tasks[i].name, err))
			break
		}

		if err := runTask(ctx, tasks[i]); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func runTask(ctx context.Context, t namedTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("shutdown %s: panic: %v", t.name, r)
		}
	}()

	if err := t.run(ctx); err != nil {
		return fmt.Errorf("shutdown %s: %w", t.name, err)
	}
	return nil
}
