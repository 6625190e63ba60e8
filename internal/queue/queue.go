// Package queue holds continuation tasks for the auto-reconcile scheduler.
// A task asks for another scheduler pass at or after a given time.
package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is one scheduled continuation.
type Task struct {
	ID        string    `json:"id"`
	RunAt     time.Time `json:"run_at"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Queue stores continuation tasks.
type Queue interface {
	// ScheduleContinuation asks for a scheduler pass at or after runAt.
	ScheduleContinuation(ctx context.Context, runAt time.Time, reason string) (*Task, error)
	// Due returns the tasks whose time has come, oldest first.
	Due(ctx context.Context, now time.Time) ([]*Task, error)
	// Complete removes a task. Unknown ids are ignored.
	Complete(ctx context.Context, id string) error
	// Pending returns every task, oldest first.
	Pending(ctx context.Context) ([]*Task, error)
}

func newTask(runAt time.Time, reason string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		RunAt:     runAt,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
}

func sortTasks(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].RunAt.Equal(tasks[j].RunAt) {
			return tasks[i].RunAt.Before(tasks[j].RunAt)
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// MemoryQueue keeps tasks in a map.
type MemoryQueue struct {
	mutex sync.Mutex
	tasks map[string]*Task
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{tasks: make(map[string]*Task)}
}

// ScheduleContinuation implements Queue
func (q *MemoryQueue) ScheduleContinuation(ctx context.Context, runAt time.Time, reason string) (*Task, error) {
	task := newTask(runAt, reason)

	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.tasks[task.ID] = task

	c := *task
	return &c, nil
}

// Due implements Queue
func (q *MemoryQueue) Due(ctx context.Context, now time.Time) ([]*Task, error) {
	return q.collect(func(t *Task) bool { return !t.RunAt.After(now) }), nil
}

// Pending implements Queue
func (q *MemoryQueue) Pending(ctx context.Context) ([]*Task, error) {
	return q.collect(nil), nil
}

// Complete implements Queue
func (q *MemoryQueue) Complete(ctx context.Context, id string) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	delete(q.tasks, id)
	return nil
}

func (q *MemoryQueue) collect(keep func(*Task) bool) []*Task {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	var out []*Task
	for _, t := range q.tasks {
		if keep == nil || keep(t) {
			c := *t
			out = append(out, &c)
		}
	}
	sortTasks(out)
	return out
}
