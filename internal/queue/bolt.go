package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang-bankrec-service/pkg/errors"

	bolt "go.etcd.io/bbolt"
)

var tasksBucket = []byte("continuations")

// BoltQueue persists tasks in a bbolt bucket keyed by task id, so pending
// continuations survive a restart.
type BoltQueue struct {
	db *bolt.DB
}

var _ Queue = (*BoltQueue)(nil)

// OpenBoltQueue opens or creates the queue database at path.
func OpenBoltQueue(path string) (*BoltQueue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "create queue directory", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "open queue", err).WithContext("path", path)
	}
	q, err := NewBoltQueue(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return q, nil
}

// NewBoltQueue uses an already open database.
func NewBoltQueue(db *bolt.DB) (*BoltQueue, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(tasksBucket); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", tasksBucket, err)
		}
		return nil
	})
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "create queue bucket", err)
	}
	return &BoltQueue{db: db}, nil
}

// DB exposes the database so other buckets can share the file.
func (q *BoltQueue) DB() *bolt.DB {
	return q.db
}

// Close closes the database.
func (q *BoltQueue) Close() error {
	return q.db.Close()
}

// ScheduleContinuation implements Queue
func (q *BoltQueue) ScheduleContinuation(ctx context.Context, runAt time.Time, reason string) (*Task, error) {
	task := newTask(runAt, reason)
	data, err := json.Marshal(task)
	if err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "encode task", err)
	}

	err = q.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tasksBucket).Put([]byte(task.ID), data)
	})
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "schedule continuation", err)
	}
	return task, nil
}

// Due implements Queue
func (q *BoltQueue) Due(ctx context.Context, now time.Time) ([]*Task, error) {
	return q.list(func(t *Task) bool { return !t.RunAt.After(now) })
}

// Pending implements Queue
func (q *BoltQueue) Pending(ctx context.Context) ([]*Task, error) {
	return q.list(nil)
}

// Complete implements Queue
func (q *BoltQueue) Complete(ctx context.Context, id string) error {
	err := q.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tasksBucket).Delete([]byte(id))
	})
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "complete continuation", err)
	}
	return nil
}

func (q *BoltQueue) list(keep func(*Task) bool) ([]*Task, error) {
	var out []*Task
	err := q.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tasksBucket).ForEach(func(k, v []byte) error {
			var t Task
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("task %s: %w", k, err)
			}
			if keep == nil || keep(&t) {
				out = append(out, &t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "list continuations", err)
	}
	sortTasks(out)
	return out, nil
}
