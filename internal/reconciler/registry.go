package reconciler

import (
	"sync"
	"time"

	"golang-bankrec-service/internal/session"
	"golang-bankrec-service/pkg/errors"

	"github.com/google/uuid"
)

type entry struct {
	id       string
	lineID   int64
	session  *session.Session
	openedAt time.Time
}

// registry keeps the open sessions. Operations on sessions of the same
// statement line are serialized by one mutex per line.
type registry struct {
	mutex    sync.Mutex
	sessions map[string]*entry
	locks    map[int64]*sync.Mutex
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[string]*entry),
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (r *registry) add(s *session.Session, now time.Time) *entry {
	e := &entry{
		id:       uuid.NewString(),
		lineID:   s.StatementLine().ID,
		session:  s,
		openedAt: now,
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sessions[e.id] = e
	r.lineLock(e.lineID)
	return e
}

// acquire returns the session locked for exclusive use. The caller must
// call the returned release function.
func (r *registry) acquire(id string) (*entry, func(), error) {
	r.mutex.Lock()
	e, ok := r.sessions[id]
	var lock *sync.Mutex
	if ok {
		lock = r.lineLock(e.lineID)
	}
	r.mutex.Unlock()
	if !ok {
		return nil, nil, errors.NotFoundError(errors.CodeSessionNotFound, "session", id)
	}

	lock.Lock()
	if !r.has(id) {
		lock.Unlock()
		return nil, nil, errors.NotFoundError(errors.CodeSessionNotFound, "session", id)
	}
	return e, lock.Unlock, nil
}

func (r *registry) has(id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// lockLine serializes work on a statement line without an open session.
func (r *registry) lockLine(lineID int64) func() {
	r.mutex.Lock()
	lock := r.lineLock(lineID)
	r.mutex.Unlock()

	lock.Lock()
	return lock.Unlock
}

// lineLock must be called with r.mutex held. Locks are never removed.
func (r *registry) lineLock(lineID int64) *sync.Mutex {
	lock, ok := r.locks[lineID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[lineID] = lock
	}
	return lock
}

func (r *registry) remove(id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// expired returns the ids of sessions opened before cutoff.
func (r *registry) expired(cutoff time.Time) []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var ids []string
	for id, e := range r.sessions {
		if e.openedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *registry) len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.sessions)
}
