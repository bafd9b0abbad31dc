package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

var (
	// ErrLockTimeout is returned when a lock cannot be acquired in time.
	ErrLockTimeout = errors.New("session: lock acquisition timeout")

	// ErrLockHeld names the lock-already-held condition. TryAcquire
	// reports that case through its ok result and does not return it.
	ErrLockHeld = errors.New("session: lock held by another writer")
)

// DefaultLockTimeout bounds how long a writer waits for a session lock.
const DefaultLockTimeout = 5 * time.Second

// sessionLock is one session's write-lock state. Waiters block on the
// condition variable rather than polling.
type sessionLock struct {
	mu       sync.Mutex
	cond     *sync.Cond
	locked   bool
	holder   string
	acquired time.Time
}

// LockManager hands out per-session write locks so only one writer
// mutates a session at a time. Safe for concurrent use; idle lock
// entries are swept in the background so the map doesn't grow with
// every session ever seen.
type LockManager struct {
	mu         sync.RWMutex
	locks      map[string]*sessionLock
	defaultTTL time.Duration
}

// NewLockManager creates a lock manager; defaultTTL bounds Acquire
// waits when the caller passes no timeout.
func NewLockManager(defaultTTL time.Duration) *LockManager {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	m := &LockManager{
		locks:      map[string]*sessionLock{},
		defaultTTL: defaultTTL,
	}
	go m.sweepLoop()
	return m
}

func (m *LockManager) lockFor(sessionID string) *sessionLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		lock.cond = sync.NewCond(&lock.mu)
		m.locks[sessionID] = lock
	}
	return lock
}

// Acquire blocks until the session lock is free, the timeout passes, or
// ctx is cancelled. The returned release function must be called exactly
// once when the write completes.
func (m *LockManager) Acquire(ctx context.Context, sessionID, holder string, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		timeout = m.defaultTTL
	}
	lock := m.lockFor(sessionID)
	deadline := time.Now().Add(timeout)

	lock.mu.Lock()
	defer lock.mu.Unlock()
	for lock.locked {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrLockTimeout
		}

		// Wake this waiter at the deadline or on cancellation so the checks
		// above run again; a release wakes it through Broadcast.
		wake := func() { lock.mu.Lock(); lock.cond.Broadcast(); lock.mu.Unlock() }
		timer, stop := time.AfterFunc(remaining, wake), context.AfterFunc(ctx, wake)
		lock.cond.Wait()
		timer.Stop()
		stop()
	}

	lock.take(holder)
	return lock.release, nil
}

// TryAcquire takes the lock without waiting; ok is false when another
// writer holds it.
func (m *LockManager) TryAcquire(sessionID, holder string) (release func(), ok bool) {
	lock := m.lockFor(sessionID)
	lock.mu.Lock()
	defer lock.mu.Unlock()
	if lock.locked {
		return nil, false
	}
	lock.take(holder)
	return lock.release, true
}

// IsLocked reports whether the session currently has a writer.
func (m *LockManager) IsLocked(sessionID string) bool {
	m.mu.RLock()
	lock, ok := m.locks[sessionID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	lock.mu.Lock()
	defer lock.mu.Unlock()
	return lock.locked
}

// LockInfo reports the current holder and when it acquired the lock.
func (m *LockManager) LockInfo(sessionID string) (holder string, since time.Time, locked bool) {
	m.mu.RLock()
	lock, ok := m.locks[sessionID]
	m.mu.RUnlock()
	if !ok {
		return "", time.Time{}, false
	}
	lock.mu.Lock()
	defer lock.mu.Unlock()
	return lock.holder, lock.acquired, lock.locked
}

// take marks the lock held. Caller must hold lock.mu.
func (l *sessionLock) take(holder string) {
	l.locked = true
	l.holder = holder
	l.acquired = time.Now()
}

// release frees the lock and wakes every waiter.
func (l *sessionLock) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = false
	l.holder = ""
	l.cond.Broadcast()
}

func (m *LockManager) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		m.sweep(time.Now().Add(-10 * time.Minute))
	}
}

// sweep drops unlocked entries idle since before cutoff.
func (m *LockManager) sweep(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, lock := range m.locks {
		lock.mu.Lock()
		if !lock.locked && lock.acquired.Before(cutoff) {
			delete(m.locks, id)
		}
		lock.mu.Unlock()
	}
}

// LockingStore wraps a Store so every write acquires the session's
// write lock first. Reads pass through unlocked.
type LockingStore struct {
	Store
	locks  *LockManager
	holder string
}

// NewLockingStore wraps store; holder identifies this writer in
// LockInfo output (e.g. "agent-worker-1").
func NewLockingStore(store Store, locks *LockManager, holder string) *LockingStore {
	return &LockingStore{Store: store, locks: locks, holder: holder}
}

func (s *LockingStore) withLock(ctx context.Context, sessionID string, fn func() error) error {
	release, err := s.locks.Acquire(ctx, sessionID, s.holder, 0)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (s *LockingStore) Create(ctx context.Context, session *models.Session) error {
	return s.withLock(ctx, session.ID, func() error { return s.Store.Create(ctx, session) })
}

func (s *LockingStore) Update(ctx context.Context, session *models.Session) error {
	return s.withLock(ctx, session.ID, func() error { return s.Store.Update(ctx, session) })
}

func (s *LockingStore) Delete(ctx context.Context, id string) error {
	return s.withLock(ctx, id, func() error { return s.Store.Delete(ctx, id) })
}

func (s *LockingStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	return s.withLock(ctx, sessionID, func() error { return s.Store.AppendMessage(ctx, sessionID, msg) })
}

// WithLock runs fn while holding the session's write lock, for compound
// operations that need to be atomic against other writers.
func (s *LockingStore) WithLock(ctx context.Context, sessionID string, fn func(Store) error) error {
	return s.withLock(ctx, sessionID, func() error { return fn(s.Store) })
}
