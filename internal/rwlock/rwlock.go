package rwlock

import "sync"

// Mutex is a reader/writer lock. The zero value is an unlocked Mutex.
//
// A Mutex must not be copied after first use.
type Mutex struct {
	mu      sync.Mutex
	cond    sync.Cond
	readers int
	writer  bool
}

func (m *Mutex) init() {
	if m.cond.L == nil {
		m.cond.L = &m.mu
	}
}

// RLock locks m for reading, waiting while a writer holds it.
func (m *Mutex) RLock() {
	m.mu.Lock()
	m.init()
	for m.writer {
		m.cond.Wait()
	}
	m.readers++
	m.mu.Unlock()
}

// RUnlock undoes a single RLock call.
func (m *Mutex) RUnlock() {
	m.mu.Lock()
	if m.readers <= 0 {
		m.mu.Unlock()
		panic("rwlock: RUnlock of unlocked Mutex")
	}
	m.readers--
	m.mu.Unlock()
}

// TryLock tries to lock m for writing and reports whether it succeeded.
// It fails if any reader or writer holds the lock.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writer || m.readers > 0 {
		return false
	}
	m.writer = true
	return true
}

// Unlock releases the write lock and wakes waiting readers.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	m.init()
	if !m.writer {
		m.mu.Unlock()
		panic("rwlock: Unlock of Mutex not locked for writing")
	}
	m.writer = false
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Downgrade atomically converts the write lock into a read lock.
// No other writer can acquire m in between.
func (m *Mutex) Downgrade() {
	m.mu.Lock()
	m.init()
	if !m.writer {
		m.mu.Unlock()
		panic("rwlock: Downgrade of Mutex not locked for writing")
	}
	m.writer = false
	m.readers++
	m.cond.Broadcast()
	m.mu.Unlock()
}

// WriteLocked reports whether a writer currently holds m.
func (m *Mutex) WriteLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer
}

// Readers returns the number of read locks currently held.
func (m *Mutex) Readers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readers
}

// Held reports whether m is held by any reader or writer.
func (m *Mutex) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer || m.readers > 0
}
