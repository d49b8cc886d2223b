package status

import (
	"context"
	"sync"
	"time"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

// DefaultTTL is how long an in-memory task survives its last update.
const DefaultTTL = time.Hour

type entry struct {
	progress  float64
	result    *models.Result
	updatedAt time.Time
}

// MemoryStore is a process-local Sink. Entries expire TTL after their last
// write.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{entries: make(map[string]*entry), ttl: ttl, now: time.Now}
}

// Run sweeps expired entries every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) expired(e *entry) bool {
	return m.now().Sub(e.updatedAt) > m.ttl
}

// lookup returns the live entry for taskID, creating one when create is set.
// Callers hold mu.
func (m *MemoryStore) lookup(taskID string, create bool) *entry {
	e, ok := m.entries[taskID]
	if ok && m.expired(e) {
		delete(m.entries, taskID)
		ok = false
	}
	if !ok && create {
		e = &entry{}
		m.entries[taskID] = e
		ok = true
	}
	if !ok {
		return nil
	}
	return e
}

func (m *MemoryStore) SetProgress(_ context.Context, taskID string, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(taskID, true)
	if progress > e.progress {
		e.progress = progress
	}
	e.updatedAt = m.now()
	return nil
}

func (m *MemoryStore) SetResult(_ context.Context, taskID string, result models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(taskID, true)
	e.result = &result
	e.updatedAt = m.now()
	return nil
}

func (m *MemoryStore) Progress(_ context.Context, taskID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(taskID, false)
	if e == nil {
		return 0, ErrUnknownTask
	}
	return e.progress, nil
}

func (m *MemoryStore) Result(_ context.Context, taskID string) (*models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(taskID, false)
	if e == nil {
		return nil, ErrUnknownTask
	}
	if e.result == nil {
		return nil, nil
	}
	r := *e.result
	return &r, nil
}
