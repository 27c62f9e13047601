// Package memorymgr implements the Memory Manager: a ledger of per-module
// memory reservations guarded by a single mutex, generalizing the teacher
// memory package's InMemoryStore (map + mutex, O(1) operations) from a
// key/value TTL cache to a reservation accounting ledger.
package memorymgr

import "sync"

// Manager tracks reserved memory against a fixed ceiling. All operations
// are O(1) critical sections under a single mutex, per the concurrency
// model's "Memory Manager holds its own mutex" rule.
type Manager struct {
	mu          sync.Mutex
	reservedMB  map[string]int
	maxMemoryMB int
	baselineMB  int
	onChange    func(component string, mb float64)
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithMemoryObserver registers a callback invoked with a component's
// current reservation (0 on release) after every Allocate/Release,
// feeding e.g. the telemetry package's per-component memory gauge.
func WithMemoryObserver(observer func(component string, mb float64)) Option {
	return func(m *Manager) { m.onChange = observer }
}

// New creates a Manager with the given ceiling and baseline overhead.
func New(maxMemoryMB, baselineMB int, opts ...Option) *Manager {
	m := &Manager{
		reservedMB:  make(map[string]int),
		maxMemoryMB: maxMemoryMB,
		baselineMB:  baselineMB,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Available returns the memory still free for reservation, never negative.
func (m *Manager) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available()
}

func (m *Manager) available() int {
	used := m.baselineMB
	for _, mb := range m.reservedMB {
		used += mb
	}
	free := m.maxMemoryMB - used
	if free < 0 {
		return 0
	}
	return free
}

// Allocate reserves sizeMB under name if it fits within Available(). No
// over-subscription: the check and the write happen under the same lock.
func (m *Manager) Allocate(name string, sizeMB int) bool {
	m.mu.Lock()
	if sizeMB > m.available() {
		m.mu.Unlock()
		return false
	}
	m.reservedMB[name] = sizeMB
	observer := m.onChange
	m.mu.Unlock()

	if observer != nil {
		observer(name, float64(sizeMB))
	}
	return true
}

// Release removes name's reservation, if any.
func (m *Manager) Release(name string) {
	m.mu.Lock()
	delete(m.reservedMB, name)
	observer := m.onChange
	m.mu.Unlock()
	if observer != nil {
		observer(name, 0)
	}
}

// Pressure returns the fraction of max_memory currently reserved,
// including baseline overhead, clamped to 1.
func (m *Manager) Pressure() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.baselineMB
	for _, mb := range m.reservedMB {
		used += mb
	}
	p := float64(used) / float64(m.maxMemoryMB)
	if p > 1 {
		return 1
	}
	return p
}

// TotalReservedMB returns the sum of all current reservations (excluding
// baseline), used by telemetry gauges and property tests checking I1.
func (m *Manager) TotalReservedMB() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, mb := range m.reservedMB {
		total += mb
	}
	return total
}
