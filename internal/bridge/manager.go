package bridge

import "sync"

// Manager tracks every live call's bridge, keyed by call SID.
type Manager struct {
	mu      sync.Mutex
	bridges map[string]*Bridge
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		bridges: make(map[string]*Bridge),
	}
}

// Add registers a bridge.
func (m *Manager) Add(b *Bridge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bridges[b.CallSID()] = b
}

// Remove deregisters the bridge for the given call.
func (m *Manager) Remove(callSID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bridges, callSID)
}

// Count returns the number of live calls.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bridges)
}

// Snapshots reports the state of every live call.
func (m *Manager) Snapshots() []CallSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshots := make([]CallSnapshot, 0, len(m.bridges))
	for _, b := range m.bridges {
		snapshots = append(snapshots, b.Snapshot())
	}
	return snapshots
}

// CloseAll tears down every live call. Used during shutdown; each bridge's
// Run returns shortly after its close.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	bridges := make([]*Bridge, 0, len(m.bridges))
	for _, b := range m.bridges {
		bridges = append(bridges, b)
	}
	m.mu.Unlock()

	for _, b := range bridges {
		b.Close()
	}
}
