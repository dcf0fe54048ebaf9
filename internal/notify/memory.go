package notify

import "sync"

// fingerprintMemory remembers the most recent keys up to a fixed size, oldest evicted first.
type fingerprintMemory struct {
	mu    sync.Mutex
	size  int
	seen  map[string]struct{}
	order []string
}

func newFingerprintMemory(size int) *fingerprintMemory {
	if size < 1 {
		size = 1
	}
	return &fingerprintMemory{size: size, seen: make(map[string]struct{}, size)}
}

// remember records key and reports whether it was new.
func (m *fingerprintMemory) remember(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[key]; ok {
		return false
	}
	m.seen[key] = struct{}{}
	m.order = append(m.order, key)
	if len(m.order) > m.size {
		delete(m.seen, m.order[0])
		m.order = m.order[1:]
	}
	return true
}
