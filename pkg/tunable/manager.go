package tunable

import "sync"

// TuningResultsManager is the shared decision cache: operation signature →
// params signature → winning candidate. It is safe for concurrent use.
// Concurrent tuning of the same key is tolerated; the last writer wins and
// redundant work is wasteful but not incorrect.
type TuningResultsManager struct {
	mu      sync.RWMutex
	results map[string]map[string]ResultEntry
}

func NewTuningResultsManager() *TuningResultsManager {
	return &TuningResultsManager{
		results: make(map[string]map[string]ResultEntry),
	}
}

// Lookup returns the cached decision for the key pair, or the null entry.
func (m *TuningResultsManager) Lookup(opSig, paramsSig string) ResultEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.results[opSig][paramsSig]
	if !ok {
		return NullEntry()
	}
	return entry
}

// Add stores a decision, overwriting any previous one for the same key pair.
func (m *TuningResultsManager) Add(opSig, paramsSig string, entry ResultEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops, ok := m.results[opSig]
	if !ok {
		ops = make(map[string]ResultEntry)
		m.results[opSig] = ops
	}
	ops[paramsSig] = entry
}

// Delete removes a single decision if present.
func (m *TuningResultsManager) Delete(opSig, paramsSig string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops, ok := m.results[opSig]
	if !ok {
		return
	}
	delete(ops, paramsSig)
	if len(ops) == 0 {
		delete(m.results, opSig)
	}
}

// NumResults counts stored decisions across all operations.
func (m *TuningResultsManager) NumResults() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ops := range m.results {
		n += len(ops)
	}
	return n
}

// Results returns a deep-copied snapshot of all decisions.
func (m *TuningResultsManager) Results() map[string]map[string]ResultEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]ResultEntry, len(m.results))
	for opSig, ops := range m.results {
		cp := make(map[string]ResultEntry, len(ops))
		for paramsSig, entry := range ops {
			cp[paramsSig] = entry
		}
		out[opSig] = cp
	}
	return out
}

// Load merges decisions into the cache, overwriting on key collision.
func (m *TuningResultsManager) Load(results map[string]map[string]ResultEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for opSig, ops := range results {
		dst, ok := m.results[opSig]
		if !ok {
			dst = make(map[string]ResultEntry, len(ops))
			m.results[opSig] = dst
		}
		for paramsSig, entry := range ops {
			dst[paramsSig] = entry
		}
	}
}
