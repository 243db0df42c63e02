package index

// Wipe removes every field matching filter and returns how many were
// removed, as an early eviction of a run would.
func (m *MemoryIndex) Wipe(filter Filter) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if filter.Matches(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed
}
