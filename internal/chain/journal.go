package chain

// journal records undo closures for every state mutation made inside a
// transaction. Reverting replays them newest-first.
type journal struct {
	entries []func()
}

func (j *journal) append(undo func()) {
	j.entries = append(j.entries, undo)
}

func (j *journal) revert() {
	for i := len(j.entries) - 1; i >= 0; i-- {
		j.entries[i]()
	}
	j.entries = nil
}

// SetMap writes m[k] = v and journals the previous entry (or its absence).
func SetMap[K comparable, V any](tx *Tx, m map[K]V, k K, v V) {
	prev, had := m[k]
	tx.j.append(func() {
		if had {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// DeleteMap removes m[k] and journals the previous entry.
func DeleteMap[K comparable, V any](tx *Tx, m map[K]V, k K) {
	prev, had := m[k]
	if !had {
		return
	}
	tx.j.append(func() { m[k] = prev })
	delete(m, k)
}

// Set writes *p = v and journals the previous value.
func Set[T any](tx *Tx, p *T, v T) {
	prev := *p
	tx.j.append(func() { *p = prev })
	*p = v
}
