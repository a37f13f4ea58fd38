package bus

import "sync/atomic"

// cyclicSequence is the per-address container: an immutable snapshot of
// holders plus a cursor shared across snapshots so next() stays monotonic
// across add()/remove() churn on the same address.
type cyclicSequence struct {
	holders []*handlerHolder
	cursor  *atomic.Uint64
}

// newCyclicSequence returns a sequence containing only holder, with a fresh
// cursor.
func newCyclicSequence(holder *handlerHolder) *cyclicSequence {
	return &cyclicSequence{
		holders: []*handlerHolder{holder},
		cursor:  new(atomic.Uint64),
	}
}

// add returns a new sequence with holder appended, preserving the
// insertion order of existing holders and the shared cursor.
func (s *cyclicSequence) add(holder *handlerHolder) *cyclicSequence {
	next := make([]*handlerHolder, len(s.holders)+1)
	copy(next, s.holders)
	next[len(s.holders)] = holder
	return &cyclicSequence{holders: next, cursor: s.cursor}
}

// remove returns a new sequence omitting the first occurrence of holder.
// The shared cursor is preserved as-is; next() adjusts it modulo the new
// size on the following call.
func (s *cyclicSequence) remove(holder *handlerHolder) *cyclicSequence {
	idx := -1
	for i, h := range s.holders {
		if h == holder {
			idx = i
			break
		}
	}
	if idx == -1 {
		return s
	}
	next := make([]*handlerHolder, 0, len(s.holders)-1)
	next = append(next, s.holders[:idx]...)
	next = append(next, s.holders[idx+1:]...)
	return &cyclicSequence{holders: next, cursor: s.cursor}
}

// size returns the number of live holders in the snapshot.
func (s *cyclicSequence) size() int {
	return len(s.holders)
}

// empty reports whether the snapshot has no holders.
func (s *cyclicSequence) empty() bool {
	return len(s.holders) == 0
}

// next atomically advances the cursor and returns the holder at the
// previous cursor position modulo the current size. Returns nil only when
// the sequence is empty. Two concurrent callers may observe different
// counter values and thus pick the same element twice - "choose one"
// semantics, not strict exclusive rotation.
func (s *cyclicSequence) next() *handlerHolder {
	n := len(s.holders)
	if n == 0 {
		return nil
	}
	counter := s.cursor.Add(1) - 1
	return s.holders[counter%uint64(n)]
}

// snapshot returns the holder slice for fan-out iteration. Callers must not
// mutate the returned slice; it is shared with the sequence.
func (s *cyclicSequence) snapshot() []*handlerHolder {
	return s.holders
}
