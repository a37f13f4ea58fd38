package bus

import (
	"sync"

	"github.com/relaybus/eventbus/internal/bus/ids"
)

// addrEntry is the registry's per-address slot. seq is guarded by mu so a
// concurrent register and the unregister that empties the sequence can
// never interleave: the decision to delete the map entry is made under the
// same lock that mutates seq, not as a separate atomic step against the
// map.
type addrEntry struct {
	mu   sync.Mutex
	seq  *cyclicSequence
	dead bool
}

// registry maintains the address -> cyclicSequence mapping. It tolerates
// concurrent register/unregister on the same address without losing or
// duplicating holders: contention only ever serializes on a single
// address's addrEntry, never across the whole registry.
type registry struct {
	entries sync.Map // string -> *addrEntry
}

func newRegistry() *registry {
	return &registry{}
}

// register inserts a new holder for address, creating the address entry if
// necessary, and returns the holder.
func (r *registry) register(address string, ctx ExecutionContext, handler ConsumerHandler, local, isReply bool) *handlerHolder {
	holder := &handlerHolder{
		id:      ids.CreateULID(),
		address: address,
		ctx:     ctx,
		handler: handler,
		local:   local,
		isReply: isReply,
	}

	for {
		actual, _ := r.entries.LoadOrStore(address, &addrEntry{})
		entry := actual.(*addrEntry)

		entry.mu.Lock()
		if entry.dead {
			// unregister already committed to deleting this entry from the
			// map; it just hasn't finished doing so. Retry so we land on
			// either a fresh entry or the same one after it's gone.
			entry.mu.Unlock()
			continue
		}
		if entry.seq == nil {
			entry.seq = newCyclicSequence(holder)
		} else {
			entry.seq = entry.seq.add(holder)
		}
		entry.mu.Unlock()
		break
	}

	holder.detach = func() { r.unregister(holder) }
	return holder
}

// unregister removes holder from its address's sequence. Idempotent: only
// the first call for a given holder performs the removal.
func (r *registry) unregister(holder *handlerHolder) {
	if !holder.markRemoved() {
		return
	}

	actual, ok := r.entries.Load(holder.address)
	if !ok {
		return
	}
	entry := actual.(*addrEntry)

	entry.mu.Lock()
	if entry.seq == nil {
		entry.mu.Unlock()
		return
	}
	entry.seq = entry.seq.remove(holder)
	if !entry.seq.empty() {
		entry.mu.Unlock()
		return
	}
	// The sequence is empty: mark the entry dead under the same lock so a
	// register that already holds this *addrEntry sees it and retries
	// instead of adding a holder that then gets deleted out from under it.
	entry.dead = true
	entry.mu.Unlock()
	r.entries.CompareAndDelete(holder.address, entry)
}

// lookup returns the current sequence snapshot for address, or (nil,
// false) if there is no live entry.
func (r *registry) lookup(address string) (*cyclicSequence, bool) {
	actual, ok := r.entries.Load(address)
	if !ok {
		return nil, false
	}
	entry := actual.(*addrEntry)

	entry.mu.Lock()
	seq, dead := entry.seq, entry.dead
	entry.mu.Unlock()

	if dead || seq == nil || seq.empty() {
		return nil, false
	}
	return seq, true
}

// unregisterAll unregisters every holder currently registered, across all
// addresses. Used by Bus.Close.
func (r *registry) unregisterAll() {
	var holders []*handlerHolder
	r.entries.Range(func(_, value any) bool {
		entry := value.(*addrEntry)
		entry.mu.Lock()
		if entry.seq != nil {
			holders = append(holders, entry.seq.snapshot()...)
		}
		entry.mu.Unlock()
		return true
	})
	for _, h := range holders {
		r.unregister(h)
	}
}
