package quorum

import (
	"sync"
	"time"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/model/messages"
)

// requestTTL is how long a request entry blocks the peer-direction slot
// before it can be replaced by a new request.
const requestTTL = 300 * time.Second

// requestKey identifies a request slot: one per peer identity and direction.
type requestKey struct {
	peer     llmq.Identifier
	outgoing bool
}

// requestEntry tracks one in-flight data request.
type requestEntry struct {
	request   *messages.QuorumDataRequest
	createdAt time.Time
	processed bool
}

func (e *requestEntry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > requestTTL
}

// requestTracker enforces the single-outstanding-request rule: at most one
// unexpired request per (peer, direction) pair. Expired entries are cleaned
// lazily on lookup and swept on every new block tip.
type requestTracker struct {
	mu      sync.Mutex
	entries map[requestKey]*requestEntry
	now     func() time.Time
}

func newRequestTracker() *requestTracker {
	return &requestTracker{
		entries: make(map[requestKey]*requestEntry),
		now:     time.Now,
	}
}

// add registers a new request for the given slot. It fails if an unexpired
// entry already occupies the slot; an expired one is replaced.
func (t *requestTracker) add(peer llmq.Identifier, outgoing bool, request *messages.QuorumDataRequest) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := requestKey{peer: peer, outgoing: outgoing}
	entry, ok := t.entries[key]
	if ok && !entry.expired(t.now()) {
		return false
	}
	t.entries[key] = &requestEntry{
		request:   request,
		createdAt: t.now(),
	}
	return true
}

// get returns the request occupying the given slot along with its processed
// flag. Expired entries are dropped on the way.
func (t *requestTracker) get(peer llmq.Identifier, outgoing bool) (*messages.QuorumDataRequest, bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := requestKey{peer: peer, outgoing: outgoing}
	entry, ok := t.entries[key]
	if !ok {
		return nil, false, false
	}
	if entry.expired(t.now()) {
		delete(t.entries, key)
		return nil, false, false
	}
	return entry.request, entry.processed, true
}

// markProcessed flags the slot's request as answered. A response matching a
// request is accepted exactly once.
func (t *requestTracker) markProcessed(peer llmq.Identifier, outgoing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[requestKey{peer: peer, outgoing: outgoing}]
	if ok {
		entry.processed = true
	}
}

// remove clears the slot.
func (t *requestTracker) remove(peer llmq.Identifier, outgoing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, requestKey{peer: peer, outgoing: outgoing})
}

// sweep drops all expired entries.
func (t *requestTracker) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, entry := range t.entries {
		if entry.expired(now) {
			delete(t.entries, key)
		}
	}
}
