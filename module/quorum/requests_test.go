package quorum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/model/messages"
	"github.com/evonet/llmq/utils/unittest"
)

func requestFixture() *messages.QuorumDataRequest {
	return &messages.QuorumDataRequest{
		QuorumType: llmq.QuorumTypeTest,
		QuorumHash: unittest.IdentifierFixture(),
		DataMask:   messages.QuorumVerificationVector,
	}
}

func TestRequestTrackerSingleSlot(t *testing.T) {
	tracker := newRequestTracker()
	peer := unittest.IdentifierFixture()

	require.True(t, tracker.add(peer, true, requestFixture()))

	// a second request in the same direction is refused while the first is live
	assert.False(t, tracker.add(peer, true, requestFixture()))

	// the opposite direction and other peers have their own slots
	assert.True(t, tracker.add(peer, false, requestFixture()))
	assert.True(t, tracker.add(unittest.IdentifierFixture(), true, requestFixture()))
}

func TestRequestTrackerExpiry(t *testing.T) {
	tracker := newRequestTracker()
	now := time.Now()
	tracker.now = func() time.Time { return now }

	peer := unittest.IdentifierFixture()
	require.True(t, tracker.add(peer, true, requestFixture()))
	assert.False(t, tracker.add(peer, true, requestFixture()))

	// once the TTL has passed, the slot frees up
	now = now.Add(requestTTL + time.Second)
	assert.True(t, tracker.add(peer, true, requestFixture()))

	// an expired entry is dropped on lookup
	now = now.Add(requestTTL + time.Second)
	_, _, found := tracker.get(peer, true)
	assert.False(t, found)
}

func TestRequestTrackerProcessed(t *testing.T) {
	tracker := newRequestTracker()
	peer := unittest.IdentifierFixture()
	request := requestFixture()

	require.True(t, tracker.add(peer, true, request))

	got, processed, found := tracker.get(peer, true)
	require.True(t, found)
	assert.False(t, processed)
	assert.Equal(t, request, got)

	tracker.markProcessed(peer, true)
	_, processed, found = tracker.get(peer, true)
	require.True(t, found)
	assert.True(t, processed)

	tracker.remove(peer, true)
	_, _, found = tracker.get(peer, true)
	assert.False(t, found)
}

func TestRequestTrackerSweep(t *testing.T) {
	tracker := newRequestTracker()
	now := time.Now()
	tracker.now = func() time.Time { return now }

	stale := unittest.IdentifierFixture()
	require.True(t, tracker.add(stale, true, requestFixture()))

	now = now.Add(requestTTL / 2)
	fresh := unittest.IdentifierFixture()
	require.True(t, tracker.add(fresh, true, requestFixture()))

	now = now.Add(requestTTL/2 + time.Second)
	tracker.sweep()

	_, _, found := tracker.get(stale, true)
	assert.False(t, found)
	_, _, found = tracker.get(fresh, true)
	assert.True(t, found)
}
