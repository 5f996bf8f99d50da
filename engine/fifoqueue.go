package engine

import (
	"fmt"
	"sync"
)

// FifoMessageStore is a MessageStore backed by a bounded FIFO queue. Push on
// a full queue fails instead of blocking, keeping the message-processing
// path non-blocking.
type FifoMessageStore struct {
	mu       sync.Mutex
	capacity int
	queue    []*Message
}

// NewFifoMessageStore creates a FifoMessageStore with the given capacity.
func NewFifoMessageStore(capacity int) (*FifoMessageStore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	return &FifoMessageStore{capacity: capacity}, nil
}

func (s *FifoMessageStore) Put(msg *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) >= s.capacity {
		return false
	}
	s.queue = append(s.queue, msg)
	return true
}

func (s *FifoMessageStore) Get() (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, true
}

// Len returns the number of buffered messages.
func (s *FifoMessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
