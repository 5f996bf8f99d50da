// Package inmem provides an in-memory Chain implementation. It is used by
// tests and by tools that replay headers without a database.
package inmem

import (
	"fmt"
	"sync"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/state"
)

// Chain is a thread-safe in-memory block tree with a movable tip.
type Chain struct {
	mu      sync.RWMutex
	indexes map[llmq.Identifier]*llmq.BlockIndex
	tip     *llmq.BlockIndex
}

var _ state.Chain = (*Chain)(nil)

// NewChain creates a chain containing only the given genesis block.
func NewChain(genesis *llmq.BlockIndex) *Chain {
	return &Chain{
		indexes: map[llmq.Identifier]*llmq.BlockIndex{genesis.Hash: genesis},
		tip:     genesis,
	}
}

// Extend appends a block on top of its parent and advances the tip if the
// new block's parent is the current tip.
func (c *Chain) Extend(index *llmq.BlockIndex) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index.Parent == nil {
		return fmt.Errorf("block %v has no parent", index.Hash)
	}
	if _, ok := c.indexes[index.Parent.Hash]; !ok {
		return fmt.Errorf("parent %v of block %v is unknown", index.Parent.Hash, index.Hash)
	}
	c.indexes[index.Hash] = index
	if c.tip.Hash == index.Parent.Hash {
		c.tip = index
	}
	return nil
}

// SetTip moves the tip to a known block, e.g. after a reorganization.
func (c *Chain) SetTip(hash llmq.Identifier) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	index, ok := c.indexes[hash]
	if !ok {
		return fmt.Errorf("block %v is unknown", hash)
	}
	c.tip = index
	return nil
}

func (c *Chain) BlockIndex(hash llmq.Identifier) (*llmq.BlockIndex, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	index, ok := c.indexes[hash]
	return index, ok
}

func (c *Chain) Tip() *llmq.BlockIndex {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}
