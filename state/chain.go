// Package state exposes the read-only chain view the quorum subsystem
// consumes: block index lookups and the current tip. Block and transaction
// validation live elsewhere.
package state

import (
	"github.com/evonet/llmq/model/llmq"
)

// Chain is a read-only view of the block tree and the active chain.
type Chain interface {
	// BlockIndex resolves a block hash to its index entry. The second return
	// value is false for unknown blocks.
	BlockIndex(hash llmq.Identifier) (*llmq.BlockIndex, bool)

	// Tip returns the index of the current best-chain tip.
	Tip() *llmq.BlockIndex
}
