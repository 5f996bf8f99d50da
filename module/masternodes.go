package module

import (
	"github.com/evonet/llmq/model/llmq"
)

// MasternodeRegistry provides read-only access to the deterministic
// masternode list state machine.
type MasternodeRegistry interface {
	// QuorumMembers returns the full ordered member list for a quorum of the
	// given type anchored at the given block. The order is deterministic and
	// is the order commitment bit vectors index into.
	QuorumMembers(t llmq.QuorumType, anchor *llmq.BlockIndex) (llmq.MasternodeList, error)

	// ValidMasternodes returns the provider-registration hashes of all
	// masternodes valid at the given block, in registry order.
	ValidMasternodes(block *llmq.BlockIndex) ([]llmq.Identifier, error)
}
