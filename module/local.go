package module

import (
	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
)

// Local encapsulates the stable identity of the local node: its masternode
// provider-registration hash and BLS operator key. Non-masternode nodes
// report a zero NodeID and a nil operator key.
type Local interface {
	// NodeID returns the provider-registration transaction hash of the local
	// masternode, or the zero identifier if the node is not a masternode.
	NodeID() llmq.Identifier

	// IsMasternode returns true if the node runs in masternode mode.
	IsMasternode() bool

	// OperatorKey returns the local masternode's BLS operator secret key,
	// used to decrypt secret-share contributions addressed to this node.
	OperatorKey() *bls.SecretKey
}
