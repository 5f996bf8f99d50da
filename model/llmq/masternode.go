package llmq

import "github.com/evonet/llmq/crypto/bls"

// Masternode is one entry of the deterministic masternode list, reduced to
// the fields the quorum subsystem consumes: the provider-registration
// transaction hash identifying the masternode and its BLS operator key.
type Masternode struct {
	ProTxHash   Identifier
	OperatorKey *bls.PublicKey
}

// MasternodeList is an ordered list of masternodes. For quorum members the
// order is the deterministic quorum-member order at the quorum's anchor
// block; bit vectors inside a commitment index into this order.
type MasternodeList []*Masternode

// Index returns the position of the masternode with the given
// provider-registration hash, or -1 if it is not in the list.
func (l MasternodeList) Index(proTxHash Identifier) int {
	for i, mn := range l {
		if mn.ProTxHash == proTxHash {
			return i
		}
	}
	return -1
}

// Contains returns true if the masternode with the given hash is in the list.
func (l MasternodeList) Contains(proTxHash Identifier) bool {
	return l.Index(proTxHash) != -1
}

// ProTxHashes returns the provider-registration hashes in list order.
func (l MasternodeList) ProTxHashes() []Identifier {
	hashes := make([]Identifier, len(l))
	for i, mn := range l {
		hashes[i] = mn.ProTxHash
	}
	return hashes
}
