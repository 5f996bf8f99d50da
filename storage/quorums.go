package storage

import (
	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
)

// Commitments stores the final commitments mined into the chain, indexed by
// quorum type and quorum (anchor block) hash, with a per-type height index
// for backward scans.
type Commitments interface {
	// Store persists a mined commitment together with the hash and height of
	// the block it was mined in.
	Store(commitment *llmq.FinalCommitment, minedBlockHash llmq.Identifier, minedHeight uint32) error

	// ByQuorumHash returns the commitment for the given type and quorum hash
	// plus the hash of the block it was mined in.
	// Returns ErrNotFound if no commitment was ever mined for that quorum.
	ByQuorumHash(t llmq.QuorumType, quorumHash llmq.Identifier) (*llmq.FinalCommitment, llmq.Identifier, error)

	// Has returns true if a commitment for the given quorum was mined.
	Has(t llmq.QuorumType, quorumHash llmq.Identifier) (bool, error)

	// Remove deletes a mined commitment, e.g. when the block containing it
	// is disconnected during a reorganization.
	Remove(t llmq.QuorumType, quorumHash llmq.Identifier, minedHeight uint32) error

	// ForEachMinedDescending calls f for every mined commitment of the given
	// type with mined height <= maxHeight, in descending height order, until
	// f returns false.
	ForEachMinedDescending(t llmq.QuorumType, maxHeight uint32, f func(quorumHash llmq.Identifier, minedHeight uint32) bool) error
}

// QuorumData persists per-quorum cryptographic material. Keys are the
// deterministic quorum key: a hash over quorum type, quorum hash and the
// sorted member identities.
//
// CAUTION: secret key shares are confidential; the backing database is
// expected to be the secrets store.
type QuorumData interface {
	// StoreVerificationVector persists the quorum verification vector,
	// overwriting any previous value.
	StoreVerificationVector(quorumKey llmq.Identifier, vvec *bls.VerificationVector) error

	// VerificationVector returns the persisted verification vector.
	// Returns ErrNotFound if none was persisted.
	VerificationVector(quorumKey llmq.Identifier) (*bls.VerificationVector, error)

	// StoreSecretShare persists the local secret key share, overwriting any
	// previous value.
	StoreSecretShare(quorumKey llmq.Identifier, share *bls.SecretKey) error

	// SecretShare returns the persisted secret key share.
	// Returns ErrNotFound if none was persisted; this is the normal case for
	// nodes that observed a DKG round without being a member.
	SecretShare(quorumKey llmq.Identifier) (*bls.SecretKey, error)
}
