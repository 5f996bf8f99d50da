package operation

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v2"

	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
)

// StoredCommitment is the database record for a mined final commitment. It
// carries the block the commitment was mined in so consumers can detect
// commitments that are no longer on the active chain.
type StoredCommitment struct {
	Commitment     *llmq.FinalCommitment
	MinedBlockHash llmq.Identifier
	MinedHeight    uint32
}

func UpsertCommitment(t llmq.QuorumType, quorumHash llmq.Identifier, stored *StoredCommitment) func(*badger.Txn) error {
	return upsert(makePrefix(codeCommitment, t, quorumHash), stored)
}

func RetrieveCommitment(t llmq.QuorumType, quorumHash llmq.Identifier, stored *StoredCommitment) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCommitment, t, quorumHash), stored)
}

func CheckCommitment(t llmq.QuorumType, quorumHash llmq.Identifier, exists *bool) func(*badger.Txn) error {
	return check(makePrefix(codeCommitment, t, quorumHash), exists)
}

func RemoveCommitment(t llmq.QuorumType, quorumHash llmq.Identifier) func(*badger.Txn) error {
	return remove(makePrefix(codeCommitment, t, quorumHash))
}

// IndexCommitmentHeight writes the mined-height index entry for a commitment.
// The entry is key-only; the height and quorum hash are recovered from the
// key during iteration.
func IndexCommitmentHeight(t llmq.QuorumType, minedHeight uint32, quorumHash llmq.Identifier) func(*badger.Txn) error {
	return upsert(makePrefix(codeCommitmentHeight, t, minedHeight, quorumHash), struct{}{})
}

func UnindexCommitmentHeight(t llmq.QuorumType, minedHeight uint32, quorumHash llmq.Identifier) func(*badger.Txn) error {
	return remove(makePrefix(codeCommitmentHeight, t, minedHeight, quorumHash))
}

// IterateCommitmentsDescending walks the mined-height index of one quorum
// type from maxHeight downwards, calling f for every entry until f returns
// false.
func IterateCommitmentsDescending(t llmq.QuorumType, maxHeight uint32, f func(quorumHash llmq.Identifier, minedHeight uint32) bool) func(*badger.Txn) error {
	start := makePrefix(codeCommitmentHeight, t, maxHeight)
	end := makePrefix(codeCommitmentHeight, t)
	return iterateKeys(start, end, func(key []byte) (bool, error) {
		// key layout: code (1) | quorum type (1) | mined height (4) | quorum hash (32)
		height := binary.BigEndian.Uint32(key[2:6])
		quorumHash := llmq.IdentifierFromBytes(key[6:38])
		return f(quorumHash, height), nil
	})
}

func UpsertVerificationVector(quorumKey llmq.Identifier, vvec *bls.VerificationVector) func(*badger.Txn) error {
	return upsert(makePrefix(codeVerificationVector, quorumKey), vvec)
}

func RetrieveVerificationVector(quorumKey llmq.Identifier, vvec *bls.VerificationVector) func(*badger.Txn) error {
	return retrieve(makePrefix(codeVerificationVector, quorumKey), vvec)
}

func UpsertSecretShare(quorumKey llmq.Identifier, share *bls.SecretKey) func(*badger.Txn) error {
	return upsert(makePrefix(codeSecretShare, quorumKey), share)
}

func RetrieveSecretShare(quorumKey llmq.Identifier, share *bls.SecretKey) func(*badger.Txn) error {
	return retrieve(makePrefix(codeSecretShare, quorumKey), share)
}
