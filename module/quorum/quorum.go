// Package quorum implements the runtime quorum object and the manager that
// builds, caches and recovers quorums from on-chain commitments.
package quorum

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/crypto/blake2b"

	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
)

// Quorum combines an on-chain commitment with the concrete member list at its
// anchor block, plus the cryptographic material the local node holds for it:
// the verification vector shared by all holders and, if this node is a
// member, its secret key share.
//
// The commitment, member list and anchor are immutable after construction.
// The cryptographic material is guarded by a per-quorum lock because peer
// response handlers, recovery tasks and the cache populator may race to set
// it. Writes are content-addressed (hash or key-share checked), so a race
// degrades to redundant work, never to corruption.
type Quorum struct {
	Params     llmq.QuorumParams
	Commitment *llmq.FinalCommitment
	Anchor     *llmq.BlockIndex
	Members    llmq.MasternodeList

	mu           sync.RWMutex
	vvec         *bls.VerificationVector
	skShare      *bls.SecretKey
	pubKeyShares map[int]*bls.PublicKey

	recovering atomic.Bool
}

// NewQuorum wraps a mined commitment and its resolved member list into a
// runtime quorum.
func NewQuorum(params llmq.QuorumParams, commitment *llmq.FinalCommitment, anchor *llmq.BlockIndex, members llmq.MasternodeList) *Quorum {
	return &Quorum{
		Params:       params,
		Commitment:   commitment,
		Anchor:       anchor,
		Members:      members,
		pubKeyShares: make(map[int]*bls.PublicKey),
	}
}

// MakeQuorumKey derives the deterministic durable-storage key of a quorum:
// a hash over the quorum type, the anchor block hash and the sorted member
// identities.
func MakeQuorumKey(t llmq.QuorumType, quorumHash llmq.Identifier, members llmq.MasternodeList) llmq.Identifier {
	hashes := members.ProTxHashes()
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	var buf []byte
	buf = append(buf, byte(t))
	buf = append(buf, quorumHash[:]...)
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return llmq.Identifier(blake2b.Sum256(buf))
}

// Key returns the quorum's durable-storage key.
func (q *Quorum) Key() llmq.Identifier {
	return MakeQuorumKey(q.Commitment.QuorumType, q.Commitment.QuorumHash, q.Members)
}

// QuorumPublicKey returns the aggregated quorum public key recorded in the
// commitment.
func (q *Quorum) QuorumPublicKey() *bls.PublicKey {
	return q.Commitment.QuorumPublicKey
}

// MemberIndex returns the position of the given masternode in the quorum
// member list, or -1 if it is not a member.
func (q *Quorum) MemberIndex(proTxHash llmq.Identifier) int {
	return q.Members.Index(proTxHash)
}

// IsMember returns true if the given masternode is in the member list.
func (q *Quorum) IsMember(proTxHash llmq.Identifier) bool {
	return q.Members.Contains(proTxHash)
}

// IsValidMember returns true if the given masternode is a member whose DKG
// contribution was accepted.
func (q *Quorum) IsValidMember(proTxHash llmq.Identifier) bool {
	idx := q.MemberIndex(proTxHash)
	if idx == -1 {
		return false
	}
	return q.Commitment.ValidMembers.Get(idx)
}

// SetVerificationVector installs the quorum verification vector. The vector
// is rejected unless it hashes to the commitment's recorded hash, regardless
// of where it came from. Setting the same vector twice is a no-op.
func (q *Quorum) SetVerificationVector(vvec *bls.VerificationVector) error {
	hash, err := vvec.Hash()
	if err != nil {
		return fmt.Errorf("could not hash verification vector: %w", err)
	}
	if llmq.Identifier(hash) != q.Commitment.VerificationVectorHash {
		return fmt.Errorf("verification vector hash mismatch (%x != %x)",
			hash, q.Commitment.VerificationVectorHash)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.vvec = vvec
	return nil
}

// VerificationVector returns the installed verification vector, or nil.
func (q *Quorum) VerificationVector() *bls.VerificationVector {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.vvec
}

// HasVerificationVector returns true once the verification vector is set.
func (q *Quorum) HasVerificationVector() bool {
	return q.VerificationVector() != nil
}

// SetSecretKeyShare installs the local secret key share for the member at
// the given index. The share is rejected unless its public key equals the
// public key share the verification vector derives for that index, so a bad
// or misdirected share can never be installed.
func (q *Quorum) SetSecretKeyShare(share *bls.SecretKey, memberIdx int) error {
	if share == nil || !share.IsValid() {
		return fmt.Errorf("invalid secret key share")
	}

	expected := q.PubKeyShare(memberIdx)
	if expected == nil {
		return fmt.Errorf("no public key share for member %d", memberIdx)
	}
	if !expected.Equal(share.PublicKey()) {
		return fmt.Errorf("secret key share does not match public key share of member %d", memberIdx)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.skShare = share
	return nil
}

// SecretKeyShare returns the local secret key share, or nil.
func (q *Quorum) SecretKeyShare() *bls.SecretKey {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.skShare
}

// HasSecretKeyShare returns true once the local secret key share is set.
func (q *Quorum) HasSecretKeyShare() bool {
	return q.SecretKeyShare() != nil
}

// PubKeyShare derives the public key share of the member at the given index
// from the verification vector. Derivation is expensive, so results are
// cached per index; the cache populator warms it for all members right after
// a quorum is built. Returns nil if the index is out of range, the member is
// not valid, or no verification vector is available.
func (q *Quorum) PubKeyShare(memberIdx int) *bls.PublicKey {
	if memberIdx < 0 || memberIdx >= len(q.Members) {
		return nil
	}
	if !q.Commitment.ValidMembers.Get(memberIdx) {
		return nil
	}

	q.mu.RLock()
	share, ok := q.pubKeyShares[memberIdx]
	vvec := q.vvec
	q.mu.RUnlock()
	if ok {
		return share
	}
	if vvec == nil {
		return nil
	}

	share = vvec.PublicKeyShare(memberIdx)

	q.mu.Lock()
	q.pubKeyShares[memberIdx] = share
	q.mu.Unlock()

	return share
}

// TryStartRecovery flips the recovery-running flag. It returns false if a
// recovery task is already running for this quorum.
func (q *Quorum) TryStartRecovery() bool {
	return q.recovering.CompareAndSwap(false, true)
}

// FinishRecovery clears the recovery-running flag.
func (q *Quorum) FinishRecovery() {
	q.recovering.Store(false)
}

// RecoveryRunning returns true while a recovery task runs for this quorum.
func (q *Quorum) RecoveryRunning() bool {
	return q.recovering.Load()
}
