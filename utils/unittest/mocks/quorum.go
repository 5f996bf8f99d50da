// Package mocks provides hand-written fakes for the module interfaces the
// quorum subsystem consumes.
package mocks

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/module"
)

// Local is a fake local-node identity.
type Local struct {
	ProTxHash  llmq.Identifier
	Masternode bool
	Key        *bls.SecretKey
}

var _ module.Local = (*Local)(nil)

func (l *Local) NodeID() llmq.Identifier     { return l.ProTxHash }
func (l *Local) IsMasternode() bool          { return l.Masternode }
func (l *Local) OperatorKey() *bls.SecretKey { return l.Key }

// Registry is a fake masternode registry serving fixed member lists.
type Registry struct {
	// Lists maps quorum anchor hash to the member list for that quorum.
	Lists map[llmq.Identifier]llmq.MasternodeList

	// Valid is the full masternode set reported for every block.
	Valid []llmq.Identifier
}

var _ module.MasternodeRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{Lists: make(map[llmq.Identifier]llmq.MasternodeList)}
}

func (r *Registry) QuorumMembers(t llmq.QuorumType, anchor *llmq.BlockIndex) (llmq.MasternodeList, error) {
	members, ok := r.Lists[anchor.Hash]
	if !ok {
		return nil, fmt.Errorf("no member list for anchor %v", anchor.Hash)
	}
	return members, nil
}

func (r *Registry) ValidMasternodes(block *llmq.BlockIndex) ([]llmq.Identifier, error) {
	return append([]llmq.Identifier(nil), r.Valid...), nil
}

// DKGSessions is a fake DKG session manager backed by explicit contribution
// sets per quorum anchor.
type DKGSessions struct {
	// Verified maps anchor hash to the verified contribution set returned by
	// VerifiedContributions.
	Verified map[llmq.Identifier]*VerifiedSet

	// Encrypted maps anchor hash to per-member encrypted contributions.
	Encrypted map[llmq.Identifier]map[llmq.Identifier][]*bls.EncryptedShare
}

// VerifiedSet is one retained contribution set.
type VerifiedSet struct {
	Indices []int
	Vvecs   []*bls.VerificationVector
	Shares  []*bls.SecretKey
}

var _ module.DKGSessionManager = (*DKGSessions)(nil)

func NewDKGSessions() *DKGSessions {
	return &DKGSessions{
		Verified:  make(map[llmq.Identifier]*VerifiedSet),
		Encrypted: make(map[llmq.Identifier]map[llmq.Identifier][]*bls.EncryptedShare),
	}
}

func (d *DKGSessions) VerifiedContributions(t llmq.QuorumType, anchor *llmq.BlockIndex, validMembers *llmq.BitVector) ([]int, []*bls.VerificationVector, []*bls.SecretKey, bool) {
	set, ok := d.Verified[anchor.Hash]
	if !ok {
		return nil, nil, nil, false
	}
	return set.Indices, set.Vvecs, set.Shares, true
}

func (d *DKGSessions) EncryptedContributions(t llmq.QuorumType, anchor *llmq.BlockIndex, validMembers *llmq.BitVector, member llmq.Identifier) ([]*bls.EncryptedShare, error) {
	byMember, ok := d.Encrypted[anchor.Hash]
	if !ok {
		return nil, fmt.Errorf("no contributions retained for anchor %v", anchor.Hash)
	}
	contributions, ok := byMember[member]
	if !ok {
		return nil, fmt.Errorf("no contributions for member %v", member)
	}
	return contributions, nil
}

// SyncState is a fake chain sync tracker.
type SyncState struct {
	synced atomic.Bool
}

var _ module.SyncState = (*SyncState)(nil)

func NewSyncState(synced bool) *SyncState {
	s := &SyncState{}
	s.synced.Store(synced)
	return s
}

func (s *SyncState) SetSynced(synced bool)    { s.synced.Store(synced) }
func (s *SyncState) IsBlockchainSynced() bool { return s.synced.Load() }
