package module

import (
	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
)

// DKGSessionManager exposes the per-member contributions of DKG rounds the
// local node observed. Contributions are only retained for a limited window
// of recent rounds; callers must tolerate an empty result.
type DKGSessionManager interface {
	// VerifiedContributions returns the decrypted, verified contributions of
	// the valid members of the quorum anchored at the given block: the
	// member indices the contributions belong to, each member's verification
	// vector, and the secret-share contribution dealt to the local node.
	// ok is false when the round is outside the local retention window.
	VerifiedContributions(t llmq.QuorumType, anchor *llmq.BlockIndex, validMembers *llmq.BitVector) (indices []int, vvecs []*bls.VerificationVector, shares []*bls.SecretKey, ok bool)

	// EncryptedContributions returns the valid members' secret-share
	// contributions for the given member, each re-encrypted toward that
	// member's operator key.
	EncryptedContributions(t llmq.QuorumType, anchor *llmq.BlockIndex, validMembers *llmq.BitVector, member llmq.Identifier) ([]*bls.EncryptedShare, error)
}
