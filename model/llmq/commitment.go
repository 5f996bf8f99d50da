package llmq

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/evonet/llmq/crypto/bls"
)

// CommitmentVersion is the highest commitment version this node understands.
const CommitmentVersion uint16 = 1

// FinalCommitment is the immutable record of a completed DKG round. Once
// embedded in an accepted commitment transaction it is part of the chain and
// never mutated.
//
// Signers and ValidMembers index into the deterministic quorum member list
// at the quorum's anchor block. ValidMembers gates whether a member's
// contribution and public key share may be trusted; Signers selects the
// member keys that the aggregated members signature verifies against.
type FinalCommitment struct {
	Version                uint16
	QuorumType             QuorumType
	QuorumHash             Identifier
	Signers                *BitVector
	ValidMembers           *BitVector
	QuorumPublicKey        *bls.PublicKey
	VerificationVectorHash Identifier
	MembersSig             bls.Signature
	QuorumSig              bls.Signature
}

// NewFinalCommitment creates an empty (null-form) commitment for the given
// quorum type and anchor block hash, with zeroed bit vectors of the
// configured size.
func NewFinalCommitment(params QuorumParams, quorumHash Identifier) *FinalCommitment {
	return &FinalCommitment{
		Version:      CommitmentVersion,
		QuorumType:   params.Type,
		QuorumHash:   quorumHash,
		Signers:      NewBitVector(params.Size),
		ValidMembers: NewBitVector(params.Size),
	}
}

// CountSigners returns the number of set signer bits.
func (c *FinalCommitment) CountSigners() int {
	return c.Signers.Count()
}

// CountValidMembers returns the number of set valid-member bits.
func (c *FinalCommitment) CountValidMembers() int {
	return c.ValidMembers.Count()
}

// IsNull reports whether the commitment is the canonical "DKG round failed"
// form: no signers, no valid members and no key material.
func (c *FinalCommitment) IsNull() bool {
	if c.CountSigners() != 0 || c.CountValidMembers() != 0 {
		return false
	}
	if c.QuorumPublicKey.IsValid() || !c.VerificationVectorHash.IsZero() {
		return false
	}
	if c.MembersSig.IsWellFormed() || c.QuorumSig.IsWellFormed() {
		return false
	}
	return true
}

// VerifySizes checks that both bit vectors have exactly the configured
// member-set size.
func (c *FinalCommitment) VerifySizes(params QuorumParams) bool {
	if c.Signers.Len() != params.Size {
		return false
	}
	if c.ValidMembers.Len() != params.Size {
		return false
	}
	return true
}

// Verify validates the commitment against the chain configuration and the
// resolved member list at the quorum's anchor block. Each check is terminal.
// Signature verification is expensive and only performed when checkSigs is
// set; the consensus path defers it to block connection.
func (c *FinalCommitment) Verify(cfg *ChainConfig, members MasternodeList, checkSigs bool) bool {
	if c.Version == 0 || c.Version > CommitmentVersion {
		return false
	}

	params, ok := cfg.QuorumParams(c.QuorumType)
	if !ok {
		return false
	}

	if !c.VerifySizes(params) {
		return false
	}
	if c.CountValidMembers() < params.MinSize {
		return false
	}
	if c.CountSigners() < params.MinSize {
		return false
	}
	if !c.QuorumPublicKey.IsValid() {
		return false
	}
	if c.VerificationVectorHash.IsZero() {
		return false
	}
	if !c.MembersSig.IsWellFormed() {
		return false
	}
	if !c.QuorumSig.IsWellFormed() {
		return false
	}

	// A bit set beyond the resolved member list means the commitment
	// references more members than the registry can produce for the anchor
	// block, typically because the list was fetched inconsistently.
	for i := len(members); i < params.Size; i++ {
		if c.ValidMembers.Get(i) {
			return false
		}
		if c.Signers.Get(i) {
			return false
		}
	}

	if checkSigs {
		commitmentHash := c.CommitmentHash()

		var signerKeys []*bls.PublicKey
		for i := 0; i < len(members); i++ {
			if c.Signers.Get(i) {
				signerKeys = append(signerKeys, members[i].OperatorKey)
			}
		}

		if err := bls.VerifySecureAggregated(signerKeys, commitmentHash[:], c.MembersSig); err != nil {
			return false
		}
		if err := bls.Verify(c.QuorumPublicKey, commitmentHash[:], c.QuorumSig); err != nil {
			return false
		}
	}

	return true
}

// VerifyNull validates a null-form commitment: the quorum type must be
// recognized, the bit vectors must have the configured size, and every field
// must be in the canonical empty state. Signature checks do not apply.
func (c *FinalCommitment) VerifyNull(cfg *ChainConfig) bool {
	params, ok := cfg.QuorumParams(c.QuorumType)
	if !ok {
		return false
	}
	if !c.IsNull() || !c.VerifySizes(params) {
		return false
	}
	return true
}

// CommitmentHash returns the deterministic hash the commitment signatures
// are formed over: quorum type, quorum hash, valid members, quorum public
// key and verification vector hash.
func (c *FinalCommitment) CommitmentHash() Identifier {
	return BuildCommitmentHash(c.QuorumType, c.QuorumHash, c.ValidMembers, c.QuorumPublicKey, c.VerificationVectorHash)
}

// BuildCommitmentHash computes the commitment hash over its canonical binary
// encoding.
func BuildCommitmentHash(t QuorumType, quorumHash Identifier, validMembers *BitVector, pubKey *bls.PublicKey, vvecHash Identifier) Identifier {
	var buf []byte
	buf = append(buf, byte(t))
	buf = append(buf, quorumHash[:]...)
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(validMembers.Len()))
	buf = append(buf, length[:]...)
	buf = append(buf, validMembers.Bytes()...)
	if pubKey.IsValid() {
		buf = append(buf, pubKey.Encode()...)
	}
	buf = append(buf, vvecHash[:]...)
	return Identifier(blake2b.Sum256(buf))
}
