package messages

import (
	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
)

// Data kinds a quorum data request can ask for, combined as a bitmask.
const (
	// QuorumVerificationVector requests the quorum verification vector.
	QuorumVerificationVector uint16 = 0x01

	// EncryptedContributions requests the per-member secret-share
	// contributions, re-encrypted toward the requesting member.
	EncryptedContributions uint16 = 0x02
)

// QuorumDataError is the in-band error code of a quorum data response.
type QuorumDataError uint8

const (
	QuorumDataErrorNone QuorumDataError = iota
	QuorumDataErrorUndefined
	QuorumDataErrorTypeInvalid
	QuorumDataErrorBlockNotFound
	QuorumDataErrorQuorumNotFound
	QuorumDataErrorNotAMember
	QuorumDataErrorVerificationVectorMissing
	QuorumDataErrorContributionsMissing
)

func (e QuorumDataError) String() string {
	switch e {
	case QuorumDataErrorNone:
		return "NONE"
	case QuorumDataErrorUndefined:
		return "UNDEFINED"
	case QuorumDataErrorTypeInvalid:
		return "QUORUM_TYPE_INVALID"
	case QuorumDataErrorBlockNotFound:
		return "QUORUM_BLOCK_NOT_FOUND"
	case QuorumDataErrorQuorumNotFound:
		return "QUORUM_NOT_FOUND"
	case QuorumDataErrorNotAMember:
		return "MASTERNODE_IS_NO_MEMBER"
	case QuorumDataErrorVerificationVectorMissing:
		return "QUORUM_VERIFICATION_VECTOR_MISSING"
	case QuorumDataErrorContributionsMissing:
		return "ENCRYPTED_CONTRIBUTIONS_MISSING"
	default:
		return "UNKNOWN"
	}
}

// QuorumDataRequest asks a peer for missing cryptographic material of one
// quorum. ProTxHash identifies the requesting member, which the serving side
// needs to re-encrypt contributions toward the requester.
type QuorumDataRequest struct {
	QuorumType llmq.QuorumType
	QuorumHash llmq.Identifier
	DataMask   uint16
	ProTxHash  llmq.Identifier
}

// Matches reports whether two requests refer to the same quorum, mask and
// requester. A response is accepted only if its echoed fields match the
// outstanding request exactly.
func (r *QuorumDataRequest) Matches(other *QuorumDataRequest) bool {
	return r.QuorumType == other.QuorumType &&
		r.QuorumHash == other.QuorumHash &&
		r.DataMask == other.DataMask &&
		r.ProTxHash == other.ProTxHash
}

// QuorumDataResponse echoes the request fields and carries the requested
// material, or an in-band error code if it could not be served.
type QuorumDataResponse struct {
	QuorumType llmq.QuorumType
	QuorumHash llmq.Identifier
	DataMask   uint16
	ProTxHash  llmq.Identifier
	Error      QuorumDataError

	// VerificationVector is set when the request mask includes
	// QuorumVerificationVector and the serving node holds the vector.
	VerificationVector *bls.VerificationVector

	// Contributions is set when the request mask includes
	// EncryptedContributions: one entry per valid member, each encrypted
	// toward the requester's operator key.
	Contributions []*bls.EncryptedShare
}

// Request reconstructs the request this response answers.
func (r *QuorumDataResponse) Request() *QuorumDataRequest {
	return &QuorumDataRequest{
		QuorumType: r.QuorumType,
		QuorumHash: r.QuorumHash,
		DataMask:   r.DataMask,
		ProTxHash:  r.ProTxHash,
	}
}
