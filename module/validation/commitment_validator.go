// Package validation implements the consensus-level checks for commitment
// transactions embedded in blocks.
package validation

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/module"
	"github.com/evonet/llmq/state"
)

// InvalidCommitmentError is returned when a commitment transaction violates a
// consensus rule. Reason is the machine-readable rejection reason and Score
// the misbehavior score to apply to the relaying peer.
type InvalidCommitmentError struct {
	Reason string
	Score  int
}

func (e InvalidCommitmentError) Error() string {
	return fmt.Sprintf("invalid commitment transaction: %s", e.Reason)
}

// NewInvalidCommitmentError constructs a consensus rejection with the ban
// score applied to hard rule violations.
func NewInvalidCommitmentError(reason string) InvalidCommitmentError {
	return InvalidCommitmentError{Reason: reason, Score: 100}
}

// IsInvalidCommitmentError returns whether the given error is a consensus
// rejection, and if so its typed form.
func IsInvalidCommitmentError(err error) (InvalidCommitmentError, bool) {
	var invalidErr InvalidCommitmentError
	ok := errors.As(err, &invalidErr)
	return invalidErr, ok
}

// CommitmentValidator checks commitment transactions against the chain state
// and the quorum membership rules.
type CommitmentValidator struct {
	log      zerolog.Logger
	cfg      *llmq.ChainConfig
	chain    state.Chain
	registry module.MasternodeRegistry
}

func NewCommitmentValidator(
	log zerolog.Logger,
	cfg *llmq.ChainConfig,
	chain state.Chain,
	registry module.MasternodeRegistry,
) *CommitmentValidator {
	return &CommitmentValidator{
		log:      log.With().Str("component", "commitment_validator").Logger(),
		cfg:      cfg,
		chain:    chain,
		registry: registry,
	}
}

// CheckCommitmentTx validates a raw commitment transaction payload in the
// context of a block extending prevBlock. Every check is terminal: the first
// violated rule rejects the transaction with its reason.
//
// Signature verification is intentionally skipped here; it runs once at block
// connection, after the cheap structural rules have already filtered the
// transaction.
//
// Expected errors:
//   - InvalidCommitmentError if the payload violates a consensus rule
//
// All other errors are unexpected failures of the membership provider.
func (v *CommitmentValidator) CheckCommitmentTx(payload []byte, prevBlock *llmq.BlockIndex) error {

	tx, err := llmq.DecodeCommitmentTxPayload(payload)
	if err != nil {
		return NewInvalidCommitmentError("bad-qc-payload")
	}

	if tx.Version == 0 || tx.Version > llmq.CommitmentPayloadVersion {
		return NewInvalidCommitmentError("bad-qc-version")
	}

	if tx.Height != prevBlock.Height+1 {
		return NewInvalidCommitmentError("bad-qc-height")
	}

	anchor, found := v.chain.BlockIndex(tx.Commitment.QuorumHash)
	if !found {
		return NewInvalidCommitmentError("bad-qc-quorum-hash")
	}

	// the anchor must be an ancestor of the block containing the commitment,
	// which rejects commitments referencing side-chain blocks
	if prevBlock.GetAncestor(anchor.Height) != anchor {
		return NewInvalidCommitmentError("bad-qc-quorum-hash")
	}

	if !v.cfg.HasQuorumType(tx.Commitment.QuorumType) {
		return NewInvalidCommitmentError("bad-qc-type")
	}

	if tx.Commitment.IsNull() {
		if !tx.Commitment.VerifyNull(v.cfg) {
			return NewInvalidCommitmentError("bad-qc-invalid-null")
		}
		return nil
	}

	members, err := v.registry.QuorumMembers(tx.Commitment.QuorumType, anchor)
	if err != nil {
		return fmt.Errorf("could not get quorum members (type=%d, quorum=%v): %w",
			tx.Commitment.QuorumType, tx.Commitment.QuorumHash, err)
	}

	if !tx.Commitment.Verify(v.cfg, members, false) {
		return NewInvalidCommitmentError("bad-qc-invalid")
	}

	v.log.Debug().
		Uint8("quorum_type", uint8(tx.Commitment.QuorumType)).
		Hex("quorum_hash", tx.Commitment.QuorumHash[:]).
		Uint32("height", tx.Height).
		Msg("commitment transaction accepted")

	return nil
}
