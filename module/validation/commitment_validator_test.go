package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/module/validation"
	"github.com/evonet/llmq/utils/unittest"
	"github.com/evonet/llmq/utils/unittest/mocks"
)

// validatorFixture wires a validator over a 30-block chain with a DKG round
// anchored at height 24.
type validatorFixture struct {
	validator *validation.CommitmentValidator
	dkg       *unittest.DKGResult
	blocks    []*llmq.BlockIndex
	prev      *llmq.BlockIndex
}

func newValidatorFixture(t *testing.T) *validatorFixture {
	chain, blocks := unittest.ChainFixture(30)
	anchor := blocks[24]

	params := unittest.TestQuorumParams(t)
	dkg := unittest.DKGFixture(t, params, anchor.Hash)

	registry := mocks.NewRegistry()
	registry.Lists[anchor.Hash] = dkg.Members

	validator := validation.NewCommitmentValidator(unittest.Logger(), llmq.TestnetConfig(), chain, registry)

	return &validatorFixture{
		validator: validator,
		dkg:       dkg,
		blocks:    blocks,
		prev:      blocks[29],
	}
}

func (f *validatorFixture) payload(commitment *llmq.FinalCommitment) []byte {
	tx := &llmq.CommitmentTxPayload{
		Version:    llmq.CommitmentPayloadVersion,
		Height:     f.prev.Height + 1,
		Commitment: commitment,
	}
	return tx.Encode()
}

func requireRejected(t *testing.T, err error, reason string) {
	require.Error(t, err)
	invalidErr, ok := validation.IsInvalidCommitmentError(err)
	require.True(t, ok, "expected a consensus rejection, got: %v", err)
	assert.Equal(t, reason, invalidErr.Reason)
	assert.Equal(t, 100, invalidErr.Score)
}

func TestCheckCommitmentTxValid(t *testing.T) {
	f := newValidatorFixture(t)
	require.NoError(t, f.validator.CheckCommitmentTx(f.payload(f.dkg.Commitment), f.prev))
}

func TestCheckCommitmentTxValidNull(t *testing.T) {
	f := newValidatorFixture(t)
	commitment := llmq.NewFinalCommitment(f.dkg.Params, f.dkg.QuorumHash)
	require.NoError(t, f.validator.CheckCommitmentTx(f.payload(commitment), f.prev))
}

func TestCheckCommitmentTxRejections(t *testing.T) {

	t.Run("undecodable payload", func(t *testing.T) {
		f := newValidatorFixture(t)
		err := f.validator.CheckCommitmentTx([]byte{0xDE, 0xAD}, f.prev)
		requireRejected(t, err, "bad-qc-payload")
	})

	t.Run("unsupported version", func(t *testing.T) {
		f := newValidatorFixture(t)
		tx := &llmq.CommitmentTxPayload{
			Version:    llmq.CommitmentPayloadVersion + 1,
			Height:     f.prev.Height + 1,
			Commitment: f.dkg.Commitment,
		}
		err := f.validator.CheckCommitmentTx(tx.Encode(), f.prev)
		requireRejected(t, err, "bad-qc-version")
	})

	t.Run("wrong height", func(t *testing.T) {
		f := newValidatorFixture(t)
		tx := &llmq.CommitmentTxPayload{
			Version:    llmq.CommitmentPayloadVersion,
			Height:     f.prev.Height + 2,
			Commitment: f.dkg.Commitment,
		}
		err := f.validator.CheckCommitmentTx(tx.Encode(), f.prev)
		requireRejected(t, err, "bad-qc-height")
	})

	t.Run("unknown quorum anchor", func(t *testing.T) {
		f := newValidatorFixture(t)
		c := *f.dkg.Commitment
		c.QuorumHash = unittest.IdentifierFixture()
		err := f.validator.CheckCommitmentTx(f.payload(&c), f.prev)
		requireRejected(t, err, "bad-qc-quorum-hash")
	})

	t.Run("anchor on a side branch", func(t *testing.T) {
		chain, blocks := unittest.ChainFixture(30)

		// fork off at height 23 with an alternative block at height 24
		forkAnchor := &llmq.BlockIndex{
			Hash:   unittest.IdentifierFixture(),
			Height: 24,
			Parent: blocks[23],
		}
		require.NoError(t, chain.Extend(forkAnchor))

		params := unittest.TestQuorumParams(t)
		dkg := unittest.DKGFixture(t, params, forkAnchor.Hash)

		registry := mocks.NewRegistry()
		registry.Lists[forkAnchor.Hash] = dkg.Members
		validator := validation.NewCommitmentValidator(unittest.Logger(), llmq.TestnetConfig(), chain, registry)

		tx := &llmq.CommitmentTxPayload{
			Version:    llmq.CommitmentPayloadVersion,
			Height:     blocks[29].Height + 1,
			Commitment: dkg.Commitment,
		}
		err := validator.CheckCommitmentTx(tx.Encode(), blocks[29])
		requireRejected(t, err, "bad-qc-quorum-hash")
	})

	t.Run("type not enabled on chain", func(t *testing.T) {
		f := newValidatorFixture(t)
		c := *f.dkg.Commitment
		c.QuorumType = llmq.QuorumType50_60
		err := f.validator.CheckCommitmentTx(f.payload(&c), f.prev)
		requireRejected(t, err, "bad-qc-type")
	})

	t.Run("malformed null commitment", func(t *testing.T) {
		f := newValidatorFixture(t)
		c := llmq.NewFinalCommitment(f.dkg.Params, f.dkg.QuorumHash)
		c.Signers = llmq.NewBitVector(f.dkg.Params.Size + 1)
		err := f.validator.CheckCommitmentTx(f.payload(c), f.prev)
		requireRejected(t, err, "bad-qc-invalid-null")
	})

	t.Run("structurally invalid commitment", func(t *testing.T) {
		f := newValidatorFixture(t)
		c := *f.dkg.Commitment
		c.VerificationVectorHash = llmq.ZeroID
		err := f.validator.CheckCommitmentTx(f.payload(&c), f.prev)
		requireRejected(t, err, "bad-qc-invalid")
	})

	t.Run("membership provider failure is not a rejection", func(t *testing.T) {
		chain, blocks := unittest.ChainFixture(30)
		dkg := unittest.DKGFixture(t, unittest.TestQuorumParams(t), blocks[24].Hash)

		// registry without a member list for the anchor
		validator := validation.NewCommitmentValidator(unittest.Logger(), llmq.TestnetConfig(), chain, mocks.NewRegistry())

		tx := &llmq.CommitmentTxPayload{
			Version:    llmq.CommitmentPayloadVersion,
			Height:     blocks[29].Height + 1,
			Commitment: dkg.Commitment,
		}
		err := validator.CheckCommitmentTx(tx.Encode(), blocks[29])
		require.Error(t, err)
		_, ok := validation.IsInvalidCommitmentError(err)
		assert.False(t, ok)
	})
}
