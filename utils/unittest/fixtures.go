package unittest

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/state/inmem"
)

// IdentifierFixture returns a random identifier.
func IdentifierFixture() llmq.Identifier {
	var id llmq.Identifier
	_, err := rand.Read(id[:])
	if err != nil {
		panic(err)
	}
	return id
}

// IdentifierListFixture returns n random identifiers.
func IdentifierListFixture(n int) []llmq.Identifier {
	ids := make([]llmq.Identifier, n)
	for i := range ids {
		ids[i] = IdentifierFixture()
	}
	return ids
}

// ChainFixture builds an in-memory chain of n blocks on top of a genesis
// block and returns it together with all block indexes, genesis first.
func ChainFixture(n int) (*inmem.Chain, []*llmq.BlockIndex) {
	genesis := &llmq.BlockIndex{Hash: IdentifierFixture(), Height: 0}
	chain := inmem.NewChain(genesis)

	blocks := make([]*llmq.BlockIndex, 0, n+1)
	blocks = append(blocks, genesis)
	parent := genesis
	for i := 1; i <= n; i++ {
		block := &llmq.BlockIndex{
			Hash:   IdentifierFixture(),
			Height: uint32(i),
			Parent: parent,
		}
		err := chain.Extend(block)
		if err != nil {
			panic(err)
		}
		blocks = append(blocks, block)
		parent = block
	}
	return chain, blocks
}

// MasternodeFixtures returns n masternodes with fresh operator key pairs,
// plus the secret keys in matching order.
func MasternodeFixtures(n int) (llmq.MasternodeList, []*bls.SecretKey) {
	members := make(llmq.MasternodeList, n)
	keys := make([]*bls.SecretKey, n)
	for i := 0; i < n; i++ {
		sk, pk := bls.GenerateKeyPair()
		members[i] = &llmq.Masternode{
			ProTxHash:   IdentifierFixture(),
			OperatorKey: pk,
		}
		keys[i] = sk
	}
	return members, keys
}

// DKGResult is the full outcome of a simulated DKG round: everything a test
// needs to act as any member or as the DKG session manager.
type DKGResult struct {
	Params       llmq.QuorumParams
	QuorumHash   llmq.Identifier
	Members      llmq.MasternodeList
	OperatorKeys []*bls.SecretKey

	// Contributions holds each member's dealing, indexed by member.
	Contributions []*bls.Contribution

	// VVec is the aggregated quorum verification vector, SecretShares the
	// per-member aggregated secret key shares and QuorumSecret the combined
	// quorum secret (known here only because the round is simulated).
	VVec         *bls.VerificationVector
	SecretShares []*bls.SecretKey
	QuorumSecret *bls.SecretKey

	Commitment *llmq.FinalCommitment
}

// DKGFixture simulates a complete successful DKG round for the given
// parameters: every member deals, everything aggregates, all members sign
// the resulting commitment.
func DKGFixture(t testing.TB, params llmq.QuorumParams, quorumHash llmq.Identifier) *DKGResult {
	members, operatorKeys := MasternodeFixtures(params.Size)

	contributions := make([]*bls.Contribution, params.Size)
	vvecs := make([]*bls.VerificationVector, params.Size)
	secrets := make([]*bls.SecretKey, params.Size)
	for i := 0; i < params.Size; i++ {
		contribution, err := bls.Deal(params.Threshold, params.Size)
		require.NoError(t, err)
		contributions[i] = contribution
		vvecs[i] = contribution.VVec
		secrets[i] = contribution.Secret
	}

	vvec, err := bls.AggregateVerificationVectors(vvecs)
	require.NoError(t, err)

	secretShares := make([]*bls.SecretKey, params.Size)
	for j := 0; j < params.Size; j++ {
		dealt := make([]*bls.SecretKey, params.Size)
		for i := 0; i < params.Size; i++ {
			dealt[i] = contributions[i].Shares[j]
		}
		secretShares[j], err = bls.AggregateSecretKeys(dealt)
		require.NoError(t, err)
	}

	quorumSecret, err := bls.AggregateSecretKeys(secrets)
	require.NoError(t, err)

	vvecHash, err := vvec.Hash()
	require.NoError(t, err)

	commitment := llmq.NewFinalCommitment(params, quorumHash)
	for i := 0; i < params.Size; i++ {
		commitment.Signers.Set(i, true)
		commitment.ValidMembers.Set(i, true)
	}
	commitment.QuorumPublicKey = vvec.QuorumPublicKey()
	commitment.VerificationVectorHash = llmq.Identifier(vvecHash)

	commitmentHash := commitment.CommitmentHash()

	signerKeys := make([]*bls.PublicKey, params.Size)
	signatures := make([]bls.Signature, params.Size)
	for i := 0; i < params.Size; i++ {
		signerKeys[i] = members[i].OperatorKey
		signatures[i], err = operatorKeys[i].SignSecure(commitmentHash[:])
		require.NoError(t, err)
	}
	commitment.MembersSig, err = bls.AggregateSignaturesSecure(signerKeys, signatures)
	require.NoError(t, err)
	commitment.QuorumSig, err = quorumSecret.Sign(commitmentHash[:])
	require.NoError(t, err)

	return &DKGResult{
		Params:        params,
		QuorumHash:    quorumHash,
		Members:       members,
		OperatorKeys:  operatorKeys,
		Contributions: contributions,
		VVec:          vvec,
		SecretShares:  secretShares,
		QuorumSecret:  quorumSecret,
		Commitment:    commitment,
	}
}

// EncryptedContributionsFor re-encrypts the shares dealt to the member at
// the given index toward its operator key, as the serving side of the data
// protocol would.
func (d *DKGResult) EncryptedContributionsFor(t testing.TB, memberIdx int) []*bls.EncryptedShare {
	encrypted := make([]*bls.EncryptedShare, len(d.Contributions))
	for i, contribution := range d.Contributions {
		share, err := bls.EncryptShare(d.Members[memberIdx].OperatorKey, contribution.Shares[memberIdx])
		require.NoError(t, err)
		encrypted[i] = share
	}
	return encrypted
}

// TestQuorumParams returns the small llmq_test parameters.
func TestQuorumParams(t testing.TB) llmq.QuorumParams {
	params, ok := llmq.TestnetConfig().QuorumParams(llmq.QuorumTypeTest)
	require.True(t, ok)
	return params
}
