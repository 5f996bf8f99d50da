package badger_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/storage"
	badgerstorage "github.com/evonet/llmq/storage/badger"
	"github.com/evonet/llmq/utils/unittest"
)

func TestCommitmentsStoreRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := badgerstorage.NewCommitments(db)

		params := unittest.TestQuorumParams(t)
		quorumHash := unittest.IdentifierFixture()
		dkg := unittest.DKGFixture(t, params, quorumHash)
		minedBlockHash := unittest.IdentifierFixture()

		// not stored yet
		has, err := store.Has(params.Type, quorumHash)
		require.NoError(t, err)
		assert.False(t, has)

		_, _, err = store.ByQuorumHash(params.Type, quorumHash)
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, store.Store(dkg.Commitment, minedBlockHash, 48))

		has, err = store.Has(params.Type, quorumHash)
		require.NoError(t, err)
		assert.True(t, has)

		commitment, blockHash, err := store.ByQuorumHash(params.Type, quorumHash)
		require.NoError(t, err)
		assert.Equal(t, minedBlockHash, blockHash)
		assert.Equal(t, dkg.Commitment.QuorumHash, commitment.QuorumHash)
		assert.True(t, dkg.Commitment.QuorumPublicKey.Equal(commitment.QuorumPublicKey))
		assert.True(t, dkg.Commitment.ValidMembers.Equal(commitment.ValidMembers))
		assert.Equal(t, dkg.Commitment.VerificationVectorHash, commitment.VerificationVectorHash)

		// the stored commitment still verifies
		assert.True(t, commitment.Verify(llmq.TestnetConfig(), dkg.Members, true))
	})
}

func TestCommitmentsRemove(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := badgerstorage.NewCommitments(db)

		params := unittest.TestQuorumParams(t)
		commitment := llmq.NewFinalCommitment(params, unittest.IdentifierFixture())
		require.NoError(t, store.Store(commitment, unittest.IdentifierFixture(), 24))

		require.NoError(t, store.Remove(params.Type, commitment.QuorumHash, 24))

		has, err := store.Has(params.Type, commitment.QuorumHash)
		require.NoError(t, err)
		assert.False(t, has)

		// the height index entry is gone as well
		visited := 0
		err = store.ForEachMinedDescending(params.Type, 100, func(llmq.Identifier, uint32) bool {
			visited++
			return true
		})
		require.NoError(t, err)
		assert.Zero(t, visited)
	})
}

func TestCommitmentsIterateDescending(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := badgerstorage.NewCommitments(db)
		params := unittest.TestQuorumParams(t)

		heights := []uint32{24, 48, 72, 96}
		hashes := make(map[uint32]llmq.Identifier, len(heights))
		for _, h := range heights {
			commitment := llmq.NewFinalCommitment(params, unittest.IdentifierFixture())
			hashes[h] = commitment.QuorumHash
			require.NoError(t, store.Store(commitment, unittest.IdentifierFixture(), h))
		}

		// a commitment of another type must not show up in the walk
		other := llmq.NewFinalCommitment(llmq.QuorumParams{Type: llmq.QuorumTypeDevnet, Size: 10}, unittest.IdentifierFixture())
		require.NoError(t, store.Store(other, unittest.IdentifierFixture(), 60))

		t.Run("walks highest to lowest below the bound", func(t *testing.T) {
			var gotHeights []uint32
			err := store.ForEachMinedDescending(params.Type, 80, func(quorumHash llmq.Identifier, minedHeight uint32) bool {
				assert.Equal(t, hashes[minedHeight], quorumHash)
				gotHeights = append(gotHeights, minedHeight)
				return true
			})
			require.NoError(t, err)
			assert.Equal(t, []uint32{72, 48, 24}, gotHeights)
		})

		t.Run("bound is inclusive", func(t *testing.T) {
			var gotHeights []uint32
			err := store.ForEachMinedDescending(params.Type, 96, func(_ llmq.Identifier, minedHeight uint32) bool {
				gotHeights = append(gotHeights, minedHeight)
				return true
			})
			require.NoError(t, err)
			assert.Equal(t, []uint32{96, 72, 48, 24}, gotHeights)
		})

		t.Run("callback can stop the walk", func(t *testing.T) {
			visited := 0
			err := store.ForEachMinedDescending(params.Type, 96, func(llmq.Identifier, uint32) bool {
				visited++
				return false
			})
			require.NoError(t, err)
			assert.Equal(t, 1, visited)
		})
	})
}
