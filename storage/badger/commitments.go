package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/storage"
	"github.com/evonet/llmq/storage/badger/operation"
)

// Commitments implements persistent storage for mined final commitments.
// Lookups go straight to badger; the quorum manager keeps its own LRU of
// fully built quorums on top of this store.
type Commitments struct {
	db *badger.DB
}

var _ storage.Commitments = (*Commitments)(nil)

func NewCommitments(db *badger.DB) *Commitments {
	return &Commitments{db: db}
}

func (c *Commitments) Store(commitment *llmq.FinalCommitment, minedBlockHash llmq.Identifier, minedHeight uint32) error {
	stored := &operation.StoredCommitment{
		Commitment:     commitment,
		MinedBlockHash: minedBlockHash,
		MinedHeight:    minedHeight,
	}
	return c.db.Update(func(tx *badger.Txn) error {
		err := operation.UpsertCommitment(commitment.QuorumType, commitment.QuorumHash, stored)(tx)
		if err != nil {
			return fmt.Errorf("could not store commitment: %w", err)
		}
		err = operation.IndexCommitmentHeight(commitment.QuorumType, minedHeight, commitment.QuorumHash)(tx)
		if err != nil {
			return fmt.Errorf("could not index commitment height: %w", err)
		}
		return nil
	})
}

func (c *Commitments) ByQuorumHash(t llmq.QuorumType, quorumHash llmq.Identifier) (*llmq.FinalCommitment, llmq.Identifier, error) {
	var stored operation.StoredCommitment
	err := c.db.View(operation.RetrieveCommitment(t, quorumHash, &stored))
	if err != nil {
		return nil, llmq.ZeroID, err
	}
	return stored.Commitment, stored.MinedBlockHash, nil
}

func (c *Commitments) Has(t llmq.QuorumType, quorumHash llmq.Identifier) (bool, error) {
	var exists bool
	err := c.db.View(operation.CheckCommitment(t, quorumHash, &exists))
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (c *Commitments) Remove(t llmq.QuorumType, quorumHash llmq.Identifier, minedHeight uint32) error {
	return c.db.Update(func(tx *badger.Txn) error {
		err := operation.RemoveCommitment(t, quorumHash)(tx)
		if err != nil {
			return fmt.Errorf("could not remove commitment: %w", err)
		}
		err = operation.UnindexCommitmentHeight(t, minedHeight, quorumHash)(tx)
		if err != nil {
			return fmt.Errorf("could not unindex commitment height: %w", err)
		}
		return nil
	})
}

func (c *Commitments) ForEachMinedDescending(t llmq.QuorumType, maxHeight uint32, f func(quorumHash llmq.Identifier, minedHeight uint32) bool) error {
	return c.db.View(operation.IterateCommitmentsDescending(t, maxHeight, f))
}
