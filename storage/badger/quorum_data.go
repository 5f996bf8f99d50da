package badger

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/storage"
	"github.com/evonet/llmq/storage/badger/operation"
)

// QuorumData implements persistent storage for per-quorum cryptographic
// material: verification vectors and the local node's secret key shares.
type QuorumData struct {
	db *badger.DB
}

var _ storage.QuorumData = (*QuorumData)(nil)

func NewQuorumData(db *badger.DB) *QuorumData {
	return &QuorumData{db: db}
}

func (q *QuorumData) StoreVerificationVector(quorumKey llmq.Identifier, vvec *bls.VerificationVector) error {
	return q.db.Update(operation.UpsertVerificationVector(quorumKey, vvec))
}

func (q *QuorumData) VerificationVector(quorumKey llmq.Identifier) (*bls.VerificationVector, error) {
	var vvec bls.VerificationVector
	err := q.db.View(operation.RetrieveVerificationVector(quorumKey, &vvec))
	if err != nil {
		return nil, err
	}
	return &vvec, nil
}

func (q *QuorumData) StoreSecretShare(quorumKey llmq.Identifier, share *bls.SecretKey) error {
	return q.db.Update(operation.UpsertSecretShare(quorumKey, share))
}

func (q *QuorumData) SecretShare(quorumKey llmq.Identifier) (*bls.SecretKey, error) {
	var share bls.SecretKey
	err := q.db.View(operation.RetrieveSecretShare(quorumKey, &share))
	if err != nil {
		return nil, err
	}
	return &share, nil
}
