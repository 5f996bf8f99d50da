package quorum

import (
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/model/messages"
	"github.com/evonet/llmq/module/metrics"
	"github.com/evonet/llmq/network"
	"github.com/evonet/llmq/network/stub"
	"github.com/evonet/llmq/state/inmem"
	badgerstorage "github.com/evonet/llmq/storage/badger"
	"github.com/evonet/llmq/utils/unittest"
	"github.com/evonet/llmq/utils/unittest/mocks"
)

// fakeSender records outgoing messages instead of sending them.
type fakeSender struct {
	mu        sync.Mutex
	requests  []*messages.QuorumDataRequest
	responses []*messages.QuorumDataResponse
	fail      bool
}

func (s *fakeSender) SendRequest(_ llmq.Identifier, request *messages.QuorumDataRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return assert.AnError
	}
	s.requests = append(s.requests, request)
	return nil
}

func (s *fakeSender) SendResponse(_ llmq.Identifier, response *messages.QuorumDataResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return assert.AnError
	}
	s.responses = append(s.responses, response)
	return nil
}

func (s *fakeSender) lastResponse() *messages.QuorumDataResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return nil
	}
	return s.responses[len(s.responses)-1]
}

type managerFixture struct {
	chain       *inmem.Chain
	blocks      []*llmq.BlockIndex
	anchor      *llmq.BlockIndex
	dkg         *unittest.DKGResult
	me          *mocks.Local
	registry    *mocks.Registry
	dkgSessions *mocks.DKGSessions
	sync        *mocks.SyncState
	commitments *badgerstorage.Commitments
	quorumData  *badgerstorage.QuorumData
	conn        *stub.ConnectionManager
	sender      *fakeSender
	manager     *Manager
}

// newManagerFixture builds a manager over a 50-block chain with one DKG round
// anchored at height 24 and its commitment mined at height 25. The local node
// is the quorum's first member.
func newManagerFixture(t *testing.T, db *badger.DB, conf Config) *managerFixture {
	chain, blocks := unittest.ChainFixture(50)
	anchor := blocks[24]

	params := unittest.TestQuorumParams(t)
	dkg := unittest.DKGFixture(t, params, anchor.Hash)

	me := &mocks.Local{
		ProTxHash:  dkg.Members[0].ProTxHash,
		Masternode: true,
		Key:        dkg.OperatorKeys[0],
	}
	registry := mocks.NewRegistry()
	registry.Lists[anchor.Hash] = dkg.Members
	registry.Valid = dkg.Members.ProTxHashes()

	f := &managerFixture{
		chain:       chain,
		blocks:      blocks,
		anchor:      anchor,
		dkg:         dkg,
		me:          me,
		registry:    registry,
		dkgSessions: mocks.NewDKGSessions(),
		sync:        mocks.NewSyncState(true),
		commitments: badgerstorage.NewCommitments(db),
		quorumData:  badgerstorage.NewQuorumData(db),
		conn:        stub.NewConnectionManager(),
		sender:      &fakeSender{},
	}

	manager, err := NewManager(
		unittest.Logger(),
		metrics.NewNoopCollector(),
		conf,
		llmq.TestnetConfig(),
		me,
		chain,
		registry,
		f.dkgSessions,
		f.sync,
		f.commitments,
		f.quorumData,
		f.conn,
	)
	require.NoError(t, err)
	manager.SetSender(f.sender)
	f.manager = manager
	return f
}

func (f *managerFixture) mineCommitment(t *testing.T, commitment *llmq.FinalCommitment, minedHeight uint32) {
	require.NoError(t, f.commitments.Store(commitment, f.blocks[minedHeight].Hash, minedHeight))
}

// retainContributions makes the DKG session manager hand out the full
// verified contribution set of the fixture round, as it would right after a
// successful DKG this node took part in.
func (f *managerFixture) retainContributions() {
	params := f.dkg.Params
	set := &mocks.VerifiedSet{}
	for i := 0; i < params.Size; i++ {
		set.Indices = append(set.Indices, i)
		set.Vvecs = append(set.Vvecs, f.dkg.Contributions[i].VVec)
		set.Shares = append(set.Shares, f.dkg.Contributions[i].Shares[0])
	}
	f.dkgSessions.Verified[f.anchor.Hash] = set
}

func (f *managerFixture) peerFor(memberIdx int) network.PeerInfo {
	return network.PeerInfo{
		NodeID:            unittest.IdentifierFixture(),
		ProtocolVersion:   dataRequestProtocolVersion,
		VerifiedProTxHash: f.dkg.Members[memberIdx].ProTxHash,
	}
}

func TestGetQuorumWithoutCommitment(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		quorum, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
		require.NoError(t, err)
		assert.Nil(t, quorum)

		_, err = f.manager.GetQuorum(llmq.QuorumType50_60, f.anchor.Hash)
		assert.Error(t, err)
	})
}

func TestGetQuorumFromContributions(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)
		f.retainContributions()

		quorum, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
		require.NoError(t, err)
		require.NotNil(t, quorum)

		require.True(t, quorum.HasVerificationVector())
		assert.True(t, f.dkg.VVec.Equal(quorum.VerificationVector()))
		require.True(t, quorum.HasSecretKeyShare())
		assert.True(t, f.dkg.SecretShares[0].Equal(quorum.SecretKeyShare()))

		// the aggregated material was persisted
		vvec, err := f.quorumData.VerificationVector(quorum.Key())
		require.NoError(t, err)
		assert.True(t, f.dkg.VVec.Equal(vvec))
		share, err := f.quorumData.SecretShare(quorum.Key())
		require.NoError(t, err)
		assert.True(t, f.dkg.SecretShares[0].Equal(share))

		// the second lookup is served from the cache
		again, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
		require.NoError(t, err)
		assert.Same(t, quorum, again)
	})
}

func TestGetQuorumFromDurableStorage(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)

		// persisted by a previous run; no contributions are retained anymore
		quorumKey := MakeQuorumKey(llmq.QuorumTypeTest, f.anchor.Hash, f.dkg.Members)
		require.NoError(t, f.quorumData.StoreVerificationVector(quorumKey, f.dkg.VVec))
		require.NoError(t, f.quorumData.StoreSecretShare(quorumKey, f.dkg.SecretShares[0]))

		quorum, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
		require.NoError(t, err)
		require.NotNil(t, quorum)
		assert.True(t, f.dkg.VVec.Equal(quorum.VerificationVector()))
		assert.True(t, f.dkg.SecretShares[0].Equal(quorum.SecretKeyShare()))
	})
}

func TestGetQuorumToleratesBadPersistedShare(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)

		quorumKey := MakeQuorumKey(llmq.QuorumTypeTest, f.anchor.Hash, f.dkg.Members)
		require.NoError(t, f.quorumData.StoreVerificationVector(quorumKey, f.dkg.VVec))
		// a share that belongs to another member, e.g. left over from a key
		// rotation; it must not make the quorum unusable
		require.NoError(t, f.quorumData.StoreSecretShare(quorumKey, f.dkg.SecretShares[1]))

		quorum, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
		require.NoError(t, err)
		require.NotNil(t, quorum)
		assert.True(t, quorum.HasVerificationVector())
		assert.False(t, quorum.HasSecretKeyShare())
	})
}

func TestGetQuorumAfterReorg(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)

		quorum, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
		require.NoError(t, err)
		require.NotNil(t, quorum)

		// the commitment is disconnected during a reorganization; the cached
		// quorum must not be served anymore
		require.NoError(t, f.commitments.Remove(llmq.QuorumTypeTest, f.anchor.Hash, 25))

		quorum, err = f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
		require.NoError(t, err)
		assert.Nil(t, quorum)
	})
}

func TestScanQuorums(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		// two rounds: the fixture quorum at height 24 and a second at 48
		f.mineCommitment(t, f.dkg.Commitment, 25)

		second := unittest.DKGFixture(t, f.dkg.Params, f.blocks[48].Hash)
		f.registry.Lists[f.blocks[48].Hash] = second.Members
		f.mineCommitment(t, second.Commitment, 49)

		// a commitment mined on an abandoned branch must never appear
		fork := &llmq.BlockIndex{
			Hash:   unittest.IdentifierFixture(),
			Height: 13,
			Parent: f.blocks[12],
		}
		require.NoError(t, f.chain.Extend(fork))
		orphaned := unittest.DKGFixture(t, f.dkg.Params, f.blocks[12].Hash)
		f.registry.Lists[f.blocks[12].Hash] = orphaned.Members
		require.NoError(t, f.commitments.Store(orphaned.Commitment, fork.Hash, 13))

		tip := f.blocks[50]

		t.Run("unbounded scan returns all, newest first", func(t *testing.T) {
			quorums, err := f.manager.ScanQuorums(llmq.QuorumTypeTest, tip, 0)
			require.NoError(t, err)
			require.Len(t, quorums, 2)
			assert.Equal(t, f.blocks[48].Hash, quorums[0].Commitment.QuorumHash)
			assert.Equal(t, f.anchor.Hash, quorums[1].Commitment.QuorumHash)
		})

		t.Run("bounded scan truncates", func(t *testing.T) {
			quorums, err := f.manager.ScanQuorums(llmq.QuorumTypeTest, tip, 1)
			require.NoError(t, err)
			require.Len(t, quorums, 1)
			assert.Equal(t, f.blocks[48].Hash, quorums[0].Commitment.QuorumHash)
		})

		t.Run("count above available returns all", func(t *testing.T) {
			quorums, err := f.manager.ScanQuorums(llmq.QuorumTypeTest, tip, 10)
			require.NoError(t, err)
			assert.Len(t, quorums, 2)
		})

		t.Run("repeated scans are deterministic", func(t *testing.T) {
			first, err := f.manager.ScanQuorums(llmq.QuorumTypeTest, tip, 2)
			require.NoError(t, err)
			again, err := f.manager.ScanQuorums(llmq.QuorumTypeTest, tip, 2)
			require.NoError(t, err)
			require.Len(t, again, len(first))
			for i := range first {
				assert.Same(t, first[i], again[i])
			}
		})

		t.Run("scans from an older block skip newer quorums", func(t *testing.T) {
			quorums, err := f.manager.ScanQuorums(llmq.QuorumTypeTest, f.blocks[30], 0)
			require.NoError(t, err)
			require.Len(t, quorums, 1)
			assert.Equal(t, f.anchor.Hash, quorums[0].Commitment.QuorumHash)
		})

		t.Run("nil start yields nothing", func(t *testing.T) {
			quorums, err := f.manager.ScanQuorums(llmq.QuorumTypeTest, nil, 0)
			require.NoError(t, err)
			assert.Empty(t, quorums)
		})
	})
}

func TestOnBlockTipConnections(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		conf := DefaultConfig()
		conf.DataRecoveryEnabled = false
		f := newManagerFixture(t, db, conf)
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)
		f.conn.SetMember(f.anchor.Hash, true)

		// leftover connections to a quorum outside the retention window
		staleIndex := &llmq.BlockIndex{Hash: unittest.IdentifierFixture(), Height: 10}
		f.conn.MaintainQuorumConnections(llmq.QuorumTypeTest, staleIndex, f.me.ProTxHash)

		tip := f.blocks[50]
		f.manager.OnBlockTip(tip)

		connections := f.conn.QuorumConnections(llmq.QuorumTypeTest)
		assert.Contains(t, connections, f.anchor.Hash)
		assert.NotContains(t, connections, staleIndex.Hash)
	})
}

func TestOnBlockTipWaitsForSync(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)
		f.sync.SetSynced(false)

		f.manager.OnBlockTip(f.blocks[50])

		// nothing happened: no connections were established
		assert.Empty(t, f.conn.QuorumConnections(llmq.QuorumTypeTest))
	})
}

func TestRequestQuorumData(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		peer := f.peerFor(1)

		t.Run("protocol version too low", func(t *testing.T) {
			old := peer
			old.ProtocolVersion = dataRequestProtocolVersion - 1
			err := f.manager.RequestQuorumData(old, llmq.QuorumTypeTest, f.anchor.Hash, dataMaskAll, f.me.ProTxHash)
			assert.Error(t, err)
		})

		t.Run("unverified peer", func(t *testing.T) {
			unverified := network.PeerInfo{NodeID: unittest.IdentifierFixture(), ProtocolVersion: dataRequestProtocolVersion}
			err := f.manager.RequestQuorumData(unverified, llmq.QuorumTypeTest, f.anchor.Hash, dataMaskAll, f.me.ProTxHash)
			assert.Error(t, err)
		})

		t.Run("sends and blocks duplicates", func(t *testing.T) {
			err := f.manager.RequestQuorumData(peer, llmq.QuorumTypeTest, f.anchor.Hash, dataMaskAll, f.me.ProTxHash)
			require.NoError(t, err)
			require.Len(t, f.sender.requests, 1)
			assert.Equal(t, dataMaskAll, f.sender.requests[0].DataMask)

			err = f.manager.RequestQuorumData(peer, llmq.QuorumTypeTest, f.anchor.Hash, dataMaskAll, f.me.ProTxHash)
			assert.Error(t, err)
		})

		t.Run("failed send frees the slot", func(t *testing.T) {
			other := f.peerFor(2)
			f.sender.fail = true
			err := f.manager.RequestQuorumData(other, llmq.QuorumTypeTest, f.anchor.Hash, dataMaskAll, f.me.ProTxHash)
			assert.Error(t, err)

			f.sender.fail = false
			err = f.manager.RequestQuorumData(other, llmq.QuorumTypeTest, f.anchor.Hash, dataMaskAll, f.me.ProTxHash)
			assert.NoError(t, err)
		})
	})
}

func TestHandleDataRequest(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)
		f.retainContributions()
		f.dkgSessions.Encrypted[f.anchor.Hash] = map[llmq.Identifier][]*bls.EncryptedShare{
			f.dkg.Members[1].ProTxHash: f.dkg.EncryptedContributionsFor(t, 1),
		}

		request := &messages.QuorumDataRequest{
			QuorumType: llmq.QuorumTypeTest,
			QuorumHash: f.anchor.Hash,
			DataMask:   dataMaskAll,
			ProTxHash:  f.dkg.Members[1].ProTxHash,
		}

		t.Run("unverified peer is scored", func(t *testing.T) {
			unverified := network.PeerInfo{NodeID: unittest.IdentifierFixture(), ProtocolVersion: dataRequestProtocolVersion}
			f.manager.HandleDataRequest(unverified, request)
			reports := f.conn.Reports()
			require.NotEmpty(t, reports)
			assert.Equal(t, 10, reports[len(reports)-1].Score)
		})

		t.Run("invalid mask is scored", func(t *testing.T) {
			peer := f.peerFor(2)
			bad := *request
			bad.DataMask = 0x80
			f.manager.HandleDataRequest(peer, &bad)
			reports := f.conn.Reports()
			require.NotEmpty(t, reports)
			assert.Equal(t, 25, reports[len(reports)-1].Score)
			assert.Equal(t, "invalid data mask", reports[len(reports)-1].Reason)
		})

		t.Run("serves the requested material", func(t *testing.T) {
			peer := f.peerFor(1)
			f.manager.HandleDataRequest(peer, request)

			response := f.sender.lastResponse()
			require.NotNil(t, response)
			assert.Equal(t, messages.QuorumDataErrorNone, response.Error)
			require.NotNil(t, response.VerificationVector)
			assert.True(t, f.dkg.VVec.Equal(response.VerificationVector))
			assert.Len(t, response.Contributions, f.dkg.Params.Size)
		})

		t.Run("second request within the window is scored", func(t *testing.T) {
			peer := f.peerFor(1)
			f.manager.HandleDataRequest(peer, request)
			reports := f.conn.Reports()
			require.NotEmpty(t, reports)
			assert.Equal(t, "request limit exceeded", reports[len(reports)-1].Reason)
		})

		t.Run("unknown quorum answered in-band", func(t *testing.T) {
			peer := f.peerFor(2)
			missing := *request
			missing.QuorumHash = f.blocks[12].Hash
			f.manager.HandleDataRequest(peer, &missing)

			response := f.sender.lastResponse()
			require.NotNil(t, response)
			assert.Equal(t, messages.QuorumDataErrorQuorumNotFound, response.Error)
		})
	})
}

func TestHandleDataResponse(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)
		peer := f.peerFor(1)

		quorum, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
		require.NoError(t, err)
		require.NotNil(t, quorum)
		require.False(t, quorum.HasVerificationVector())

		goodResponse := func() *messages.QuorumDataResponse {
			return &messages.QuorumDataResponse{
				QuorumType:         llmq.QuorumTypeTest,
				QuorumHash:         f.anchor.Hash,
				DataMask:           dataMaskAll,
				ProTxHash:          f.me.ProTxHash,
				Error:              messages.QuorumDataErrorNone,
				VerificationVector: f.dkg.VVec,
				Contributions:      f.dkg.EncryptedContributionsFor(t, 0),
			}
		}

		t.Run("unsolicited response is scored", func(t *testing.T) {
			f.manager.HandleDataResponse(peer, goodResponse())
			reports := f.conn.Reports()
			require.NotEmpty(t, reports)
			assert.Equal(t, "not requested", reports[len(reports)-1].Reason)
			assert.False(t, quorum.HasVerificationVector())
		})

		require.NoError(t, f.manager.RequestQuorumData(peer, llmq.QuorumTypeTest, f.anchor.Hash, dataMaskAll, f.me.ProTxHash))

		t.Run("response not matching the request is scored and ignored", func(t *testing.T) {
			mismatched := goodResponse()
			mismatched.DataMask = messages.QuorumVerificationVector
			mismatched.Contributions = nil
			f.manager.HandleDataResponse(peer, mismatched)
			reports := f.conn.Reports()
			require.NotEmpty(t, reports)
			assert.Equal(t, "not like requested", reports[len(reports)-1].Reason)
			assert.False(t, quorum.HasVerificationVector())
		})

		t.Run("matching response is absorbed and persisted", func(t *testing.T) {
			f.manager.HandleDataResponse(peer, goodResponse())

			require.True(t, quorum.HasVerificationVector())
			require.True(t, quorum.HasSecretKeyShare())
			assert.True(t, f.dkg.SecretShares[0].Equal(quorum.SecretKeyShare()))

			vvec, err := f.quorumData.VerificationVector(quorum.Key())
			require.NoError(t, err)
			assert.True(t, f.dkg.VVec.Equal(vvec))
		})

		t.Run("replayed response is scored", func(t *testing.T) {
			f.manager.HandleDataResponse(peer, goodResponse())
			reports := f.conn.Reports()
			require.NotEmpty(t, reports)
			assert.Equal(t, "already received", reports[len(reports)-1].Reason)
		})
	})
}

func TestHandleDataResponseContributionScoring(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)

		t.Run("missing verification vector is our own miss", func(t *testing.T) {
			peer := f.peerFor(1)
			require.NoError(t, f.manager.RequestQuorumData(peer, llmq.QuorumTypeTest, f.anchor.Hash, messages.EncryptedContributions, f.me.ProTxHash))

			// a well-formed answer to a question we cannot check yet
			f.manager.HandleDataResponse(peer, &messages.QuorumDataResponse{
				QuorumType:    llmq.QuorumTypeTest,
				QuorumHash:    f.anchor.Hash,
				DataMask:      messages.EncryptedContributions,
				ProTxHash:     f.me.ProTxHash,
				Contributions: f.dkg.EncryptedContributionsFor(t, 0),
			})

			assert.Empty(t, f.conn.Reports())
			quorum, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
			require.NoError(t, err)
			assert.False(t, quorum.HasSecretKeyShare())
		})

		t.Run("contributions for a quorum we are not in are dropped silently", func(t *testing.T) {
			second := unittest.DKGFixture(t, f.dkg.Params, f.blocks[48].Hash)
			f.registry.Lists[f.blocks[48].Hash] = second.Members
			f.mineCommitment(t, second.Commitment, 49)
			secondKey := MakeQuorumKey(llmq.QuorumTypeTest, f.blocks[48].Hash, second.Members)
			require.NoError(t, f.quorumData.StoreVerificationVector(secondKey, second.VVec))

			peer := network.PeerInfo{
				NodeID:            unittest.IdentifierFixture(),
				ProtocolVersion:   dataRequestProtocolVersion,
				VerifiedProTxHash: second.Members[1].ProTxHash,
			}
			require.NoError(t, f.manager.RequestQuorumData(peer, llmq.QuorumTypeTest, f.blocks[48].Hash, messages.EncryptedContributions, f.me.ProTxHash))

			f.manager.HandleDataResponse(peer, &messages.QuorumDataResponse{
				QuorumType:    llmq.QuorumTypeTest,
				QuorumHash:    f.blocks[48].Hash,
				DataMask:      messages.EncryptedContributions,
				ProTxHash:     f.me.ProTxHash,
				Contributions: second.EncryptedContributionsFor(t, 0),
			})

			assert.Empty(t, f.conn.Reports())
		})

		t.Run("undecryptable contributions are scored", func(t *testing.T) {
			quorum, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
			require.NoError(t, err)
			require.NotNil(t, quorum)
			require.NoError(t, quorum.SetVerificationVector(f.dkg.VVec))

			peer := f.peerFor(2)
			require.NoError(t, f.manager.RequestQuorumData(peer, llmq.QuorumTypeTest, f.anchor.Hash, messages.EncryptedContributions, f.me.ProTxHash))

			// contributions encrypted toward another member's operator key
			f.manager.HandleDataResponse(peer, &messages.QuorumDataResponse{
				QuorumType:    llmq.QuorumTypeTest,
				QuorumHash:    f.anchor.Hash,
				DataMask:      messages.EncryptedContributions,
				ProTxHash:     f.me.ProTxHash,
				Contributions: f.dkg.EncryptedContributionsFor(t, 1),
			})

			reports := f.conn.Reports()
			require.NotEmpty(t, reports)
			assert.Equal(t, 10, reports[len(reports)-1].Score)
			assert.Contains(t, reports[len(reports)-1].Reason, "invalid encrypted contributions")
			assert.False(t, quorum.HasSecretKeyShare())
		})
	})
}

func TestHandleDataResponseRejectsBadVector(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		f := newManagerFixture(t, db, DefaultConfig())
		defer func() { <-f.manager.Done() }()

		f.mineCommitment(t, f.dkg.Commitment, 25)
		peer := f.peerFor(1)

		require.NoError(t, f.manager.RequestQuorumData(peer, llmq.QuorumTypeTest, f.anchor.Hash, messages.QuorumVerificationVector, f.me.ProTxHash))

		// a vector from a different round does not hash to the committed hash
		foreign, err := bls.Deal(f.dkg.Params.Threshold, f.dkg.Params.Size)
		require.NoError(t, err)

		f.manager.HandleDataResponse(peer, &messages.QuorumDataResponse{
			QuorumType:         llmq.QuorumTypeTest,
			QuorumHash:         f.anchor.Hash,
			DataMask:           messages.QuorumVerificationVector,
			ProTxHash:          f.me.ProTxHash,
			VerificationVector: foreign.VVec,
		})

		reports := f.conn.Reports()
		require.NotEmpty(t, reports)
		assert.Equal(t, "invalid verification vector", reports[len(reports)-1].Reason)

		quorum, err := f.manager.GetQuorum(llmq.QuorumTypeTest, f.anchor.Hash)
		require.NoError(t, err)
		assert.False(t, quorum.HasVerificationVector())
	})
}
