package quorumdata_test

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/engine/quorumdata"
	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/module/metrics"
	"github.com/evonet/llmq/module/quorum"
	"github.com/evonet/llmq/network"
	"github.com/evonet/llmq/network/stub"
	"github.com/evonet/llmq/state/inmem"
	badgerstorage "github.com/evonet/llmq/storage/badger"
	"github.com/evonet/llmq/utils/unittest"
	"github.com/evonet/llmq/utils/unittest/mocks"
)

const testProtocolVersion uint32 = 70219

type testNode struct {
	nodeID      llmq.Identifier
	me          *mocks.Local
	dkgSessions *mocks.DKGSessions
	quorumData  *badgerstorage.QuorumData
	conn        *stub.ConnectionManager
	manager     *quorum.Manager
	engine      *quorumdata.Engine
}

// startNode brings up one node as the quorum member at the given index: stub
// network, badger-backed stores, quorum manager and data engine, all started.
func startNode(
	t *testing.T,
	hub *stub.Hub,
	db *badger.DB,
	chain *inmem.Chain,
	dkg *unittest.DKGResult,
	anchor *llmq.BlockIndex,
	mined *llmq.BlockIndex,
	memberIdx int,
	conf quorum.Config,
) *testNode {

	me := &mocks.Local{
		ProTxHash:  dkg.Members[memberIdx].ProTxHash,
		Masternode: true,
		Key:        dkg.OperatorKeys[memberIdx],
	}

	registry := mocks.NewRegistry()
	registry.Lists[anchor.Hash] = dkg.Members
	registry.Valid = dkg.Members.ProTxHashes()

	commitments := badgerstorage.NewCommitments(db)
	require.NoError(t, commitments.Store(dkg.Commitment, mined.Hash, mined.Height))

	node := &testNode{
		nodeID:      me.ProTxHash,
		me:          me,
		dkgSessions: mocks.NewDKGSessions(),
		quorumData:  badgerstorage.NewQuorumData(db),
		conn:        stub.NewConnectionManager(),
	}

	manager, err := quorum.NewManager(
		unittest.Logger(),
		metrics.NewNoopCollector(),
		conf,
		llmq.TestnetConfig(),
		me,
		chain,
		registry,
		node.dkgSessions,
		mocks.NewSyncState(true),
		commitments,
		node.quorumData,
		node.conn,
	)
	require.NoError(t, err)
	node.manager = manager

	eng, err := quorumdata.New(unittest.Logger(), metrics.NewNoopCollector(), hub.AddNetwork(node.nodeID), node.conn, manager)
	require.NoError(t, err)
	node.engine = eng

	unittest.RequireReturnsBefore(t, func() { <-manager.Ready() }, time.Second)
	unittest.RequireReturnsBefore(t, func() { <-eng.Ready() }, time.Second)
	return node
}

func (n *testNode) stop(t *testing.T) {
	unittest.RequireReturnsBefore(t, func() { <-n.manager.Done() }, 5*time.Second)
	unittest.RequireReturnsBefore(t, func() { <-n.engine.Done() }, 5*time.Second)
}

func (n *testNode) peerInfo() network.PeerInfo {
	return network.PeerInfo{
		NodeID:            n.nodeID,
		ProtocolVersion:   testProtocolVersion,
		VerifiedProTxHash: n.me.ProTxHash,
	}
}

// TestQuorumDataRecovery runs the full recovery round trip between two nodes:
// a member that lost its quorum data after the commitment was mined recovers
// the verification vector and its encrypted contributions from another member
// that still holds them.
func TestQuorumDataRecovery(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(dbA *badger.DB) {
		unittest.RunWithBadgerDB(t, func(dbB *badger.DB) {
			chain, blocks := unittest.ChainFixture(50)
			anchor := blocks[24]

			params := unittest.TestQuorumParams(t)
			dkg := unittest.DKGFixture(t, params, anchor.Hash)

			hub := stub.NewHub()
			conf := quorum.DefaultConfig()
			conf.RequestTimeout = 200 * time.Millisecond

			// node A holds the quorum data, node B is the recovering member
			nodeA := startNode(t, hub, dbA, chain, dkg, anchor, blocks[25], 1, conf)
			defer nodeA.stop(t)
			nodeB := startNode(t, hub, dbB, chain, dkg, anchor, blocks[25], 0, conf)
			defer nodeB.stop(t)

			quorumKey := quorum.MakeQuorumKey(llmq.QuorumTypeTest, anchor.Hash, dkg.Members)
			require.NoError(t, nodeA.quorumData.StoreVerificationVector(quorumKey, dkg.VVec))
			nodeA.dkgSessions.Encrypted[anchor.Hash] = map[llmq.Identifier][]*bls.EncryptedShare{}
			nodeA.dkgSessions.Encrypted[anchor.Hash][nodeB.me.ProTxHash] = dkg.EncryptedContributionsFor(t, 0)

			// B can connect to A on demand; A sees B as a verified masternode
			nodeB.conn.AddKnownMasternode(nodeA.peerInfo())
			nodeA.conn.AddPeer(nodeB.peerInfo())

			// a new tip after sync kicks off the recovery task on B
			nodeB.manager.OnBlockTip(blocks[50])

			unittest.RequireEventually(t, func() bool {
				q, err := nodeB.manager.GetQuorum(llmq.QuorumTypeTest, anchor.Hash)
				require.NoError(t, err)
				return q != nil && q.HasVerificationVector() && q.HasSecretKeyShare()
			}, 15*time.Second, 50*time.Millisecond)

			recovered, err := nodeB.manager.GetQuorum(llmq.QuorumTypeTest, anchor.Hash)
			require.NoError(t, err)
			assert.True(t, dkg.VVec.Equal(recovered.VerificationVector()))
			assert.True(t, dkg.SecretShares[0].Equal(recovered.SecretKeyShare()))

			// the recovered material was persisted on B
			vvec, err := nodeB.quorumData.VerificationVector(quorumKey)
			require.NoError(t, err)
			assert.True(t, dkg.VVec.Equal(vvec))
			share, err := nodeB.quorumData.SecretShare(quorumKey)
			require.NoError(t, err)
			assert.True(t, dkg.SecretShares[0].Equal(share))
		})
	})
}

func TestEngineRejectsUnexpectedEvents(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		chain, blocks := unittest.ChainFixture(30)
		anchor := blocks[24]
		dkg := unittest.DKGFixture(t, unittest.TestQuorumParams(t), anchor.Hash)

		hub := stub.NewHub()
		node := startNode(t, hub, db, chain, dkg, anchor, blocks[25], 0, quorum.DefaultConfig())
		defer node.stop(t)

		err := node.engine.Process(network.QuorumDataChannel, unittest.IdentifierFixture(), "not a quorum data message")
		assert.Error(t, err)
	})
}
