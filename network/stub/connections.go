package stub

import (
	"sync"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/network"
)

// MisbehaviorReport records one ReportMisbehavior call.
type MisbehaviorReport struct {
	NodeID llmq.Identifier
	Score  int
	Reason string
}

// ConnectionManager is an in-memory connection manager for tests. Peers are
// added explicitly; pending masternode connections complete immediately if a
// peer with the matching identity was registered.
type ConnectionManager struct {
	mu       sync.Mutex
	peers    map[llmq.Identifier]network.PeerInfo
	known    map[llmq.Identifier]network.PeerInfo // by proTxHash, connected on demand
	quorums  map[llmq.QuorumType]map[llmq.Identifier]struct{}
	memberOf map[llmq.Identifier]bool // quorum hash -> local node is member
	reports  []MisbehaviorReport
	dropped  []llmq.Identifier
}

var _ network.ConnectionManager = (*ConnectionManager)(nil)

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		peers:    make(map[llmq.Identifier]network.PeerInfo),
		known:    make(map[llmq.Identifier]network.PeerInfo),
		quorums:  make(map[llmq.QuorumType]map[llmq.Identifier]struct{}),
		memberOf: make(map[llmq.Identifier]bool),
	}
}

// AddPeer marks the peer as connected.
func (c *ConnectionManager) AddPeer(info network.PeerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[info.NodeID] = info
}

// AddKnownMasternode registers a masternode that connects when requested via
// AddPendingMasternode.
func (c *ConnectionManager) AddKnownMasternode(info network.PeerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[info.VerifiedProTxHash] = info
}

// SetMember controls what MaintainQuorumConnections reports for a quorum.
func (c *ConnectionManager) SetMember(quorumHash llmq.Identifier, member bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memberOf[quorumHash] = member
}

func (c *ConnectionManager) PeerInfo(nodeID llmq.Identifier) (network.PeerInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.peers[nodeID]
	return info, ok
}

func (c *ConnectionManager) ForEachConnectedPeer(f func(network.PeerInfo)) {
	c.mu.Lock()
	infos := make([]network.PeerInfo, 0, len(c.peers))
	for _, info := range c.peers {
		infos = append(infos, info)
	}
	c.mu.Unlock()
	for _, info := range infos {
		f(info)
	}
}

func (c *ConnectionManager) AddPendingMasternode(proTxHash llmq.Identifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.known[proTxHash]; ok {
		c.peers[info.NodeID] = info
	}
}

func (c *ConnectionManager) MaintainQuorumConnections(t llmq.QuorumType, quorumIndex *llmq.BlockIndex, me llmq.Identifier) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quorums[t] == nil {
		c.quorums[t] = make(map[llmq.Identifier]struct{})
	}
	c.quorums[t][quorumIndex.Hash] = struct{}{}
	return c.memberOf[quorumIndex.Hash]
}

func (c *ConnectionManager) QuorumConnections(t llmq.QuorumType) map[llmq.Identifier]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	connections := make(map[llmq.Identifier]struct{}, len(c.quorums[t]))
	for hash := range c.quorums[t] {
		connections[hash] = struct{}{}
	}
	return connections
}

func (c *ConnectionManager) RemoveQuorumConnections(t llmq.QuorumType, quorumHash llmq.Identifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.quorums[t], quorumHash)
}

func (c *ConnectionManager) Disconnect(nodeID llmq.Identifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.peers, nodeID)
	c.dropped = append(c.dropped, nodeID)
}

func (c *ConnectionManager) ReportMisbehavior(nodeID llmq.Identifier, score int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, MisbehaviorReport{NodeID: nodeID, Score: score, Reason: reason})
}

// Reports returns all recorded misbehavior reports.
func (c *ConnectionManager) Reports() []MisbehaviorReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MisbehaviorReport(nil), c.reports...)
}

// Dropped returns the peers disconnected so far.
func (c *ConnectionManager) Dropped() []llmq.Identifier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llmq.Identifier(nil), c.dropped...)
}
