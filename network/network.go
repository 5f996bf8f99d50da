package network

import (
	"github.com/evonet/llmq/model/llmq"
)

// Channel specifies a virtual and isolated communication medium. Nodes
// subscribe to a channel to exchange the message types assigned to it.
type Channel string

func (c Channel) String() string {
	return string(c)
}

// QuorumDataChannel carries the quorum data request/response exchange.
const QuorumDataChannel = Channel("quorum-data")

// Network represents the network layer of the node. Engines register on a
// channel and receive a conduit for sending on it.
type Network interface {
	// Register will subscribe the given engine with the given unique channel
	// and return a conduit to directly submit messages to it.
	Register(channel Channel, engine Engine) (Conduit, error)
}

// Conduit is the interface for sending messages on a registered channel.
type Conduit interface {
	// Unicast sends the event to the peer with the given identity in a
	// reliable one-to-one manner.
	Unicast(event interface{}, targetID llmq.Identifier) error
}

// Engine is the interface the networking layer uses to deliver messages.
type Engine interface {
	// Submit submits the given event from the node with the given origin ID
	// for processing in a non-blocking manner. A processing error is logged
	// internally.
	Submit(channel Channel, originID llmq.Identifier, event interface{})

	// Process processes the given event from the node with the given origin
	// ID in a blocking manner. It returns the potential processing error.
	Process(channel Channel, originID llmq.Identifier, event interface{}) error
}

// PeerInfo describes a connected peer as far as the quorum subsystem cares:
// its network identity, protocol version, verified masternode identity (zero
// if the peer did not authenticate as a masternode) and whether it connected
// as an explicit quorum watcher.
type PeerInfo struct {
	NodeID            llmq.Identifier
	ProtocolVersion   uint32
	VerifiedProTxHash llmq.Identifier
	QuorumWatcher     bool
}

// IsVerifiedMasternode returns true if the peer authenticated with a
// provider-registration hash.
func (p PeerInfo) IsVerifiedMasternode() bool {
	return !p.VerifiedProTxHash.IsZero()
}

// ConnectionManager is the connection-management contract consumed by the
// quorum manager: persistent masternode connections per quorum, peer lookup
// and misbehavior scoring. The transport itself is out of scope.
type ConnectionManager interface {
	// PeerInfo returns information about the connected peer with the given
	// network identity.
	PeerInfo(nodeID llmq.Identifier) (PeerInfo, bool)

	// ForEachConnectedPeer calls f once for every currently connected peer.
	ForEachConnectedPeer(f func(PeerInfo))

	// AddPendingMasternode schedules a connection to the masternode with the
	// given provider-registration hash.
	AddPendingMasternode(proTxHash llmq.Identifier)

	// MaintainQuorumConnections ensures persistent connections to the
	// members of the given quorum. It returns true if the local node is a
	// member of that quorum and connections are being maintained.
	MaintainQuorumConnections(t llmq.QuorumType, quorumIndex *llmq.BlockIndex, me llmq.Identifier) bool

	// QuorumConnections returns the quorum hashes for which persistent
	// connections of the given type currently exist.
	QuorumConnections(t llmq.QuorumType) map[llmq.Identifier]struct{}

	// RemoveQuorumConnections tears down the persistent connections kept for
	// the given quorum.
	RemoveQuorumConnections(t llmq.QuorumType, quorumHash llmq.Identifier)

	// Disconnect drops the connection to the given peer.
	Disconnect(nodeID llmq.Identifier)

	// ReportMisbehavior applies a misbehavior score to the given peer.
	// A zero score logs the reason without affecting the peer.
	ReportMisbehavior(nodeID llmq.Identifier, score int, reason string)
}
