package module

// SyncState reports the chain synchronization progress of the local node.
type SyncState interface {
	// IsBlockchainSynced returns true once initial block download has
	// completed and the node follows the chain tip.
	IsBlockchainSynced() bool
}
