package module

// EngineMetrics counts the messages sent, received and handled by network
// engines.
type EngineMetrics interface {
	MessageSent(engine string, message string)
	MessageReceived(engine string, message string)
	MessageHandled(engine string, message string)
}

// QuorumMetrics observes the quorum manager: cache effectiveness, quorum
// construction, the peer data protocol and background recovery outcomes.
type QuorumMetrics interface {
	QuorumBuilt(quorumType string)
	QuorumCacheHit(quorumType string)
	QuorumCacheMiss(quorumType string)
	ScanCacheHit(quorumType string)
	ScanCacheMiss(quorumType string)
	DataRequestServed(result string)
	DataRequestRefused(reason string)
	RecoveryStarted()
	RecoveryFinished(outcome string)
}
