package metrics

// NoopCollector implements all metrics interfaces without recording
// anything. It is used by tests and tools.
type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) MessageSent(engine string, message string)     {}
func (nc *NoopCollector) MessageReceived(engine string, message string) {}
func (nc *NoopCollector) MessageHandled(engine string, message string)  {}
func (nc *NoopCollector) QuorumBuilt(quorumType string)                 {}
func (nc *NoopCollector) QuorumCacheHit(quorumType string)              {}
func (nc *NoopCollector) QuorumCacheMiss(quorumType string)             {}
func (nc *NoopCollector) ScanCacheHit(quorumType string)                {}
func (nc *NoopCollector) ScanCacheMiss(quorumType string)               {}
func (nc *NoopCollector) DataRequestServed(result string)               {}
func (nc *NoopCollector) DataRequestRefused(reason string)              {}
func (nc *NoopCollector) RecoveryStarted()                              {}
func (nc *NoopCollector) RecoveryFinished(outcome string)               {}
