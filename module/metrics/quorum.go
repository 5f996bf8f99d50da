package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/evonet/llmq/module"
)

const (
	namespaceNetwork = "network"
	namespaceQuorum  = "quorum"

	subsystemEngine  = "engine"
	subsystemCache   = "cache"
	subsystemData    = "data"
	subsystemRecover = "recovery"
)

// QuorumCollector observes the quorum manager: cache effectiveness, quorum
// construction, the peer data protocol and recovery outcomes.
type QuorumCollector struct {
	built            *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	scanHits         *prometheus.CounterVec
	scanMisses       *prometheus.CounterVec
	requestsServed   *prometheus.CounterVec
	requestsRefused  *prometheus.CounterVec
	recoveryStarted  prometheus.Counter
	recoveryFinished *prometheus.CounterVec
}

var _ module.QuorumMetrics = (*QuorumCollector)(nil)

func NewQuorumCollector() *QuorumCollector {

	qc := &QuorumCollector{

		built: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "quorums_built_total",
			Namespace: namespaceQuorum,
			Subsystem: subsystemCache,
			Help:      "the number of quorums built from mined commitments",
		}, []string{LabelQuorumType}),

		cacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "quorum_cache_hits_total",
			Namespace: namespaceQuorum,
			Subsystem: subsystemCache,
			Help:      "the number of quorum cache hits",
		}, []string{LabelQuorumType}),

		cacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "quorum_cache_misses_total",
			Namespace: namespaceQuorum,
			Subsystem: subsystemCache,
			Help:      "the number of quorum cache misses",
		}, []string{LabelQuorumType}),

		scanHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "scan_cache_hits_total",
			Namespace: namespaceQuorum,
			Subsystem: subsystemCache,
			Help:      "the number of scan cache hits",
		}, []string{LabelQuorumType}),

		scanMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "scan_cache_misses_total",
			Namespace: namespaceQuorum,
			Subsystem: subsystemCache,
			Help:      "the number of scan cache misses",
		}, []string{LabelQuorumType}),

		requestsServed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "data_requests_served_total",
			Namespace: namespaceQuorum,
			Subsystem: subsystemData,
			Help:      "the number of served quorum data requests by result",
		}, []string{LabelResult}),

		requestsRefused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "data_requests_refused_total",
			Namespace: namespaceQuorum,
			Subsystem: subsystemData,
			Help:      "the number of refused quorum data requests by reason",
		}, []string{LabelReason}),

		recoveryStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "tasks_started_total",
			Namespace: namespaceQuorum,
			Subsystem: subsystemRecover,
			Help:      "the number of started quorum data recovery tasks",
		}),

		recoveryFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "tasks_finished_total",
			Namespace: namespaceQuorum,
			Subsystem: subsystemRecover,
			Help:      "the number of finished quorum data recovery tasks by outcome",
		}, []string{LabelOutcome}),
	}

	return qc
}

func (qc *QuorumCollector) QuorumBuilt(quorumType string) {
	qc.built.With(prometheus.Labels{LabelQuorumType: quorumType}).Inc()
}

func (qc *QuorumCollector) QuorumCacheHit(quorumType string) {
	qc.cacheHits.With(prometheus.Labels{LabelQuorumType: quorumType}).Inc()
}

func (qc *QuorumCollector) QuorumCacheMiss(quorumType string) {
	qc.cacheMisses.With(prometheus.Labels{LabelQuorumType: quorumType}).Inc()
}

func (qc *QuorumCollector) ScanCacheHit(quorumType string) {
	qc.scanHits.With(prometheus.Labels{LabelQuorumType: quorumType}).Inc()
}

func (qc *QuorumCollector) ScanCacheMiss(quorumType string) {
	qc.scanMisses.With(prometheus.Labels{LabelQuorumType: quorumType}).Inc()
}

func (qc *QuorumCollector) DataRequestServed(result string) {
	qc.requestsServed.With(prometheus.Labels{LabelResult: result}).Inc()
}

func (qc *QuorumCollector) DataRequestRefused(reason string) {
	qc.requestsRefused.With(prometheus.Labels{LabelReason: reason}).Inc()
}

func (qc *QuorumCollector) RecoveryStarted() {
	qc.recoveryStarted.Inc()
}

func (qc *QuorumCollector) RecoveryFinished(outcome string) {
	qc.recoveryFinished.With(prometheus.Labels{LabelOutcome: outcome}).Inc()
}
