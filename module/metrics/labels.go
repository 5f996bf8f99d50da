package metrics

const (
	EngineLabel     = "engine"
	LabelMessage    = "message"
	LabelQuorumType = "quorum_type"
	LabelResult     = "result"
	LabelReason     = "reason"
	LabelOutcome    = "outcome"
)
