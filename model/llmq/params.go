package llmq

// QuorumType identifies one of the chain-configured long-living masternode
// quorum setups. The numeric values are part of the wire and on-chain format.
type QuorumType uint8

const (
	QuorumType50_60  QuorumType = 1
	QuorumType400_60 QuorumType = 2
	QuorumType400_85 QuorumType = 3
	QuorumType100_67 QuorumType = 4

	// QuorumTypeTest and QuorumTypeDevnet are small quorums used on test
	// networks only.
	QuorumTypeTest   QuorumType = 100
	QuorumTypeDevnet QuorumType = 101
)

// QuorumParams holds the static parameters of one quorum type.
type QuorumParams struct {
	Type QuorumType
	Name string

	// Size is the member-set size of the quorum. Bit vectors inside a
	// commitment must have exactly this length.
	Size int

	// MinSize is the minimum number of valid members (and signers) for a
	// commitment to be acceptable.
	MinSize int

	// Threshold is the number of valid signature shares required to
	// reconstruct a threshold signature. It also equals the length of the
	// quorum verification vector.
	Threshold int

	// DKGInterval is the number of blocks between the start of two DKG
	// rounds for this type.
	DKGInterval uint32

	// ActiveQuorumCount is how many of the most recent quorums of this type
	// participate in signing sessions.
	ActiveQuorumCount int

	// KeepOldConnections is the number of most recent quorums for which
	// member connections are kept alive.
	KeepOldConnections int

	// RecoveryMembers is the maximum number of members a recovering node
	// will contact when requesting missing quorum data.
	RecoveryMembers int
}

var (
	params50_60 = QuorumParams{
		Type:               QuorumType50_60,
		Name:               "llmq_50_60",
		Size:               50,
		MinSize:            40,
		Threshold:          30,
		DKGInterval:        24,
		ActiveQuorumCount:  24,
		KeepOldConnections: 25,
		RecoveryMembers:    25,
	}

	params400_60 = QuorumParams{
		Type:               QuorumType400_60,
		Name:               "llmq_400_60",
		Size:               400,
		MinSize:            300,
		Threshold:          240,
		DKGInterval:        24 * 12,
		ActiveQuorumCount:  4,
		KeepOldConnections: 5,
		RecoveryMembers:    100,
	}

	params400_85 = QuorumParams{
		Type:               QuorumType400_85,
		Name:               "llmq_400_85",
		Size:               400,
		MinSize:            350,
		Threshold:          340,
		DKGInterval:        24 * 24,
		ActiveQuorumCount:  4,
		KeepOldConnections: 5,
		RecoveryMembers:    100,
	}

	params100_67 = QuorumParams{
		Type:               QuorumType100_67,
		Name:               "llmq_100_67",
		Size:               100,
		MinSize:            80,
		Threshold:          67,
		DKGInterval:        24,
		ActiveQuorumCount:  24,
		KeepOldConnections: 25,
		RecoveryMembers:    50,
	}

	paramsTest = QuorumParams{
		Type:               QuorumTypeTest,
		Name:               "llmq_test",
		Size:               3,
		MinSize:            2,
		Threshold:          2,
		DKGInterval:        24,
		ActiveQuorumCount:  2,
		KeepOldConnections: 3,
		RecoveryMembers:    3,
	}

	paramsDevnet = QuorumParams{
		Type:               QuorumTypeDevnet,
		Name:               "llmq_devnet",
		Size:               10,
		MinSize:            7,
		Threshold:          6,
		DKGInterval:        24,
		ActiveQuorumCount:  3,
		KeepOldConnections: 4,
		RecoveryMembers:    6,
	}
)

// ChainConfig lists the quorum types enabled on a chain, by type.
type ChainConfig struct {
	quorums map[QuorumType]QuorumParams
}

// NewChainConfig creates a chain configuration with the given quorum types
// enabled.
func NewChainConfig(enabled ...QuorumParams) *ChainConfig {
	quorums := make(map[QuorumType]QuorumParams, len(enabled))
	for _, p := range enabled {
		quorums[p.Type] = p
	}
	return &ChainConfig{quorums: quorums}
}

// MainnetConfig returns the chain configuration with all production quorum
// types enabled.
func MainnetConfig() *ChainConfig {
	return NewChainConfig(params50_60, params400_60, params400_85, params100_67)
}

// TestnetConfig returns a chain configuration with small quorums, suitable
// for tests and devnets.
func TestnetConfig() *ChainConfig {
	return NewChainConfig(paramsTest, paramsDevnet)
}

// HasQuorumType returns true if the given type is enabled on this chain.
func (c *ChainConfig) HasQuorumType(t QuorumType) bool {
	_, ok := c.quorums[t]
	return ok
}

// QuorumParams returns the parameters for the given type. The second return
// value is false if the type is not enabled.
func (c *ChainConfig) QuorumParams(t QuorumType) (QuorumParams, bool) {
	p, ok := c.quorums[t]
	return p, ok
}

// QuorumTypes returns all enabled quorum types in ascending type order.
func (c *ChainConfig) QuorumTypes() []QuorumType {
	types := make([]QuorumType, 0, len(c.quorums))
	for t := range c.quorums {
		types = append(types, t)
	}
	for i := 1; i < len(types); i++ {
		for j := i; j > 0 && types[j-1] > types[j]; j-- {
			types[j-1], types[j] = types[j], types[j-1]
		}
	}
	return types
}
