package quorum

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/evonet/llmq/model/llmq"
)

// Configuration keys understood by ConfigFromViper. Verification-vector sync
// entries are nested per quorum type name, e.g. "llmq.vvec-sync.llmq_50_60".
const (
	CfgDataRecoveryEnabled = "llmq.data-recovery-enabled"
	CfgWatchQuorums        = "llmq.watch-quorums"
	CfgRequestTimeout      = "llmq.request-timeout"
	CfgVvecSyncPrefix      = "llmq.vvec-sync"
)

// VvecSyncMode controls when a node that is not a member of a specific
// quorum still recovers that quorum's verification vector.
type VvecSyncMode int

const (
	// VvecSyncAlways recovers the verification vector of every quorum of
	// the configured type.
	VvecSyncAlways VvecSyncMode = iota

	// VvecSyncOnlyIfTypeMember recovers verification vectors of a type only
	// while the node is a valid member of at least one quorum of that type.
	VvecSyncOnlyIfTypeMember
)

// ParseVvecSyncMode parses the textual configuration form of a sync mode.
func ParseVvecSyncMode(s string) (VvecSyncMode, error) {
	switch s {
	case "always":
		return VvecSyncAlways, nil
	case "only-if-type-member":
		return VvecSyncOnlyIfTypeMember, nil
	default:
		return 0, fmt.Errorf("unknown verification vector sync mode: %q", s)
	}
}

// Config carries the operator-facing settings of the quorum manager.
type Config struct {
	// DataRecoveryEnabled enables the background recovery of missing quorum
	// data for quorums this masternode is a member of.
	DataRecoveryEnabled bool

	// WatchQuorums keeps connections to all quorums within the retention
	// window, not only those the node is a member of.
	WatchQuorums bool

	// RequestTimeout bounds how long a recovery task waits for one peer to
	// answer a data request before it advances to the next candidate.
	RequestTimeout time.Duration

	// VvecSync holds the per-type verification vector sync modes. Types
	// without an entry only sync as quorum members.
	VvecSync map[llmq.QuorumType]VvecSyncMode
}

// DefaultConfig returns the settings used when no configuration is provided.
func DefaultConfig() Config {
	return Config{
		DataRecoveryEnabled: true,
		WatchQuorums:        false,
		RequestTimeout:      10 * time.Second,
		VvecSync:            make(map[llmq.QuorumType]VvecSyncMode),
	}
}

// ConfigFromViper reads the quorum manager settings from the given viper
// instance, falling back to defaults for unset keys. Sync-mode entries are
// validated against the chain's configured quorum types.
func ConfigFromViper(v *viper.Viper, chain *llmq.ChainConfig) (Config, error) {
	conf := DefaultConfig()

	v.SetDefault(CfgDataRecoveryEnabled, conf.DataRecoveryEnabled)
	v.SetDefault(CfgWatchQuorums, conf.WatchQuorums)
	v.SetDefault(CfgRequestTimeout, conf.RequestTimeout)

	conf.DataRecoveryEnabled = v.GetBool(CfgDataRecoveryEnabled)
	conf.WatchQuorums = v.GetBool(CfgWatchQuorums)
	conf.RequestTimeout = v.GetDuration(CfgRequestTimeout)
	if conf.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("request timeout must be positive, got %v", conf.RequestTimeout)
	}

	for _, t := range chain.QuorumTypes() {
		params, _ := chain.QuorumParams(t)
		key := fmt.Sprintf("%s.%s", CfgVvecSyncPrefix, params.Name)
		if !v.IsSet(key) {
			continue
		}
		mode, err := ParseVvecSyncMode(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid sync mode for %s: %w", params.Name, err)
		}
		conf.VvecSync[t] = mode
	}

	return conf, nil
}
