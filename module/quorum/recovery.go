package quorum

import (
	"bytes"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/model/messages"
	"github.com/evonet/llmq/network"
)

// syncWaitInterval is how long a recovery task sleeps between checks while
// waiting for initial chain sync to complete.
const syncWaitInterval = 10 * time.Second

// recoveryPollInterval paces the recovery loop between candidate checks.
const recoveryPollInterval = 100 * time.Millisecond

// desyncStep is multiplied by the node's start offset to stagger concurrent
// recoveries of the same quorum across the network.
const desyncStep = 100 * time.Millisecond

// startDataRecovery launches the background recovery task for one quorum.
// At most one task runs per quorum at a time.
func (m *Manager) startDataRecovery(quorum *Quorum, tip *llmq.BlockIndex, dataMask uint16) {
	if !quorum.TryStartRecovery() {
		return
	}
	m.metrics.RecoveryStarted()
	m.workers.Submit(func() {
		defer quorum.FinishRecovery()
		m.recoverQuorumData(quorum, tip, dataMask)
	})
}

// recoverQuorumData cycles through the quorum's valid members, one at a
// time, requesting the missing material until everything asked for arrived,
// every candidate was tried, or the manager shuts down. It is best-effort:
// failures are logged, never escalated, and partial progress (e.g. a
// recovered verification vector without a secret share) stays installed and
// persisted.
func (m *Manager) recoverQuorumData(quorum *Quorum, tip *llmq.BlockIndex, dataMask uint16) {

	log := m.log.With().
		Str("quorum_type", quorum.Params.Name).
		Hex("quorum_hash", quorum.Commitment.QuorumHash[:]).
		Uint16("data_mask", dataMask).
		Logger()
	log.Debug().Msg("quorum data recovery started")

	for !m.sync.IsBlockchainSynced() {
		if !m.sleep(syncWaitInterval) {
			m.finishRecovery(log, "aborted")
			return
		}
	}

	myProTxHash := m.me.NodeID()

	// candidates are the valid members except ourselves, in a stable global
	// order; every recovering node walks the same ring from its own offset
	candidates := make([]llmq.Identifier, 0, len(quorum.Members))
	for _, member := range quorum.Members {
		if member.ProTxHash != myProTxHash && quorum.IsValidMember(member.ProTxHash) {
			candidates = append(candidates, member.ProTxHash)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return bytes.Compare(candidates[i][:], candidates[j][:]) < 0
	})
	if len(candidates) == 0 {
		m.finishRecovery(log, "exhausted")
		return
	}
	if max := quorum.Params.RecoveryMembers; len(candidates) > max {
		candidates = candidates[:max]
	}

	offset := m.recoveryStartOffset(quorum, tip)
	if !m.sleep(time.Duration(offset) * desyncStep) {
		m.finishRecovery(log, "aborted")
		return
	}

	var current *llmq.Identifier
	tries := 0
	var lastActivity time.Time

	for {
		select {
		case <-m.unit.Quit():
			m.finishRecovery(log, "aborted")
			return
		default:
		}

		if dataMask&messages.QuorumVerificationVector != 0 && quorum.HasVerificationVector() {
			dataMask &^= messages.QuorumVerificationVector
			log.Debug().Msg("verification vector recovered")
		}
		if dataMask&messages.EncryptedContributions != 0 && quorum.HasSecretKeyShare() {
			dataMask &^= messages.EncryptedContributions
			log.Debug().Msg("secret key share recovered")
		}
		if dataMask == 0 {
			m.finishRecovery(log, "success")
			return
		}

		timedOut := !lastActivity.IsZero() && time.Since(lastActivity) > m.conf.RequestTimeout
		if current == nil || timedOut {
			if tries == len(candidates) {
				m.finishRecovery(log, "exhausted")
				return
			}
			candidate := candidates[(offset+tries)%len(candidates)]
			tries++
			current = &candidate
			lastActivity = time.Now()

			if _, _, pending := m.requests.get(candidate, true); pending {
				// the slot to this member is taken by another request, move
				// on to the next candidate right away
				log.Debug().Hex("member", candidate[:]).Msg("already asked")
				current = nil
				lastActivity = time.Time{}
				continue
			}
			m.connections.AddPendingMasternode(candidate)
			log.Debug().Hex("member", candidate[:]).Msg("connecting to member")
		}

		m.tryRequestFromCurrent(log, quorum, dataMask, myProTxHash, &current, &lastActivity)

		if !m.sleep(recoveryPollInterval) {
			m.finishRecovery(log, "aborted")
			return
		}
	}
}

// tryRequestFromCurrent sends the data request to the current candidate if
// it is connected. A send failure or an already-answered request drops the
// connection and clears the candidate so the loop advances.
func (m *Manager) tryRequestFromCurrent(
	log zerolog.Logger,
	quorum *Quorum,
	dataMask uint16,
	myProTxHash llmq.Identifier,
	current **llmq.Identifier,
	lastActivity *time.Time,
) {
	var peer network.PeerInfo
	found := false
	m.connections.ForEachConnectedPeer(func(info network.PeerInfo) {
		if *current != nil && info.VerifiedProTxHash == **current {
			peer = info
			found = true
		}
	})
	if !found {
		return
	}

	err := m.RequestQuorumData(peer, quorum.Commitment.QuorumType, quorum.Commitment.QuorumHash, dataMask, myProTxHash)
	if err == nil {
		*lastActivity = time.Now()
		log.Debug().Hex("member", (**current)[:]).Msg("quorum data requested")
		return
	}

	_, processed, pending := m.requests.get(**current, true)
	switch {
	case !pending:
		log.Debug().Err(err).Hex("member", (**current)[:]).Msg("request failed, advancing")
		m.connections.Disconnect(peer.NodeID)
		*current = nil
	case processed:
		log.Debug().Hex("member", (**current)[:]).Msg("request already answered, advancing")
		m.connections.Disconnect(peer.NodeID)
		*current = nil
	default:
		// request still outstanding, keep waiting for the response
	}
}

// recoveryStartOffset derives where in the global candidate ring this node
// starts: its rank among all currently valid masternodes modulo the quorum
// size, so concurrent recoveries spread across different first choices.
func (m *Manager) recoveryStartOffset(quorum *Quorum, tip *llmq.BlockIndex) int {
	valid, err := m.registry.ValidMasternodes(tip)
	if err != nil || len(valid) == 0 {
		return 0
	}
	sort.Slice(valid, func(i, j int) bool {
		return bytes.Compare(valid[i][:], valid[j][:]) < 0
	})

	rank := 0
	myProTxHash := m.me.NodeID()
	for i, proTxHash := range valid {
		if proTxHash == myProTxHash {
			rank = i
			break
		}
	}
	return rank % quorum.Commitment.ValidMembers.Len()
}

// sleep blocks for the given duration, returning false if the manager shut
// down in the meantime.
func (m *Manager) sleep(d time.Duration) bool {
	select {
	case <-m.unit.Quit():
		return false
	case <-time.After(d):
		return true
	}
}

func (m *Manager) finishRecovery(log zerolog.Logger, outcome string) {
	m.metrics.RecoveryFinished(outcome)
	log.Debug().Str("outcome", outcome).Msg("quorum data recovery finished")
}
