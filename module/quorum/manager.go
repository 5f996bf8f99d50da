package quorum

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/evonet/llmq/crypto/bls"
	"github.com/evonet/llmq/engine"
	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/model/messages"
	"github.com/evonet/llmq/module"
	"github.com/evonet/llmq/network"
	"github.com/evonet/llmq/state"
	"github.com/evonet/llmq/storage"
)

// dataRequestProtocolVersion is the minimum peer protocol version that
// understands the quorum data request messages.
const dataRequestProtocolVersion uint32 = 70219

// dataMaskAll is the set of defined data-kind bits; any other bit in a
// request mask is hostile input.
const dataMaskAll = messages.QuorumVerificationVector | messages.EncryptedContributions

// DataSender sends quorum data messages to a peer. It is implemented by the
// network engine and injected once the engine has registered its conduit.
type DataSender interface {
	SendRequest(targetID llmq.Identifier, request *messages.QuorumDataRequest) error
	SendResponse(targetID llmq.Identifier, response *messages.QuorumDataResponse) error
}

// Manager orchestrates quorum construction from on-chain commitments. It
// owns the per-type quorum and scan caches, the in-flight data request table
// and the background worker pool for recovery and cache-populator tasks.
type Manager struct {
	unit    *engine.Unit
	log     zerolog.Logger
	metrics module.QuorumMetrics
	conf    Config
	chain   *llmq.ChainConfig

	me          module.Local
	blocks      state.Chain
	registry    module.MasternodeRegistry
	dkg         module.DKGSessionManager
	sync        module.SyncState
	commitments storage.Commitments
	quorumData  storage.QuorumData
	connections network.ConnectionManager
	sender      DataSender

	// quorumCache maps quorum hash to built quorum, scanCache maps a scan
	// start block hash to the most recent quorums at that block. Both are
	// bounded per quorum type. The LRU containers are internally locked; the
	// caches map itself is immutable after construction.
	quorumCache map[llmq.QuorumType]*lru.Cache[llmq.Identifier, *Quorum]
	scanCache   map[llmq.QuorumType]*lru.Cache[llmq.Identifier, []*Quorum]

	requests *requestTracker
	workers  *workerpool.WorkerPool
}

// NewManager creates the quorum manager. The data sender must be injected
// with SetSender before Ready is called.
func NewManager(
	log zerolog.Logger,
	metrics module.QuorumMetrics,
	conf Config,
	chain *llmq.ChainConfig,
	me module.Local,
	blocks state.Chain,
	registry module.MasternodeRegistry,
	dkg module.DKGSessionManager,
	sync module.SyncState,
	commitments storage.Commitments,
	quorumData storage.QuorumData,
	connections network.ConnectionManager,
) (*Manager, error) {

	m := &Manager{
		unit:        engine.NewUnit(),
		log:         log.With().Str("component", "quorum_manager").Logger(),
		metrics:     metrics,
		conf:        conf,
		chain:       chain,
		me:          me,
		blocks:      blocks,
		registry:    registry,
		dkg:         dkg,
		sync:        sync,
		commitments: commitments,
		quorumData:  quorumData,
		connections: connections,
		quorumCache: make(map[llmq.QuorumType]*lru.Cache[llmq.Identifier, *Quorum]),
		scanCache:   make(map[llmq.QuorumType]*lru.Cache[llmq.Identifier, []*Quorum]),
		requests:    newRequestTracker(),
		workers:     workerpool.New(workerCount()),
	}

	for _, t := range chain.QuorumTypes() {
		params, _ := chain.QuorumParams(t)
		capacity := params.ActiveQuorumCount + 1

		quorums, err := lru.New[llmq.Identifier, *Quorum](capacity)
		if err != nil {
			return nil, fmt.Errorf("could not create quorum cache: %w", err)
		}
		scans, err := lru.New[llmq.Identifier, []*Quorum](capacity)
		if err != nil {
			return nil, fmt.Errorf("could not create scan cache: %w", err)
		}
		m.quorumCache[t] = quorums
		m.scanCache[t] = scans
	}

	return m, nil
}

// workerCount sizes the background pool: half the cores, at least one worker
// and no more than four.
func workerCount() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}

// SetSender injects the message sender. Must be called before Ready.
func (m *Manager) SetSender(sender DataSender) {
	m.sender = sender
}

// Ready returns a channel that is closed when the manager is ready.
func (m *Manager) Ready() <-chan struct{} {
	return m.unit.Ready()
}

// Done stops all background tasks and returns a channel that is closed once
// they have exited.
func (m *Manager) Done() <-chan struct{} {
	return m.unit.Done(m.workers.StopWait)
}

// GetQuorum returns the quorum anchored at the given block hash, building it
// on a cache miss. It returns nil (without error) if no commitment was ever
// mined for that anchor. The durable commitment store is consulted before
// the cache so that a cached quorum whose commitment was disconnected during
// a reorganization is never served.
func (m *Manager) GetQuorum(t llmq.QuorumType, quorumHash llmq.Identifier) (*Quorum, error) {
	cache, ok := m.quorumCache[t]
	if !ok {
		return nil, fmt.Errorf("quorum type %d is not configured", t)
	}

	mined, err := m.commitments.Has(t, quorumHash)
	if err != nil {
		return nil, fmt.Errorf("could not check mined commitment: %w", err)
	}
	if !mined {
		return nil, nil
	}

	if quorum, ok := cache.Get(quorumHash); ok {
		m.metrics.QuorumCacheHit(m.typeName(t))
		return quorum, nil
	}
	m.metrics.QuorumCacheMiss(m.typeName(t))

	return m.buildQuorum(t, quorumHash)
}

// buildQuorum constructs the quorum from its mined commitment, loading the
// cryptographic material from durable storage or, failing that, aggregating
// it from locally retained DKG contributions. Redundant concurrent builds of
// the same quorum are tolerated: building is idempotent and the last build
// wins the cache slot.
func (m *Manager) buildQuorum(t llmq.QuorumType, quorumHash llmq.Identifier) (*Quorum, error) {

	commitment, _, err := m.commitments.ByQuorumHash(t, quorumHash)
	if err != nil {
		return nil, fmt.Errorf("could not load mined commitment: %w", err)
	}

	anchor, found := m.blocks.BlockIndex(quorumHash)
	if !found {
		return nil, fmt.Errorf("anchor block %v not found", quorumHash)
	}

	params, _ := m.chain.QuorumParams(t)
	members, err := m.registry.QuorumMembers(t, anchor)
	if err != nil {
		return nil, fmt.Errorf("could not resolve quorum members: %w", err)
	}

	quorum := NewQuorum(params, commitment, anchor, members)

	err = m.loadQuorumData(quorum)
	if err != nil {
		return nil, fmt.Errorf("could not load quorum data: %w", err)
	}

	m.quorumCache[t].Add(quorumHash, quorum)
	m.metrics.QuorumBuilt(params.Name)
	m.startCachePopulator(quorum)

	m.log.Debug().
		Str("quorum_type", params.Name).
		Hex("quorum_hash", quorumHash[:]).
		Bool("has_vvec", quorum.HasVerificationVector()).
		Bool("has_share", quorum.HasSecretKeyShare()).
		Msg("quorum built")

	return quorum, nil
}

// loadQuorumData fills the quorum's cryptographic material: first from the
// durable store, then from retained DKG contributions. A quorum without a
// verification vector is still usable for public-key verification; recovery
// may complete it later.
func (m *Manager) loadQuorumData(quorum *Quorum) error {
	quorumKey := quorum.Key()

	vvec, err := m.quorumData.VerificationVector(quorumKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("could not read verification vector: %w", err)
	}
	if vvec != nil {
		err = quorum.SetVerificationVector(vvec)
		if err != nil {
			return fmt.Errorf("persisted verification vector rejected: %w", err)
		}

		share, err := m.quorumData.SecretShare(quorumKey)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not read secret key share: %w", err)
		}
		if share != nil {
			memberIdx := quorum.MemberIndex(m.me.NodeID())
			err = quorum.SetSecretKeyShare(share, memberIdx)
			if err != nil {
				// a stale or misfiled share must not make the quorum
				// unusable; recovery can replace it later
				m.log.Warn().Err(err).
					Hex("quorum_hash", quorum.Commitment.QuorumHash[:]).
					Msg("persisted secret key share rejected, continuing without it")
			}
		}
		return nil
	}

	return m.buildQuorumContributions(quorum)
}

// buildQuorumContributions aggregates the verified DKG contributions of all
// valid members into the quorum verification vector and, if this node is a
// member, its secret key share. Contributions are only retained for recent
// rounds, so an empty result is normal and not an error. A successfully
// aggregated vector is persisted immediately.
func (m *Manager) buildQuorumContributions(quorum *Quorum) error {
	commitment := quorum.Commitment

	indices, vvecs, shares, ok := m.dkg.VerifiedContributions(
		commitment.QuorumType, quorum.Anchor, commitment.ValidMembers)
	if !ok {
		return nil
	}
	if len(indices) != commitment.CountValidMembers() {
		m.log.Debug().
			Int("contributions", len(indices)).
			Int("valid_members", commitment.CountValidMembers()).
			Msg("incomplete contribution set, skipping aggregation")
		return nil
	}

	vvec, err := bls.AggregateVerificationVectors(vvecs)
	if err != nil {
		return fmt.Errorf("could not aggregate verification vectors: %w", err)
	}
	err = quorum.SetVerificationVector(vvec)
	if err != nil {
		return fmt.Errorf("aggregated verification vector rejected: %w", err)
	}

	quorumKey := quorum.Key()
	err = m.quorumData.StoreVerificationVector(quorumKey, vvec)
	if err != nil {
		return fmt.Errorf("could not persist verification vector: %w", err)
	}

	memberIdx := quorum.MemberIndex(m.me.NodeID())
	if memberIdx == -1 || len(shares) == 0 {
		return nil
	}

	share, err := bls.AggregateSecretKeys(shares)
	if err != nil {
		return fmt.Errorf("could not aggregate secret key shares: %w", err)
	}
	err = quorum.SetSecretKeyShare(share, memberIdx)
	if err != nil {
		return fmt.Errorf("aggregated secret key share rejected: %w", err)
	}
	err = m.quorumData.StoreSecretShare(quorumKey, share)
	if err != nil {
		return fmt.Errorf("could not persist secret key share: %w", err)
	}

	return nil
}

// startCachePopulator eagerly derives all member public key shares of a
// freshly built quorum in the background, so the first real signing session
// does not pay the derivation cost.
func (m *Manager) startCachePopulator(quorum *Quorum) {
	if !quorum.HasVerificationVector() {
		return
	}
	m.workers.Submit(func() {
		for i := range quorum.Members {
			select {
			case <-m.unit.Quit():
				return
			default:
			}
			quorum.PubKeyShare(i)
		}
	})
}

// ScanQuorums returns up to count most-recently-mined quorums of the given
// type, walking backward from the start block. A non-positive count returns
// everything available. Results are served from and merged into the per-type
// scan cache: an exact or oversized cached window is reused directly, an
// undersized one is extended by scanning below its oldest entry.
func (m *Manager) ScanQuorums(t llmq.QuorumType, start *llmq.BlockIndex, count int) ([]*Quorum, error) {
	if start == nil {
		return nil, nil
	}
	cache, ok := m.scanCache[t]
	if !ok {
		return nil, fmt.Errorf("quorum type %d is not configured", t)
	}

	params, _ := m.chain.QuorumParams(t)
	maxCacheSize := params.ActiveQuorumCount + 1
	unbounded := count <= 0

	scanStart := start
	scanCount := count

	result, cached := cache.Get(start.Hash)
	if cached {
		m.metrics.ScanCacheHit(params.Name)
		if !unbounded {
			if len(result) == count {
				return result, nil
			}
			if len(result) > count {
				return result[:count], nil
			}
		}
		// cached subset: scan for the remainder below the oldest cached entry;
		// clone so appending cannot clobber the cached window
		if len(result) > 0 {
			scanCount -= len(result)
			scanStart = result[len(result)-1].Anchor.Parent
			result = append([]*Quorum(nil), result...)
		}
	} else {
		m.metrics.ScanCacheMiss(params.Name)
		result = nil
		// scan at least a full cache window so the result is worth caching
		if !unbounded && scanCount < maxCacheSize {
			scanCount = maxCacheSize
		}
	}

	hashes, err := m.minedQuorumsBefore(t, scanStart, scanCount)
	if err != nil {
		return nil, fmt.Errorf("could not scan mined commitments: %w", err)
	}
	for _, quorumHash := range hashes {
		quorum, err := m.GetQuorum(t, quorumHash)
		if err != nil {
			return nil, fmt.Errorf("could not get quorum %v: %w", quorumHash, err)
		}
		if quorum == nil {
			continue
		}
		result = append(result, quorum)
	}

	if len(result) > 0 {
		window := result
		if len(window) > maxCacheSize {
			window = window[:maxCacheSize]
		}
		cache.Add(start.Hash, window)
	}

	if !unbounded && len(result) > count {
		result = result[:count]
	}
	return result, nil
}

// minedQuorumsBefore walks the mined-commitment height index backward from
// the given block and returns the anchor hashes of up to n commitments that
// were mined on the chain the block belongs to. A non-positive n means no
// limit.
func (m *Manager) minedQuorumsBefore(t llmq.QuorumType, start *llmq.BlockIndex, n int) ([]llmq.Identifier, error) {
	if start == nil {
		return nil, nil
	}

	var hashes []llmq.Identifier
	var innerErr error
	err := m.commitments.ForEachMinedDescending(t, start.Height, func(quorumHash llmq.Identifier, minedHeight uint32) bool {
		_, minedBlockHash, err := m.commitments.ByQuorumHash(t, quorumHash)
		if err != nil {
			innerErr = err
			return false
		}
		// skip commitments mined on a different branch
		ancestor := start.GetAncestor(minedHeight)
		if ancestor == nil || ancestor.Hash != minedBlockHash {
			return true
		}
		hashes = append(hashes, quorumHash)
		return n <= 0 || len(hashes) < n
	})
	if err != nil {
		return nil, err
	}
	if innerErr != nil {
		return nil, innerErr
	}
	return hashes, nil
}

// OnBlockTip is the hook run on every new best-chain tip. It refreshes the
// persistent quorum connections, prunes the request table and triggers data
// recovery. It is a no-op until initial sync has completed.
func (m *Manager) OnBlockTip(tip *llmq.BlockIndex) {
	if tip == nil || !m.sync.IsBlockchainSynced() {
		return
	}

	for _, t := range m.chain.QuorumTypes() {
		params, _ := m.chain.QuorumParams(t)
		m.ensureQuorumConnections(params, tip)
	}

	m.requests.sweep()

	if m.me.IsMasternode() && m.conf.DataRecoveryEnabled {
		m.triggerDataRecovery(tip)
	}
}

// ensureQuorumConnections maintains persistent connections to the quorums of
// one type within the retention window and tears down connections to quorums
// that fell out of it. The quorum of the DKG round currently in progress is
// always preserved, as its connections are needed before any commitment for
// it can exist.
func (m *Manager) ensureQuorumConnections(params llmq.QuorumParams, tip *llmq.BlockIndex) {
	lastQuorums, err := m.ScanQuorums(params.Type, tip, params.KeepOldConnections)
	if err != nil {
		m.log.Warn().Err(err).Str("quorum_type", params.Name).Msg("could not scan quorums for connections")
		return
	}

	stale := m.connections.QuorumConnections(params.Type)

	curDKGHeight := tip.Height - tip.Height%params.DKGInterval
	if curDKG := tip.GetAncestor(curDKGHeight); curDKG != nil {
		delete(stale, curDKG.Hash)
	}

	myProTxHash := m.me.NodeID()
	for _, quorum := range lastQuorums {
		keep := m.connections.MaintainQuorumConnections(params.Type, quorum.Anchor, myProTxHash)
		if keep || m.conf.WatchQuorums {
			delete(stale, quorum.Anchor.Hash)
		}
	}

	for quorumHash := range stale {
		m.connections.RemoveQuorumConnections(params.Type, quorumHash)
	}
}

// triggerDataRecovery starts a recovery task for every quorum in the
// retention window that is missing material this node should hold: the
// verification vector for members (and vvec-sync watchers), the secret key
// share for members.
func (m *Manager) triggerDataRecovery(tip *llmq.BlockIndex) {
	myProTxHash := m.me.NodeID()

	for _, t := range m.chain.QuorumTypes() {
		params, _ := m.chain.QuorumParams(t)

		quorums, err := m.ScanQuorums(t, tip, params.KeepOldConnections)
		if err != nil {
			m.log.Warn().Err(err).Str("quorum_type", params.Name).Msg("could not scan quorums for recovery")
			continue
		}

		syncMode, syncEnabled := m.conf.VvecSync[t]

		typeMember := false
		for _, quorum := range quorums {
			if quorum.IsValidMember(myProTxHash) {
				typeMember = true
				break
			}
		}

		for _, quorum := range quorums {
			if quorum.RecoveryRunning() {
				continue
			}

			member := quorum.IsValidMember(myProTxHash)
			syncVvec := syncEnabled &&
				(syncMode == VvecSyncAlways || (syncMode == VvecSyncOnlyIfTypeMember && typeMember))

			var dataMask uint16
			if (member || syncVvec) && !quorum.HasVerificationVector() {
				dataMask |= messages.QuorumVerificationVector
			}
			if member && !quorum.HasSecretKeyShare() {
				dataMask |= messages.EncryptedContributions
			}
			if dataMask == 0 {
				continue
			}

			m.startDataRecovery(quorum, tip, dataMask)
		}
	}
}

// RequestQuorumData sends a data request to the given peer, respecting the
// single-outstanding-request rule per peer.
func (m *Manager) RequestQuorumData(peer network.PeerInfo, t llmq.QuorumType, quorumHash llmq.Identifier, dataMask uint16, proTxHash llmq.Identifier) error {
	if peer.ProtocolVersion < dataRequestProtocolVersion {
		return fmt.Errorf("peer protocol version %d too low", peer.ProtocolVersion)
	}
	if !peer.IsVerifiedMasternode() && !peer.QuorumWatcher {
		return fmt.Errorf("peer is neither a verified masternode nor a quorum watcher")
	}

	request := &messages.QuorumDataRequest{
		QuorumType: t,
		QuorumHash: quorumHash,
		DataMask:   dataMask,
		ProTxHash:  proTxHash,
	}

	if !m.requests.add(peer.VerifiedProTxHash, true, request) {
		return fmt.Errorf("request to peer %v already pending", peer.VerifiedProTxHash)
	}

	err := m.sender.SendRequest(peer.NodeID, request)
	if err != nil {
		m.requests.remove(peer.VerifiedProTxHash, true)
		return fmt.Errorf("could not send data request: %w", err)
	}

	m.log.Debug().
		Hex("peer", peer.VerifiedProTxHash[:]).
		Hex("quorum_hash", quorumHash[:]).
		Uint16("data_mask", dataMask).
		Msg("quorum data requested")

	return nil
}

// HandleDataRequest serves an incoming data request. Rule violations of the
// request envelope are answered with peer scoring and no response; anything
// past that is always answered in-band, with an error code if the requested
// material is unavailable.
func (m *Manager) HandleDataRequest(peer network.PeerInfo, request *messages.QuorumDataRequest) {
	if !m.me.IsMasternode() && !m.conf.WatchQuorums {
		m.refuse(peer, 10, "not a masternode nor watching")
		return
	}
	if !peer.IsVerifiedMasternode() && !peer.QuorumWatcher {
		m.refuse(peer, 10, "not a verified masternode or a watcher connection")
		return
	}
	if request.DataMask == 0 || request.DataMask&^dataMaskAll != 0 {
		m.refuse(peer, 25, "invalid data mask")
		return
	}
	if !m.requests.add(peer.VerifiedProTxHash, false, request) {
		m.refuse(peer, 25, "request limit exceeded")
		return
	}

	response := &messages.QuorumDataResponse{
		QuorumType: request.QuorumType,
		QuorumHash: request.QuorumHash,
		DataMask:   request.DataMask,
		ProTxHash:  request.ProTxHash,
		Error:      messages.QuorumDataErrorNone,
	}

	response.Error = m.fillDataResponse(request, response)

	err := m.sender.SendResponse(peer.NodeID, response)
	if err != nil {
		m.log.Warn().Err(err).Hex("peer", peer.NodeID[:]).Msg("could not send data response")
		return
	}
	m.metrics.DataRequestServed(response.Error.String())
}

// fillDataResponse resolves the requested material into the response and
// returns the error code to answer with.
func (m *Manager) fillDataResponse(request *messages.QuorumDataRequest, response *messages.QuorumDataResponse) messages.QuorumDataError {
	if !m.chain.HasQuorumType(request.QuorumType) {
		return messages.QuorumDataErrorTypeInvalid
	}
	if _, found := m.blocks.BlockIndex(request.QuorumHash); !found {
		return messages.QuorumDataErrorBlockNotFound
	}

	quorum, err := m.GetQuorum(request.QuorumType, request.QuorumHash)
	if err != nil {
		m.log.Warn().Err(err).Hex("quorum_hash", request.QuorumHash[:]).Msg("could not get quorum for data request")
		return messages.QuorumDataErrorQuorumNotFound
	}
	if quorum == nil {
		return messages.QuorumDataErrorQuorumNotFound
	}

	if request.DataMask&messages.QuorumVerificationVector != 0 {
		vvec := quorum.VerificationVector()
		if vvec == nil {
			return messages.QuorumDataErrorVerificationVectorMissing
		}
		response.VerificationVector = vvec
	}

	if request.DataMask&messages.EncryptedContributions != 0 {
		if quorum.MemberIndex(request.ProTxHash) == -1 {
			return messages.QuorumDataErrorNotAMember
		}
		contributions, err := m.dkg.EncryptedContributions(
			request.QuorumType, quorum.Anchor, quorum.Commitment.ValidMembers, request.ProTxHash)
		if err != nil {
			return messages.QuorumDataErrorContributionsMissing
		}
		response.Contributions = contributions
	}

	return messages.QuorumDataErrorNone
}

// HandleDataResponse absorbs an incoming data response. The response must
// match the exact outstanding request for the peer and is accepted exactly
// once; verification vectors are hash-checked and decrypted secret shares
// key-checked before being installed and persisted.
func (m *Manager) HandleDataResponse(peer network.PeerInfo, response *messages.QuorumDataResponse) {
	if !m.me.IsMasternode() && !m.conf.WatchQuorums {
		m.refuse(peer, 10, "not a masternode nor watching")
		return
	}
	if !peer.IsVerifiedMasternode() && !peer.QuorumWatcher {
		m.refuse(peer, 10, "not a verified masternode or a watcher connection")
		return
	}

	request, processed, found := m.requests.get(peer.VerifiedProTxHash, true)
	if !found {
		m.refuse(peer, 10, "not requested")
		return
	}
	if processed {
		m.refuse(peer, 10, "already received")
		return
	}
	if !request.Matches(response.Request()) {
		m.refuse(peer, 10, "not like requested")
		return
	}
	m.requests.markProcessed(peer.VerifiedProTxHash, true)

	if response.Error != messages.QuorumDataErrorNone {
		m.log.Debug().
			Hex("peer", peer.VerifiedProTxHash[:]).
			Str("error", response.Error.String()).
			Msg("quorum data request answered with error")
		return
	}

	quorum, err := m.GetQuorum(response.QuorumType, response.QuorumHash)
	if err != nil || quorum == nil {
		m.log.Warn().Err(err).Hex("quorum_hash", response.QuorumHash[:]).Msg("could not get quorum for data response")
		return
	}

	if response.DataMask&messages.QuorumVerificationVector != 0 {
		if response.VerificationVector == nil {
			m.refuse(peer, 10, "missing verification vector")
			return
		}
		err = quorum.SetVerificationVector(response.VerificationVector)
		if err != nil {
			m.refuse(peer, 10, "invalid verification vector")
			return
		}
	}

	if response.DataMask&messages.EncryptedContributions != 0 {
		memberIdx := quorum.MemberIndex(m.me.NodeID())
		switch {
		case !quorum.HasVerificationVector():
			// we asked for contributions we cannot check yet, the peer is
			// not at fault
			m.log.Debug().
				Hex("quorum_hash", response.QuorumHash[:]).
				Msg("no verification vector to check contributions against")
		case memberIdx == -1:
			m.log.Debug().
				Hex("quorum_hash", response.QuorumHash[:]).
				Msg("not a member of the quorum, dropping contributions")
		default:
			err = m.absorbContributions(quorum, memberIdx, response.Contributions)
			if err != nil {
				m.refuse(peer, 10, fmt.Sprintf("invalid encrypted contributions: %s", err))
				return
			}
		}
	}

	err = m.persistQuorumData(quorum)
	if err != nil {
		m.log.Error().Err(err).Hex("quorum_hash", response.QuorumHash[:]).Msg("could not persist recovered quorum data")
	}
}

// absorbContributions decrypts the per-member contributions with the local
// operator key, aggregates them into the candidate secret key share and
// installs it if it matches this node's public key share. The caller has
// already established that this node is the member at memberIdx and that the
// verification vector is installed; any remaining failure is attributable to
// the response.
func (m *Manager) absorbContributions(quorum *Quorum, memberIdx int, contributions []*bls.EncryptedShare) error {
	if len(contributions) != quorum.Commitment.CountValidMembers() {
		return fmt.Errorf("expected %d contributions, got %d",
			quorum.Commitment.CountValidMembers(), len(contributions))
	}

	operatorKey := m.me.OperatorKey()
	shares := make([]*bls.SecretKey, 0, len(contributions))
	for i, contribution := range contributions {
		share, err := contribution.Decrypt(operatorKey)
		if err != nil {
			return fmt.Errorf("could not decrypt contribution %d: %w", i, err)
		}
		shares = append(shares, share)
	}

	share, err := bls.AggregateSecretKeys(shares)
	if err != nil {
		return fmt.Errorf("could not aggregate secret key shares: %w", err)
	}
	err = quorum.SetSecretKeyShare(share, memberIdx)
	if err != nil {
		return fmt.Errorf("aggregated share rejected: %w", err)
	}
	return nil
}

// persistQuorumData writes the quorum's current cryptographic material to
// durable storage. Both writes are always attempted; a failure on one must
// not prevent the other from landing.
func (m *Manager) persistQuorumData(quorum *Quorum) error {
	quorumKey := quorum.Key()

	var result *multierror.Error
	if vvec := quorum.VerificationVector(); vvec != nil {
		err := m.quorumData.StoreVerificationVector(quorumKey, vvec)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not persist verification vector: %w", err))
		}
	}
	if share := quorum.SecretKeyShare(); share != nil {
		err := m.quorumData.StoreSecretShare(quorumKey, share)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not persist secret key share: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// refuse applies a misbehavior score to a peer and counts the refusal.
func (m *Manager) refuse(peer network.PeerInfo, score int, reason string) {
	m.connections.ReportMisbehavior(peer.NodeID, score, reason)
	m.metrics.DataRequestRefused(reason)
}

func (m *Manager) typeName(t llmq.QuorumType) string {
	params, ok := m.chain.QuorumParams(t)
	if !ok {
		return fmt.Sprintf("llmq_%d", t)
	}
	return params.Name
}
