package consensus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bizra/consensus/block"
	"github.com/bizra/consensus/crypto"
	"github.com/bizra/consensus/ids"
	"github.com/bizra/consensus/log"
	"github.com/bizra/consensus/metrics"
	"github.com/bizra/consensus/slashing"
	"github.com/bizra/consensus/validators"
)

const outboxBuffer = 100

// Config parameterizes a StateMachine. Quorum size and the initial active
// set are owned by whatever assembles the machine (cmd/node, in this
// core) since they derive from a registry snapshot taken at an epoch
// boundary — the state machine itself never reads the registry's full
// active set directly, only validator-by-validator for pubkey lookups.
type Config struct {
	ActiveSet            []ids.ID
	QuorumSize           int
	ViewChangeTimeout    time.Duration
	ViewChangeMaxTimeout time.Duration
	// ViewChangeBackoff is the multiplicative growth factor applied on
	// each successive timeout; values <= 1.0 fall back to
	// DefaultBackoffFactor.
	ViewChangeBackoff float64
	// BatchVerifyEnabled fans quorum-certificate signature checks out
	// across crypto.BatchVerify's worker pool once a vote set reaches
	// crypto.BatchVerifyThreshold, instead of verifying inline.
	BatchVerifyEnabled bool
}

// StateMachine is the HotStuff pipelined BFT core for one replica. Its
// public operations are invoked from multiple task contexts (network
// inbox, the view-change timer, the local API) so the pending-proposals
// table and view state are guarded by a single mutex with short critical
// sections; the block graph and validator registry carry their own locks.
type StateMachine struct {
	mu sync.Mutex

	localID ids.ID
	keys    *crypto.KeyPair

	graph     *block.Graph
	registry  *validators.Registry
	slashSink slashing.Sink
	logger    log.Logger
	metrics   *metrics.ConsensusMetrics

	view               uint64
	activeSet          []ids.ID
	quorumSize         int
	pending            map[block.Hash]*ProposalState
	lastVoteView       uint64
	lastVoteHash       block.Hash
	viewStartedAt      time.Time
	batchVerifyEnabled bool

	timer *ViewTimer

	proposalOut chan *block.Block
	voteOut     chan Vote
	newViewOut  chan NewViewMessage
}

// New constructs a StateMachine for localID, wired to graph, registry, and
// slashSink. The returned machine's view-change timer is not armed until
// Start is called.
func New(
	localID ids.ID,
	keys *crypto.KeyPair,
	graph *block.Graph,
	registry *validators.Registry,
	slashSink slashing.Sink,
	logger log.Logger,
	metrics *metrics.ConsensusMetrics,
	cfg Config,
) *StateMachine {
	if logger == nil {
		logger = log.NewNop()
	}

	sm := &StateMachine{
		localID:    localID,
		keys:       keys,
		graph:      graph,
		registry:   registry,
		slashSink:  slashSink,
		logger:     logger.With(zap.String("component", "consensus")),
		metrics:    metrics,
		activeSet:          append([]ids.ID(nil), cfg.ActiveSet...),
		quorumSize:         cfg.QuorumSize,
		pending:            make(map[block.Hash]*ProposalState),
		batchVerifyEnabled: cfg.BatchVerifyEnabled,

		proposalOut: make(chan *block.Block, outboxBuffer),
		voteOut:     make(chan Vote, outboxBuffer),
		newViewOut:  make(chan NewViewMessage, outboxBuffer),
	}
	sm.timer = NewViewTimer(cfg.ViewChangeTimeout, cfg.ViewChangeMaxTimeout, cfg.ViewChangeBackoff, sm.onViewTimeout)
	return sm
}

// Start arms the view-change timer for the current view. Call once after
// construction.
func (sm *StateMachine) Start() {
	sm.mu.Lock()
	sm.viewStartedAt = time.Now()
	view := sm.view
	sm.mu.Unlock()
	sm.timer.Arm(view)
}

// Proposals, Votes, and NewViews are the outbound channels the network
// adapter drains to broadcast this replica's messages. Fire-and-forget:
// the state machine never awaits delivery.
func (sm *StateMachine) Proposals() <-chan *block.Block  { return sm.proposalOut }
func (sm *StateMachine) Votes() <-chan Vote              { return sm.voteOut }
func (sm *StateMachine) NewViews() <-chan NewViewMessage { return sm.newViewOut }

// View returns the replica's current view number.
func (sm *StateMachine) View() uint64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.view
}

// SetActiveSet replaces the active-set snapshot used for leader rotation
// and quorum sizing, for use at an epoch boundary.
func (sm *StateMachine) SetActiveSet(activeSet []ids.ID, quorumSize int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.activeSet = append([]ids.ID(nil), activeSet...)
	sm.quorumSize = quorumSize
}

// Leader returns the deterministic leader for view under the current
// active-set snapshot.
func (sm *StateMachine) Leader(view uint64) ids.ID {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.leaderLocked(view)
}

func (sm *StateMachine) leaderLocked(view uint64) ids.ID {
	if len(sm.activeSet) == 0 {
		return ids.Empty
	}
	return sm.activeSet[view%uint64(len(sm.activeSet))]
}

func (sm *StateMachine) isActiveMemberLocked(id ids.ID) bool {
	for _, m := range sm.activeSet {
		if m == id {
			return true
		}
	}
	return false
}

// Propose builds and signs a new block for the current view, provided the
// local replica is its leader. The block's parent is the highest observed
// QC's block; on success it is inserted into the graph and emitted on
// Proposals().
func (sm *StateMachine) Propose(ctx context.Context, txs [][]byte) (*block.Block, error) {
	sm.mu.Lock()
	view := sm.view
	if sm.leaderLocked(view) != sm.localID {
		sm.mu.Unlock()
		return nil, ErrNotLeader
	}
	sm.mu.Unlock()

	highestQC := sm.graph.HighestQC()
	parent, ok := sm.graph.GetBlock(highestQC.BlockHash)
	if !ok {
		return nil, ErrParentMissing
	}

	b := &block.Block{
		ParentHash:   parent.Hash,
		Height:       parent.Height + 1,
		ProposerID:   sm.localID,
		TimestampMS:  time.Now().UnixMilli(),
		ParentQC:     highestQC,
		Transactions: txs,
	}
	b.Hash = b.ComputeHash()
	b.ProposerSignature = crypto.Sign(sm.keys.Private, b.Hash.Bytes())

	if err := sm.graph.Add(b); err != nil {
		return nil, err
	}

	sm.logger.Info("proposed block",
		zap.Uint64("view", view), zap.Uint64("height", b.Height), zap.String("hash", b.Hash.String()))
	if sm.metrics != nil {
		sm.metrics.ProposalsSent.Inc()
	}

	select {
	case sm.proposalOut <- b:
	default:
		sm.logger.Warn("proposal outbox full, dropping broadcast", zap.String("hash", b.Hash.String()))
	}

	return b, nil
}

// OnProposal validates an inbound proposal and, if acceptable under the
// HotStuff safety rule, casts and returns this replica's vote. Semantic
// failures (bad signature, broken safety rule, structural defects) are
// returned as errors for the caller to log with evidence; they never
// panic or corrupt state.
func (sm *StateMachine) OnProposal(ctx context.Context, b *block.Block) (*Vote, error) {
	if len(b.Transactions) == 0 {
		return nil, fmt.Errorf("%w: empty transaction set", ErrInvalidBlock)
	}
	if b.Height == 0 {
		return nil, fmt.Errorf("%w: genesis cannot be proposed", ErrInvalidBlock)
	}

	sm.mu.Lock()
	if !sm.isActiveMemberLocked(b.ProposerID) {
		sm.mu.Unlock()
		return nil, ErrUnknownVoter
	}
	sm.mu.Unlock()

	rec, ok := sm.registry.Get(b.ProposerID)
	if !ok {
		return nil, ErrUnknownVoter
	}
	proposerPub := ed25519PublicKey(rec.PKEd25519)
	candidateHash := b.ComputeHash()
	if !crypto.Verify(proposerPub, candidateHash.Bytes(), b.ProposerSignature) {
		return nil, ErrInvalidSignature
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.view <= sm.lastVoteView && !sm.lastVoteHash.IsEmpty() {
		if !sm.graph.IsDescendant(candidateHash, sm.lastVoteHash) {
			return nil, ErrConflictingVote
		}
	}

	if err := sm.graph.Add(b); err != nil && err != block.ErrDuplicate {
		return nil, err
	}

	sig := crypto.Sign(sm.keys.Private, candidateHash.Bytes())
	vote := Vote{
		BlockHash: candidateHash,
		View:      sm.view,
		VoterID:   sm.localID,
		Signature: sig,
	}
	sm.lastVoteView = sm.view
	sm.lastVoteHash = candidateHash

	sm.timer.ResetBackoff()

	if sm.metrics != nil {
		sm.metrics.VotesCast.Inc()
	}

	select {
	case sm.voteOut <- vote:
	default:
		sm.logger.Warn("vote outbox full, dropping broadcast")
	}

	return &vote, nil
}

// OnVote ingests a vote from any replica (including this one, via the
// loopback of its own OnProposal), attempting aggregation into a QC and,
// if quorum is reached, committing under the 3-chain rule. Votes are
// tracked per block: a voter whose second vote for the same block names a
// different view is reported to the slashing sink as equivocation and the
// vote is rejected with ErrConflictingVote. Votes from one voter for two
// different blocks in the same view land in separate per-block vote sets
// and are not compared with each other.
func (sm *StateMachine) OnVote(ctx context.Context, v Vote) error {
	sm.mu.Lock()

	if !sm.isActiveMemberLocked(v.VoterID) {
		sm.mu.Unlock()
		return ErrUnknownVoter
	}

	ps, ok := sm.pending[v.BlockHash]
	if !ok {
		b, found := sm.graph.GetBlock(v.BlockHash)
		if !found {
			sm.mu.Unlock()
			return ErrParentMissing
		}
		ps = newProposalState(b, time.Now())
		sm.pending[v.BlockHash] = ps
	}

	if existing, seen := ps.Votes[v.VoterID]; seen {
		if existing.View == v.View && existing.BlockHash == v.BlockHash {
			sm.mu.Unlock()
			return nil // duplicate delivery of the same vote, not equivocation
		}
		sm.mu.Unlock()
		if sm.metrics != nil {
			sm.metrics.EquivocationsSeen.Inc()
		}
		_ = sm.slashSink.Apply(slashing.Evidence{
			ValidatorID: v.VoterID,
			Reason:      slashing.Equivocation,
			Detail:      fmt.Sprintf("conflicting votes at view %d for block %s", v.View, v.BlockHash),
		})
		return ErrConflictingVote
	}
	ps.Votes[v.VoterID] = v

	quorumSize := sm.quorumSize
	haveQuorum := countVotesForView(ps.Votes, v.View) >= quorumSize
	var votesForQC []Vote
	if haveQuorum {
		votesForQC = votesAtView(ps.Votes, v.View)
	}
	sm.mu.Unlock()

	if !haveQuorum {
		return nil
	}

	qc, err := sm.aggregate(votesForQC)
	if err != nil {
		return err
	}
	sm.graph.UpdateHighestQC(*qc)
	if sm.metrics != nil {
		sm.metrics.QuorumsFormed.Inc()
	}

	// Forming a QC for view v unlocks proposing at view v+1: each block
	// corresponds to exactly one view, so the next leader's view must be
	// strictly greater regardless of whether this QC also completes a
	// 3-chain commit below.
	sm.mu.Lock()
	if qc.View >= sm.view {
		sm.view = qc.View + 1
		sm.viewStartedAt = time.Now()
	}
	newView := sm.view
	sm.mu.Unlock()
	sm.timer.Arm(newView)

	return sm.tryCommit(ctx, *qc)
}

func countVotesForView(votes map[ids.ID]Vote, view uint64) int {
	n := 0
	for _, v := range votes {
		if v.View == view {
			n++
		}
	}
	return n
}

func votesAtView(votes map[ids.ID]Vote, view uint64) []Vote {
	out := make([]Vote, 0, len(votes))
	for _, v := range votes {
		if v.View == view {
			out = append(out, v)
		}
	}
	return out
}

// aggregate forms a QC from votes, which must all share one (block_hash,
// view) and come from distinct active-set members, each signature
// verified. Any replica may call this; it is not leader-privileged.
func (sm *StateMachine) aggregate(votes []Vote) (*block.QC, error) {
	if len(votes) < sm.quorumSize {
		return nil, ErrInsufficientVotes
	}

	blockHash := votes[0].BlockHash
	view := votes[0].View

	voterIDs := make([]ids.ID, 0, len(votes))
	sigMessages := make([]crypto.SignedMessage, 0, len(votes))
	seen := make(map[ids.ID]bool, len(votes))

	for _, v := range votes {
		if v.BlockHash != blockHash || v.View != view {
			return nil, ErrBrokenChain
		}
		if seen[v.VoterID] {
			continue
		}
		seen[v.VoterID] = true

		rec, ok := sm.registry.Get(v.VoterID)
		if !ok {
			return nil, ErrUnknownVoter
		}

		voterIDs = append(voterIDs, v.VoterID)
		sigMessages = append(sigMessages, crypto.SignedMessage{
			PublicKey: ed25519PublicKey(rec.PKEd25519),
			Message:   blockHash.Bytes(),
			Signature: v.Signature,
		})
	}

	if len(voterIDs) < sm.quorumSize {
		return nil, ErrInsufficientVotes
	}

	if !sm.verifyAll(sigMessages) {
		return nil, ErrInvalidSignature
	}

	sigs := make([][]byte, len(sigMessages))
	for i, m := range sigMessages {
		sigs[i] = m.Signature
	}

	return &block.QC{
		BlockHash:  blockHash,
		View:       view,
		VoterIDs:   voterIDs,
		Signatures: sigs,
	}, nil
}

// verifyAll checks every signed message's signature, fanning the work out
// across crypto.BatchVerify's worker pool once batchVerifyEnabled is set
// and the set is large enough to be worth parallelizing; smaller quorums
// verify inline either way.
func (sm *StateMachine) verifyAll(messages []crypto.SignedMessage) bool {
	if !sm.batchVerifyEnabled || len(messages) < crypto.BatchVerifyThreshold {
		for _, m := range messages {
			if !crypto.Verify(m.PublicKey, m.Message, m.Signature) {
				return false
			}
		}
		return true
	}

	results := crypto.BatchVerify(context.Background(), messages)
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

// tryCommit checks the 3-chain rule against qc's block and, if three
// consecutive-view, consecutive-height blocks are found, commits the
// oldest (B0). The view itself is advanced by OnVote before this runs.
func (sm *StateMachine) tryCommit(ctx context.Context, qc block.QC) error {
	b2, b1, b0, err := sm.graph.ThreeChain(qc.BlockHash)
	if err != nil {
		return nil // chain not yet deep enough; not an error condition
	}
	if b0.Height+1 != b1.Height || b1.Height+1 != b2.Height {
		return ErrBrokenChain
	}

	// A block's own view is the view of the QC that certifies it, which is
	// embedded as the parent_qc of the block built on top of it — B2's own
	// view is the just-aggregated qc itself. Genesis was never proposed in
	// any view, so when it is the chain's root (b0) only height
	// consecutiveness, already checked above, applies.
	if !b0.IsGenesis() {
		viewB0 := b1.ParentQC.View
		viewB1 := b2.ParentQC.View
		viewB2 := qc.View
		if viewB0+1 != viewB1 || viewB1+1 != viewB2 {
			return ErrBrokenChain
		}
	}

	if err := sm.graph.Commit(b0.Hash); err != nil {
		return err
	}

	sm.mu.Lock()
	sm.deleteOldProposalsLocked(b0.Height)
	currentView := sm.view
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.BlocksCommitted.Inc()
		sm.metrics.CurrentView.Set(float64(currentView))
	}
	sm.logger.Info("committed block", zap.String("hash", b0.Hash.String()), zap.Uint64("height", b0.Height))

	return nil
}

func (sm *StateMachine) deleteOldProposalsLocked(committedHeight uint64) {
	for hash, ps := range sm.pending {
		if ps.Block.Height <= committedHeight {
			delete(sm.pending, hash)
		}
	}
}

// OnNewView processes an inbound NewView announcement, adopting its QC if
// higher than the locally observed highest QC and advancing the local
// view if new_view is ahead.
func (sm *StateMachine) OnNewView(ctx context.Context, msg NewViewMessage) error {
	sm.graph.UpdateHighestQC(msg.HighestQC)

	sm.mu.Lock()
	advanced := msg.NewView > sm.view
	if advanced {
		sm.view = msg.NewView
		sm.viewStartedAt = time.Now()
	}
	sm.mu.Unlock()
	if advanced {
		sm.timer.Arm(msg.NewView)
	}
	return nil
}

// onViewTimeout is the ViewTimer callback: it fires only when view is
// still current (see timer.go), advances to view+1, and broadcasts
// NewView with the highest observed QC.
func (sm *StateMachine) onViewTimeout(view uint64) {
	sm.mu.Lock()
	if sm.view != view {
		sm.mu.Unlock()
		return
	}
	sm.view = view + 1
	newView := sm.view
	sm.viewStartedAt = time.Now()
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.ViewChanges.Inc()
		sm.metrics.CurrentView.Set(float64(newView))
	}
	sm.logger.Warn("view timed out, advancing", zap.Uint64("old_view", view), zap.Uint64("new_view", newView))

	msg := NewViewMessage{NewView: newView, HighestQC: sm.graph.HighestQC()}
	select {
	case sm.newViewOut <- msg:
	default:
		sm.logger.Warn("new-view outbox full, dropping broadcast")
	}

	sm.timer.Arm(newView)
}

func ed25519PublicKey(raw [32]byte) []byte {
	out := make([]byte, 32)
	copy(out, raw[:])
	return out
}
