package consensus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bizra/consensus/block"
	"github.com/bizra/consensus/crypto"
	"github.com/bizra/consensus/ids"
	"github.com/bizra/consensus/log"
	"github.com/bizra/consensus/validators"
)

// testValidator bundles everything a harness test needs to act as one
// replica in a simulated quorum without running a second StateMachine.
type testValidator struct {
	id   ids.ID
	keys *crypto.KeyPair
}

func genesisBlock(t *testing.T) *block.Block {
	t.Helper()
	g := &block.Block{ParentHash: ids.Empty, Height: 0}
	g.Hash = g.ComputeHash()
	return g
}

// newHarness wires a 4-validator active set (quorum size 3) around a fresh
// graph seeded with genesis, and returns a StateMachine for validators[0]
// alongside the full validator slice so tests can sign votes on behalf of
// the others without standing up their own state machines.
func newHarness(t *testing.T, timeout, maxTimeout time.Duration) (*StateMachine, []testValidator, *block.Graph) {
	t.Helper()

	vs := make([]testValidator, 4)
	registry := validators.New(validators.DefaultConfig())
	for i := range vs {
		kp, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		id := ids.ID(crypto.Hash([]byte(fmt.Sprintf("validator-%d", i))))
		vs[i] = testValidator{id: id, keys: kp}

		var pk [32]byte
		copy(pk[:], kp.Public)
		rec := validators.NewPending(id, pk, fmt.Sprintf("127.0.0.1:900%d", i), 0, time.Now())
		rec.Status = validators.Active
		rec.PoIWeight = 1000
		require.NoError(t, registry.Register(rec))
	}

	genesis := genesisBlock(t)
	graph, err := block.New(genesis, 4000, 6667)
	require.NoError(t, err)
	// Genesis starts already committed but not Finalized; the 3-chain rule's
	// Commit call requires Finalized, so mark it so directly rather than
	// standing up the attestation-weight pipeline in every test.
	_, err = graph.UpdateWeight(genesis.Hash, 4000)
	require.NoError(t, err)

	activeSet := make([]ids.ID, len(vs))
	for i, v := range vs {
		activeSet[i] = v.id
	}

	cfg := Config{
		ActiveSet:            activeSet,
		QuorumSize:           3,
		ViewChangeTimeout:    timeout,
		ViewChangeMaxTimeout: maxTimeout,
	}
	sm := New(vs[0].id, vs[0].keys, graph, registry, registry, log.NewNop(), nil, cfg)
	return sm, vs, graph
}

// leaderFor returns the harness validator whose ID is the deterministic
// leader of view, and its index.
func leaderFor(vs []testValidator, activeSet []ids.ID, view uint64) (testValidator, int) {
	id := activeSet[view%uint64(len(activeSet))]
	for i, v := range vs {
		if v.id == id {
			return v, i
		}
	}
	panic("leader not found among harness validators")
}

// castVotes signs b's hash at view on behalf of every validator in voters
// except skip, and delivers each through sm.OnVote.
func castVotes(t *testing.T, sm *StateMachine, vs []testValidator, voters []int, view uint64, blockHash block.Hash) {
	t.Helper()
	ctx := context.Background()
	for _, idx := range voters {
		v := vs[idx]
		sig := crypto.Sign(v.keys.Private, blockHash.Bytes())
		err := sm.OnVote(ctx, Vote{BlockHash: blockHash, View: view, VoterID: v.id, Signature: sig})
		require.NoError(t, err)
	}
}

func TestProposeRejectsNonLeader(t *testing.T) {
	sm, _, _ := newHarness(t, time.Hour, time.Hour)
	// sm is validators[0]; the leader of view 0 is whichever validator
	// sorts first into activeSet[0], which newHarness always sets to
	// validators[0]'s own ID, so force a non-leader view to exercise the
	// rejection path instead.
	sm.mu.Lock()
	sm.view = 1
	sm.mu.Unlock()
	if sm.Leader(1) == sm.localID {
		t.Skip("harness assigned the local replica leadership of view 1 too")
	}
	_, err := sm.Propose(context.Background(), [][]byte{[]byte("tx")})
	require.ErrorIs(t, err, ErrNotLeader)
}

func TestProposeVoteQuorumFormsQC(t *testing.T) {
	sm, vs, graph := newHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	require.Equal(t, vs[0].id, sm.Leader(0))

	b1, err := sm.Propose(ctx, [][]byte{[]byte("tx-1")})
	require.NoError(t, err)
	require.Equal(t, uint64(1), b1.Height)

	// The proposer's own vote arrives via OnProposal's loopback.
	selfVote, err := sm.OnProposal(ctx, b1)
	require.NoError(t, err)
	require.NoError(t, sm.OnVote(ctx, *selfVote))

	castVotes(t, sm, vs, []int{1, 2}, 0, b1.Hash)

	qc := graph.HighestQC()
	require.Equal(t, b1.Hash, qc.BlockHash)
	require.Equal(t, uint64(0), qc.View)
	require.Len(t, qc.VoterIDs, 3)
	require.Equal(t, uint64(1), sm.View(), "forming the view-0 QC must advance the replica to view 1")
}

// TestThreeChainCommitsOldestBlock drives three consecutive rounds (each
// proposed by that view's deterministic leader, voted on by a quorum of
// three validators including the local replica) and asserts that the first
// block is committed once the third round's QC completes its 3-chain.
func TestThreeChainCommitsOldestBlock(t *testing.T) {
	sm, vs, graph := newHarness(t, time.Hour, time.Hour)
	ctx := context.Background()
	activeSet := append([]ids.ID(nil), sm.activeSet...)

	var blocks []*block.Block

	for round := uint64(0); round < 3; round++ {
		leader, leaderIdx := leaderFor(vs, activeSet, round)

		var b *block.Block
		var err error
		if leader.id == sm.localID {
			b, err = sm.Propose(ctx, [][]byte{[]byte(fmt.Sprintf("tx-round-%d", round))})
			require.NoError(t, err)
		} else {
			parent := graph.CommittedHead()
			if len(blocks) > 0 {
				parent = blocks[len(blocks)-1].Hash
			}
			parentBlock, ok := graph.GetBlock(parent)
			require.True(t, ok)
			highestQC := graph.HighestQC()
			b = &block.Block{
				ParentHash:   parentBlock.Hash,
				Height:       parentBlock.Height + 1,
				ProposerID:   leader.id,
				TimestampMS:  time.Now().UnixMilli(),
				ParentQC:     highestQC,
				Transactions: [][]byte{[]byte(fmt.Sprintf("tx-round-%d", round))},
			}
			b.Hash = b.ComputeHash()
			b.ProposerSignature = crypto.Sign(leader.keys.Private, b.Hash.Bytes())
		}
		blocks = append(blocks, b)

		vote, err := sm.OnProposal(ctx, b)
		require.NoError(t, err)

		// The 3-chain rule only commits a block the graph already reports
		// as Finalized; stand in for the attestation-weight pipeline by
		// crossing the threshold directly before the quorum below drives
		// tryCommit.
		_, err = graph.UpdateWeight(b.Hash, 4000)
		require.NoError(t, err)

		require.NoError(t, sm.OnVote(ctx, *vote))

		others := make([]int, 0, 3)
		for i := range vs {
			if i == leaderIdx {
				continue
			}
			others = append(others, i)
		}
		// Two more votes, excluding whichever index is the local replica
		// (already counted via the OnProposal loopback above).
		cast := 0
		for _, idx := range others {
			if vs[idx].id == sm.localID {
				continue
			}
			if cast == 2 {
				break
			}
			castVotes(t, sm, vs, []int{idx}, round, b.Hash)
			cast++
		}
	}

	require.True(t, graph.IsFinalized(blocks[0].Hash) || graph.CommittedHead() == blocks[0].Hash,
		"first block must be committed once the third round's QC completes the 3-chain")
	require.Equal(t, blocks[0].Hash, graph.CommittedHead())
}

func TestOnVoteDetectsEquivocation(t *testing.T) {
	sm, vs, _ := newHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	b1, err := sm.Propose(ctx, [][]byte{[]byte("tx-1")})
	require.NoError(t, err)
	selfVote, err := sm.OnProposal(ctx, b1)
	require.NoError(t, err)
	require.NoError(t, sm.OnVote(ctx, *selfVote))

	// Equivocation is detected within a single proposal's vote set: the
	// same voter casting two votes for the same block hash but claiming
	// different views.
	voter := vs[1]
	sig := crypto.Sign(voter.keys.Private, b1.Hash.Bytes())
	require.NoError(t, sm.OnVote(ctx, Vote{BlockHash: b1.Hash, View: 0, VoterID: voter.id, Signature: sig}))

	err = sm.OnVote(ctx, Vote{BlockHash: b1.Hash, View: 1, VoterID: voter.id, Signature: sig})
	require.ErrorIs(t, err, ErrConflictingVote)
}

func TestOnVoteRejectsUnknownVoter(t *testing.T) {
	sm, _, _ := newHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	b1, err := sm.Propose(ctx, [][]byte{[]byte("tx-1")})
	require.NoError(t, err)

	stranger, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	strangerID := ids.ID(crypto.Hash([]byte("stranger")))
	sig := crypto.Sign(stranger.Private, b1.Hash.Bytes())

	err = sm.OnVote(ctx, Vote{BlockHash: b1.Hash, View: 0, VoterID: strangerID, Signature: sig})
	require.ErrorIs(t, err, ErrUnknownVoter)
}

func TestViewTimeoutAdvancesViewAndBroadcasts(t *testing.T) {
	sm, _, _ := newHarness(t, 20*time.Millisecond, 200*time.Millisecond)
	sm.Start()

	select {
	case msg := <-sm.NewViews():
		require.Equal(t, uint64(1), msg.NewView)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for view-change broadcast")
	}
	require.Equal(t, uint64(1), sm.View())
}

func TestViewTimeoutBackoffGrows(t *testing.T) {
	sm, _, _ := newHarness(t, 10*time.Millisecond, 100*time.Millisecond)
	initial := sm.timer.CurrentTimeout()
	sm.Start()

	select {
	case <-sm.NewViews():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first view-change broadcast")
	}

	require.Greater(t, sm.timer.CurrentTimeout(), initial)
}

func TestOnNewViewAdoptsHigherView(t *testing.T) {
	sm, vs, _ := newHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	msg := NewViewMessage{
		NewView:   5,
		HighestQC: block.QC{BlockHash: ids.Empty, View: 4, VoterIDs: []ids.ID{vs[0].id}},
	}
	require.NoError(t, sm.OnNewView(ctx, msg))
	require.Equal(t, uint64(5), sm.View())
}

func TestLeaderRotatesDeterministically(t *testing.T) {
	sm, _, _ := newHarness(t, time.Hour, time.Hour)
	first := sm.Leader(0)
	second := sm.Leader(1)
	require.NotEqual(t, first, second, "a 4-validator active set must not repeat the same leader on consecutive views")
	require.Equal(t, first, sm.Leader(4), "leader rotation must be periodic with the active set's length")
}
