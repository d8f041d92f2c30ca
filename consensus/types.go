// Package consensus implements the HotStuff-style pipelined BFT state
// machine: propose, vote, aggregate, and 3-chain commit, with a
// multiplicative-backoff view-change timer.
package consensus

import (
	"time"

	"github.com/bizra/consensus/block"
	"github.com/bizra/consensus/ids"
)

// Phase is a proposal's position in the pipeline.
type Phase int

const (
	PhasePrepare Phase = iota
	PhasePreCommit
	PhaseCommit
	PhaseDecide
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhasePreCommit:
		return "pre-commit"
	case PhaseCommit:
		return "commit"
	case PhaseDecide:
		return "decide"
	default:
		return "unknown"
	}
}

// Vote is a single replica's signature over a proposed block.
type Vote struct {
	BlockHash block.Hash
	View      uint64
	VoterID   ids.ID
	Signature []byte
}

// ProposalState tracks a pending proposal's accumulated votes as they
// arrive, keyed by voter so a second vote from the same replica is never
// double-counted: an identical re-delivery is ignored and a conflicting one
// is rejected as equivocation (see OnVote in statemachine.go).
type ProposalState struct {
	Block     *block.Block
	Votes     map[ids.ID]Vote
	Phase     Phase
	ArrivedAt time.Time
}

func newProposalState(b *block.Block, arrivedAt time.Time) *ProposalState {
	return &ProposalState{
		Block:     b,
		Votes:     make(map[ids.ID]Vote),
		Phase:     PhasePrepare,
		ArrivedAt: arrivedAt,
	}
}

// NewViewMessage is broadcast by a replica whose view-change timer fired.
type NewViewMessage struct {
	NewView   uint64
	HighestQC block.QC
}
