// Package api adapts the consensus core's internal packages — the block
// graph, the pipelined state machine, the validator registry, and the
// attestation engine — into the nine language-neutral operations a
// network transport (gRPC, JSON-RPC, or an in-process test harness) would
// otherwise have to assemble by hand.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/bizra/consensus/attestation"
	"github.com/bizra/consensus/block"
	"github.com/bizra/consensus/consensus"
	"github.com/bizra/consensus/crypto"
	"github.com/bizra/consensus/ids"
	"github.com/bizra/consensus/validators"
)

// Adapter is the single entry point wiring ingress (proposals, votes,
// new-view messages, attestations) to the underlying subsystems and
// exposing the read-only query surface. Every method here is safe to call
// concurrently: each subsystem owns its own locking, and Adapter itself
// holds no mutable state of its own.
type Adapter struct {
	graph     *block.Graph
	sm        *consensus.StateMachine
	registry  *validators.Registry
	attestEng *attestation.Engine
}

// New wires an Adapter around already-constructed subsystems. Callers
// assemble graph, sm, registry, and attestEng from config.Config at
// process start; Adapter never constructs them itself so tests can swap
// in fakes for any one subsystem.
func New(graph *block.Graph, sm *consensus.StateMachine, registry *validators.Registry, attestEng *attestation.Engine) *Adapter {
	return &Adapter{graph: graph, sm: sm, registry: registry, attestEng: attestEng}
}

// SubmitBlock ingests a proposed block, as submit_block. On success the
// local replica's vote has already been dispatched to the state machine's
// vote outbox; a proposal the safety rule refuses is returned as an error.
func (a *Adapter) SubmitBlock(ctx context.Context, b *block.Block) error {
	_, err := a.sm.OnProposal(ctx, b)
	return err
}

// SubmitVote ingests a single replica's vote, as submit_vote.
func (a *Adapter) SubmitVote(ctx context.Context, v consensus.Vote) error {
	return a.sm.OnVote(ctx, v)
}

// SubmitNewView ingests a view-change announcement, as submit_new_view.
func (a *Adapter) SubmitNewView(ctx context.Context, msg consensus.NewViewMessage) error {
	return a.sm.OnNewView(ctx, msg)
}

// AttestationResult is submit_attestation's return value.
type AttestationResult struct {
	Digest   crypto.Hash32
	Accepted bool
}

// SubmitAttestation validates and de-duplicates an attestation, as
// submit_attestation. A validation or replay failure is returned as an
// error with Accepted left false; it is never treated as a crash
// condition.
func (a *Adapter) SubmitAttestation(ctx context.Context, att *attestation.Attestation, now time.Time) (AttestationResult, error) {
	digest, err := a.attestEng.Submit(att, now)
	if err != nil {
		return AttestationResult{Accepted: false}, err
	}
	return AttestationResult{Digest: digest, Accepted: true}, nil
}

// IsFinalized reports hash's finalized flag, as is_finalized.
func (a *Adapter) IsFinalized(hash block.Hash) bool {
	return a.graph.IsFinalized(hash)
}

// GetBlock returns the block stored under hash, as get_block.
func (a *Adapter) GetBlock(hash block.Hash) (*block.Block, bool) {
	return a.graph.GetBlock(hash)
}

// FinalitySnapshot is finality_snapshot's return value.
type FinalitySnapshot struct {
	CommittedHead  block.Hash
	BlockCount     int
	FinalizedCount int
	ThresholdBPS   uint16
}

// FinalitySnapshot reports the graph's current committed head, retained
// and finalized block counts, and configured threshold, as
// finality_snapshot.
func (a *Adapter) FinalitySnapshot() FinalitySnapshot {
	return FinalitySnapshot{
		CommittedHead:  a.graph.CommittedHead(),
		BlockCount:     a.graph.BlockCount(),
		FinalizedCount: a.graph.FinalizedCount(),
		ThresholdBPS:   a.graph.ThresholdBPS(),
	}
}

// RegisterValidatorRequest is register_validator's input: the subset of a
// validators.Record a new joiner supplies, before the registry assigns
// lifecycle state.
type RegisterValidatorRequest struct {
	ValidatorID    ids.ID
	PKEd25519      [32]byte
	NetworkAddress string
}

// RegisterValidator enqueues a new Pending validator for churn-limited
// activation, as register_validator.
func (a *Adapter) RegisterValidator(req RegisterValidatorRequest, now time.Time) error {
	rec := validators.NewPending(req.ValidatorID, req.PKEd25519, req.NetworkAddress, a.registry.Epoch(), now)
	if err := a.registry.Register(rec); err != nil {
		return fmt.Errorf("api: register_validator: %w", err)
	}
	return nil
}

// ActiveValidatorSet returns a deterministically ordered snapshot of the
// active set, as active_validator_set. The epoch parameter is accepted
// for interface symmetry with the language-neutral surface; the registry
// only ever exposes its current snapshot, since historical active sets
// are not retained.
func (a *Adapter) ActiveValidatorSet(epoch uint64) []*validators.Record {
	activeIDs := a.registry.ActiveSet()
	out := make([]*validators.Record, 0, len(activeIDs))
	for _, id := range activeIDs {
		if rec, ok := a.registry.Get(id); ok {
			out = append(out, rec)
		}
	}
	return out
}
