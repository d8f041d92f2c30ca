// Package validators implements the validator lifecycle state machine,
// churn-limited epoch rotation, liveness tracking, and the active-set
// snapshots the consensus state machine and block graph consult for
// weight and identity.
package validators

import (
	"fmt"
	"time"

	"github.com/bizra/consensus/ids"
	"github.com/bizra/consensus/utils/math"
)

// Default lifecycle constants; all are overridable via config.Config and
// threaded through Registry at construction time.
const (
	MinReputationScore        = 500   // starting reputation for a freshly-pending validator
	MinReputationForActivation = 500  // default; config.Config may raise this
	UnbondingDelayEpochs      = 2
	LivenessMissThreshold     = 64   // slots
	OfflineThreshold          = 1024 // slots
)

// Status is a validator's lifecycle state.
//
//	              submit Join
//	      ┌─────────────────────────┐
//	      │                         ▼
//	  (none)                    Pending ───activate──▶ Active
//	                                ▲                     │  │
//	                   quarantine   │                     │  └─ initiate exit
//	                      expiry    │                slash│        │
//	                                │                     ▼        ▼
//	                             Slashed ◀───────────────(+)   Exiting
//	                                                                │
//	                                                      complete exit
//	                                                                ▼
//	                                                             Exited
type Status uint8

const (
	Pending Status = iota
	Active
	Exiting
	Exited
	Slashed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Active:
		return "Active"
	case Exiting:
		return "Exiting"
	case Exited:
		return "Exited"
	case Slashed:
		return "Slashed"
	default:
		return "Unknown"
	}
}

// CanProduceBlocks reports whether a validator in this status may lead or vote.
func (s Status) CanProduceBlocks() bool {
	return s == Active || s == Exiting
}

// WeightCounts reports whether a validator in this status contributes to total_weight.
func (s Status) WeightCounts() bool {
	return s == Active || s == Exiting
}

// IsActiveSet reports whether a validator in this status belongs to the active set.
func (s Status) IsActiveSet() bool {
	return s == Active || s == Exiting
}

// Record is a single validator's full lifecycle and weighting state. The
// registry exclusively owns it after Register returns.
type Record struct {
	ValidatorID    ids.ID
	PKEd25519      [32]byte
	PKBLS          []byte // optional, 48 bytes when present; no aggregate-signature path consumes it (see DESIGN.md)
	NetworkAddress string

	EpochJoin uint64
	EpochExit *uint64

	Status Status

	PoIWeight  uint64
	RepScore   uint64
	StakeBond  uint64

	LastSeenSlot uint64
	UpdatedAt    int64 // unix seconds
}

// NewPending creates a validator record in Pending status with the minimum
// starting reputation and zero weight/bond.
func NewPending(validatorID ids.ID, pkEd25519 [32]byte, networkAddress string, epoch uint64, now time.Time) *Record {
	return &Record{
		ValidatorID:    validatorID,
		PKEd25519:      pkEd25519,
		NetworkAddress: networkAddress,
		EpochJoin:      epoch,
		Status:         Pending,
		RepScore:       MinReputationScore,
		UpdatedAt:      now.Unix(),
	}
}

// Activate transitions Pending -> Active. minRep is the registry's
// configured activation threshold (defaults to MinReputationForActivation).
func (r *Record) Activate(currentEpoch uint64, minRep uint64, now time.Time) error {
	if r.Status != Pending {
		return fmt.Errorf("%w: cannot activate validator in status %s", ErrWrongStatus, r.Status)
	}
	if r.RepScore < minRep {
		return fmt.Errorf("%w: %d < %d", ErrInsufficientRep, r.RepScore, minRep)
	}
	r.Status = Active
	r.EpochJoin = currentEpoch
	r.UpdatedAt = now.Unix()
	return nil
}

// InitiateExit transitions Active -> Exiting and schedules unbonding.
func (r *Record) InitiateExit(currentEpoch uint64, unbondingDelayEpochs uint64, now time.Time) error {
	if r.Status != Active {
		return fmt.Errorf("%w: cannot exit validator in status %s", ErrWrongStatus, r.Status)
	}
	exitEpoch := currentEpoch + unbondingDelayEpochs
	r.Status = Exiting
	r.EpochExit = &exitEpoch
	r.UpdatedAt = now.Unix()
	return nil
}

// CompleteExit transitions Exiting -> Exited once the unbonding period has elapsed.
func (r *Record) CompleteExit(currentEpoch uint64, now time.Time) error {
	if r.Status != Exiting {
		return fmt.Errorf("%w: cannot complete exit for validator in status %s", ErrWrongStatus, r.Status)
	}
	if r.EpochExit == nil {
		return ErrNoExitEpoch
	}
	if currentEpoch < *r.EpochExit {
		return fmt.Errorf("%w: current=%d exit=%d", ErrUnbondingIncomplete, currentEpoch, *r.EpochExit)
	}
	r.Status = Exited
	r.UpdatedAt = now.Unix()
	return nil
}

// Slash reduces weight, bond, and reputation by the given factors/penalty
// and forces the validator into Slashed status. All reductions saturate at
// zero. A validator already Slashed cannot be slashed again.
func (r *Record) Slash(weightSlashFactor, bondSlashFactor float64, repPenalty uint64, now time.Time) error {
	if r.Status == Slashed {
		return ErrAlreadySlashed
	}

	weightReduction := uint64(float64(r.PoIWeight) * weightSlashFactor)
	r.PoIWeight = math.SatSub64(r.PoIWeight, weightReduction)

	bondBurn := uint64(float64(r.StakeBond) * bondSlashFactor)
	r.StakeBond = math.SatSub64(r.StakeBond, bondBurn)

	r.RepScore = math.SatSub64(r.RepScore, repPenalty)

	r.Status = Slashed
	r.UpdatedAt = now.Unix()
	return nil
}

// MarkSeen advances LastSeenSlot if slot is newer, for liveness tracking.
func (r *Record) MarkSeen(slot uint64, now time.Time) {
	if slot > r.LastSeenSlot {
		r.LastSeenSlot = slot
		r.UpdatedAt = now.Unix()
	}
}

// IsOffline reports whether the gap since LastSeenSlot exceeds OfflineThreshold.
func (r *Record) IsOffline(currentSlot, offlineThreshold uint64) bool {
	if r.LastSeenSlot == 0 {
		return false
	}
	return math.SatSub64(currentSlot, r.LastSeenSlot) > offlineThreshold
}

// MissedLiveness reports whether the gap since LastSeenSlot is in
// (livenessMissThreshold, offlineThreshold].
func (r *Record) MissedLiveness(currentSlot, livenessMissThreshold, offlineThreshold uint64) bool {
	if r.LastSeenSlot == 0 {
		return false
	}
	missed := math.SatSub64(currentSlot, r.LastSeenSlot)
	return missed > livenessMissThreshold && missed <= offlineThreshold
}
