// Package slashing defines the fault-kind -> penalty table consulted by the
// consensus state machine's evidence pipeline and applied by the validator
// registry.
package slashing

import "github.com/bizra/consensus/ids"

// Reason enumerates the fault kinds that can trigger a slash.
type Reason uint8

const (
	// Equivocation: two distinct votes from the same voter in the same view.
	Equivocation Reason = iota
	// FraudulentAttestation: a proof-of-impact attestation that failed
	// validation after being accepted into a block's evidence set.
	FraudulentAttestation
	// Censorship: provable refusal to reference valid finalized blocks.
	// The detection mechanism is out of scope for this core; only the
	// resulting evidence is consumed here.
	Censorship
	// KeyTheft: verified external evidence that a validator's signing key
	// was compromised.
	KeyTheft
)

func (r Reason) String() string {
	switch r {
	case Equivocation:
		return "Equivocation"
	case FraudulentAttestation:
		return "FraudulentAttestation"
	case Censorship:
		return "Censorship"
	case KeyTheft:
		return "KeyTheft"
	default:
		return "Unknown"
	}
}

// Penalty is the (weight-factor, bond-factor, reputation-penalty,
// quarantine-epochs) tuple a Reason triggers.
type Penalty struct {
	WeightFactor     float64
	BondFactor       float64
	ReputationPenalty uint64
	QuarantineEpochs uint64
}

// Table is the fixed fault -> penalty mapping.
var Table = map[Reason]Penalty{
	Equivocation:          {WeightFactor: 0.9, BondFactor: 1.0, ReputationPenalty: 5000, QuarantineEpochs: 4},
	FraudulentAttestation: {WeightFactor: 0.7, BondFactor: 0.5, ReputationPenalty: 3000, QuarantineEpochs: 2},
	Censorship:            {WeightFactor: 0.5, BondFactor: 0.3, ReputationPenalty: 2000, QuarantineEpochs: 2},
	KeyTheft:              {WeightFactor: 0.95, BondFactor: 0.1, ReputationPenalty: 500, QuarantineEpochs: 1},
}

// Evidence is a single slashable-fault report, produced by the consensus
// state machine's OnVote or by an external censorship detector, and
// consumed by a Sink (typically the validator registry).
type Evidence struct {
	ValidatorID ids.ID
	Reason      Reason
	// Detail is a short, human-readable description for logs; it never
	// embeds full message payloads to avoid amplifying malformed input.
	Detail string
}

// Sink accepts slashing evidence and applies the corresponding penalty.
// The validator registry implements this.
type Sink interface {
	Apply(evidence Evidence) error
}
