package attestation

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bizra/consensus/crypto"
)

// ValidationEpsilon bounds floating-point comparisons for the weights-sum
// and impact-score checks (rules 7 and 8).
const ValidationEpsilon = 1e-6

// MaxTimeWindow is the longest span permitted between time_window[0] and
// time_window[1] (rule 5).
const MaxTimeWindow = 30 * 24 * time.Hour

// ClockSkewTolerance is how far into the future time_window[1] may sit
// relative to now before it is rejected (rule 5). The original attestation
// format left this rule unimplemented ("simplified"); this core implements
// it in full against real RFC-3339 parsing rather than skipping it.
const ClockSkewTolerance = 5 * time.Minute

// Validate runs the ten exhaustive structural and semantic rules from the
// attestation spec against a, given the node's configured chain identity
// and the current wall-clock time. Nonce replay (rule 4's second clause) is
// not checked here — it requires access to the shared ReplayCache and is
// performed by Engine.Submit.
func Validate(a *Attestation, currentChainID, currentGenesisRoot string, now time.Time) error {
	// 1. Version check.
	if a.Version != Version {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidVersion, Version, a.Version)
	}

	// 2. Anchor validation.
	if a.Anchor.ChainID != currentChainID {
		return fmt.Errorf("%w: expected %s, got %s", ErrChainIDMismatch, currentChainID, a.Anchor.ChainID)
	}
	if a.Anchor.GenesisMerkleRoot != currentGenesisRoot {
		return ErrGenesisMismatch
	}

	// 3. Evidence validation.
	if len(a.Evidence.PackSHA256) != 64 {
		return fmt.Errorf("%w: must be 64 hex chars, got %d", ErrInvalidEvidence, len(a.Evidence.PackSHA256))
	}

	// 4. Nonce length (replay is checked by the caller via ReplayCache).
	if len(a.Nonce) < 32 {
		return fmt.Errorf("%w: must be at least 32 hex chars, got %d", ErrInvalidNonce, len(a.Nonce))
	}

	// 5. Time window validation.
	start, end, err := parseTimeWindow(a.TimeWindow)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeWindow, err)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end before start", ErrInvalidTimeWindow)
	}
	if end.Sub(start) > MaxTimeWindow {
		return fmt.Errorf("%w: exceeds 30-day maximum", ErrInvalidTimeWindow)
	}
	if end.After(now.Add(ClockSkewTolerance)) {
		return fmt.Errorf("%w: end is in the future beyond clock-skew tolerance", ErrInvalidTimeWindow)
	}

	// 6. Dimensions range check (before score calculation).
	for dim, v := range a.Measurement.Dimensions {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%w: %q = %.6f", ErrDimensionOutOfRange, dim, v)
		}
	}

	// 7. Weights sum check.
	var weightsSum float64
	for _, w := range a.Measurement.Weights {
		weightsSum += w
	}
	if math.Abs(weightsSum-1.0) > ValidationEpsilon {
		return fmt.Errorf("%w: got %.6f", ErrWeightsSumInvalid, weightsSum)
	}

	// 8. Measurement validation (score computation). Keys present in one
	// map but not the other are treated as weight 0.
	var computed float64
	for dim, v := range a.Measurement.Dimensions {
		computed += v * a.Measurement.Weights[dim]
	}
	if diff := math.Abs(computed - a.Measurement.ImpactScore); diff > ValidationEpsilon {
		return fmt.Errorf("%w: computed %.6f, declared %.6f", ErrImpactScoreMismatch, computed, a.Measurement.ImpactScore)
	}

	// 9. Benchmarks delta check, if present.
	if a.Benchmarks != nil {
		pre, preOK := a.Benchmarks.Pre["performance"]
		post, postOK := a.Benchmarks.Post["performance"]
		if preOK && postOK {
			expected := post - pre
			if math.Abs(a.Benchmarks.Delta-expected) > ValidationEpsilon {
				return fmt.Errorf("%w: expected %.6f, got %.6f", ErrBenchmarkDeltaMismatch, expected, a.Benchmarks.Delta)
			}
		}
	}

	// 10. Signature algorithm and verification.
	if a.Signature.Alg != "ed25519" {
		return fmt.Errorf("%w: %s", ErrUnsupportedSigAlg, a.Signature.Alg)
	}
	pub, err := decodePubkey(a.Attester.PubkeyEd25519)
	if err != nil {
		return err
	}
	sig, err := hex.DecodeString(a.Signature.SigBase16)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	payload, err := a.Canonical()
	if err != nil {
		return err
	}
	if !crypto.Verify(pub, payload, sig) {
		return ErrInvalidSignature
	}

	return nil
}

func parseTimeWindow(window [2]string) (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, window[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end, err = time.Parse(time.RFC3339, window[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

const pubkeyPrefix = "ed25519:"

func decodePubkey(s string) ([]byte, error) {
	if !strings.HasPrefix(s, pubkeyPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrMalformedPubkey, pubkeyPrefix)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, pubkeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPubkey, err)
	}
	if len(raw) != crypto.PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedPubkey, crypto.PublicKeySize, len(raw))
	}
	return raw, nil
}
