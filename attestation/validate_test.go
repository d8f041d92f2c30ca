package attestation

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bizra/consensus/crypto"
)

const (
	testChainID     = "bizra-testnet-001"
	testGenesisRoot = "aa11bb22cc33dd44ee55ff66001122334455667788990011223344556677889900"
)

// signedAttestation builds a structurally valid attestation anchored to
// testChainID/testGenesisRoot, applies mut (if non-nil), and then signs the
// result, so the mutation is covered by the signature. Callers that need an
// invalid signature should mutate the returned, already-signed copy.
func signedAttestation(t *testing.T, now time.Time, mut func(a *Attestation)) *Attestation {
	t.Helper()

	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	start := now.Add(-time.Hour).UTC().Format(time.RFC3339)
	end := now.UTC().Format(time.RFC3339)

	a := &Attestation{
		Version: Version,
		Anchor: Anchor{
			ChainID:           testChainID,
			GenesisMerkleRoot: testGenesisRoot,
		},
		Attester: Attester{
			ID:            "attester-1",
			PubkeyEd25519: pubkeyPrefix + hex.EncodeToString(kp.Public),
		},
		Evidence: Evidence{
			PackSHA256: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
		},
		Measurement: Measurement{
			Dimensions: map[string]float64{"quality": 0.8, "volume": 0.4},
			Weights:    map[string]float64{"quality": 0.75, "volume": 0.25},
		},
		Nonce:      "0123456789abcdef0123456789abcdef",
		TimeWindow: [2]string{start, end},
		Signature:  Signature{Alg: "ed25519"},
	}
	a.Measurement.ImpactScore = 0.8*0.75 + 0.4*0.25

	if mut != nil {
		mut(a)
	}

	payload, err := a.Canonical()
	require.NoError(t, err)
	sig := crypto.Sign(kp.Private, payload)
	a.Signature.SigBase16 = hex.EncodeToString(sig)

	return a
}

func TestValidateSuccess(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, nil)
	require.NoError(t, Validate(a, testChainID, testGenesisRoot, now))
}

func TestValidateWrongVersion(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) { a.Version = "poi-0.9" })
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrInvalidVersion)
}

func TestValidateChainIDMismatch(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, nil)
	require.ErrorIs(t, Validate(a, "other-chain", testGenesisRoot, now), ErrChainIDMismatch)
}

func TestValidateGenesisMismatch(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, nil)
	require.ErrorIs(t, Validate(a, testChainID, "deadbeef", now), ErrGenesisMismatch)
}

func TestValidateInvalidEvidence(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) { a.Evidence.PackSHA256 = "abc" })
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrInvalidEvidence)
}

func TestValidateInvalidNonce(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) { a.Nonce = "short" })
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrInvalidNonce)
}

func TestValidateTimeWindowTooLong(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) {
		a.TimeWindow[0] = now.Add(-40 * 24 * time.Hour).UTC().Format(time.RFC3339)
	})
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrInvalidTimeWindow)
}

func TestValidateTimeWindowInFuture(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) {
		a.TimeWindow[1] = now.Add(time.Hour).UTC().Format(time.RFC3339)
	})
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrInvalidTimeWindow)
}

func TestValidateTimeWindowMalformed(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) { a.TimeWindow[0] = "not-a-time" })
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrInvalidTimeWindow)
}

func TestValidateDimensionOutOfRange(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) {
		a.Measurement.Dimensions["quality"] = 1.5
	})
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrDimensionOutOfRange)
}

func TestValidateWeightsSumInvalid(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) {
		a.Measurement.Weights["volume"] = 0.1
	})
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrWeightsSumInvalid)
}

func TestValidateImpactScoreMismatch(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) {
		a.Measurement.ImpactScore = 0.999
	})
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrImpactScoreMismatch)
}

func TestValidateBenchmarksDeltaValid(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) {
		a.Benchmarks = &Benchmarks{
			Pre:   map[string]float64{"performance": 1.0},
			Post:  map[string]float64{"performance": 1.5},
			Delta: 0.5,
		}
	})
	require.NoError(t, Validate(a, testChainID, testGenesisRoot, now))
}

func TestValidateBenchmarksDeltaMismatch(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) {
		a.Benchmarks = &Benchmarks{
			Pre:   map[string]float64{"performance": 1.0},
			Post:  map[string]float64{"performance": 1.5},
			Delta: 10.0,
		}
	})
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrBenchmarkDeltaMismatch)
}

func TestValidateUnsupportedSigAlg(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, nil)
	a.Signature.Alg = "secp256k1"
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrUnsupportedSigAlg)
}

func TestValidateBadSignature(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, nil)
	a.Signature.SigBase16 = hex.EncodeToString(make([]byte, crypto.SignatureSize))
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrInvalidSignature)
}

func TestValidateMalformedPubkey(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, func(a *Attestation) { a.Attester.PubkeyEd25519 = "not-prefixed" })
	require.ErrorIs(t, Validate(a, testChainID, testGenesisRoot, now), ErrMalformedPubkey)
}

func TestEngineSubmitRejectsReplay(t *testing.T) {
	now := time.Now()
	a := signedAttestation(t, now, nil)
	eng := NewEngine(testChainID, testGenesisRoot)

	_, err := eng.Submit(a, now)
	require.NoError(t, err)

	_, err = eng.Submit(a, now)
	require.ErrorIs(t, err, ErrReplayedNonce)
}
