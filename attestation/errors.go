package attestation

import "errors"

var (
	ErrInvalidVersion         = errors.New("attestation: invalid version")
	ErrChainIDMismatch        = errors.New("attestation: chain_id mismatch")
	ErrGenesisMismatch        = errors.New("attestation: genesis_merkle_root mismatch")
	ErrInvalidEvidence        = errors.New("attestation: invalid evidence.pack_sha256")
	ErrInvalidNonce           = errors.New("attestation: invalid nonce length")
	ErrReplayedNonce          = errors.New("attestation: nonce already seen")
	ErrInvalidTimeWindow      = errors.New("attestation: invalid time_window")
	ErrDimensionOutOfRange    = errors.New("attestation: dimension value out of range [0,1]")
	ErrWeightsSumInvalid      = errors.New("attestation: weights must sum to 1.0")
	ErrImpactScoreMismatch    = errors.New("attestation: impact_score mismatch")
	ErrBenchmarkDeltaMismatch = errors.New("attestation: benchmark delta mismatch")
	ErrUnsupportedSigAlg      = errors.New("attestation: unsupported signature algorithm")
	ErrInvalidSignature       = errors.New("attestation: signature does not verify")
	ErrMalformedPubkey        = errors.New("attestation: malformed pubkey_ed25519")
)
