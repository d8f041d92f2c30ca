// Package attestation implements the proof-of-impact attestation pipeline:
// wire decoding, the ten exhaustive validation rules, replay defense, and
// the canonical digest used for de-duplication and receipts.
package attestation

// Version is the only protocol version this engine accepts.
const Version = "poi-1.0"

// Anchor binds an attestation to a specific chain and genesis. Struct
// fields are declared in the sorted-key order the canonical payload
// requires (see Canonical in digest.go).
type Anchor struct {
	BlockRef          *string `json:"block_ref,omitempty"`
	ChainID           string  `json:"chain_id"`
	GenesisMerkleRoot string  `json:"genesis_merkle_root"`
}

// Attester identifies the attestation's signer.
type Attester struct {
	ID            string `json:"id"`
	PubkeyEd25519 string `json:"pubkey_ed25519"`
}

// Resources records optional resource-contribution metrics.
type Resources struct {
	CPUCores     *uint32 `json:"cpu_cores,omitempty"`
	GPUVRAMGB    *uint32 `json:"gpu_vram_gb,omitempty"`
	RAMGB        *uint32 `json:"ram_gb,omitempty"`
	WallclockSec *uint64 `json:"wallclock_sec,omitempty"`
}

// Evidence records the evidence bundle backing the measurement.
type Evidence struct {
	FilesProcessed  *uint64 `json:"files_processed,omitempty"`
	MethodologyRef  *string `json:"methodology_ref,omitempty"`
	PackBytes       *uint64 `json:"pack_bytes,omitempty"`
	PackSHA256      string  `json:"pack_sha256"`
	RedactionsCount *uint64 `json:"redactions_count,omitempty"`
}

// Measurement is the impact score and the dimension/weight maps it was
// computed from.
type Measurement struct {
	Dimensions  map[string]float64 `json:"dimensions"`
	ImpactScore float64            `json:"impact_score"`
	Weights     map[string]float64 `json:"weights"`
}

// Benchmarks records optional pre/post performance measurements.
type Benchmarks struct {
	Delta float64            `json:"delta"`
	Post  map[string]float64 `json:"post"`
	Pre   map[string]float64 `json:"pre"`
}

// Signature is the Ed25519 signature envelope.
type Signature struct {
	Alg       string `json:"alg"`
	SigBase16 string `json:"sig_base16"`
}

// Attestation is the full wire-format proof-of-impact attestation.
type Attestation struct {
	Anchor      Anchor      `json:"anchor"`
	Attester    Attester    `json:"attester"`
	Benchmarks  *Benchmarks `json:"benchmarks,omitempty"`
	Evidence    Evidence    `json:"evidence"`
	Measurement Measurement `json:"measurement"`
	Nonce       string      `json:"nonce"`
	Resources   *Resources  `json:"resources,omitempty"`
	Signature   Signature   `json:"signature"`
	TimeWindow  [2]string   `json:"time_window"`
	Version     string      `json:"version"`
}
