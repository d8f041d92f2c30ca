package attestation

import (
	"time"

	"github.com/bizra/consensus/crypto"
)

// Engine validates incoming attestations against a fixed chain identity
// and a shared replay cache.
type Engine struct {
	chainID           string
	genesisMerkleRoot string
	replay            *ReplayCache
}

// NewEngine returns an Engine bound to the given chain identity.
func NewEngine(chainID, genesisMerkleRoot string) *Engine {
	return &Engine{
		chainID:           chainID,
		genesisMerkleRoot: genesisMerkleRoot,
		replay:            NewReplayCache(),
	}
}

// Submit runs the full validation pipeline — the ten structural and
// semantic rules, then the replay check — and returns the attestation's
// digest on success.
func (e *Engine) Submit(a *Attestation, now time.Time) (crypto.Hash32, error) {
	if err := Validate(a, e.chainID, e.genesisMerkleRoot, now); err != nil {
		return crypto.Hash32{}, err
	}
	if err := e.replay.CheckAndStore(a.Attester.ID, a.Nonce, now); err != nil {
		return crypto.Hash32{}, err
	}
	digest, err := a.Digest()
	if err != nil {
		return crypto.Hash32{}, err
	}
	return digest, nil
}
