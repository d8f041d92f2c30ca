package attestation

import (
	"encoding/json"

	"github.com/bizra/consensus/crypto"
)

// Canonical returns a's canonical payload: JSON with signature.sig_base16
// zeroed, struct fields in sorted-key order, and no insignificant
// whitespace. Used both as the signing payload and as the input to Digest.
func (a *Attestation) Canonical() ([]byte, error) {
	forSigning := *a
	forSigning.Signature = Signature{Alg: a.Signature.Alg, SigBase16: ""}
	return json.Marshal(&forSigning)
}

// Digest returns the Blake3 digest of a's canonical payload, used for
// de-duplication, receipts, and inclusion proofs.
func (a *Attestation) Digest() (crypto.Hash32, error) {
	payload, err := a.Canonical()
	if err != nil {
		return crypto.Hash32{}, err
	}
	return crypto.Hash(payload), nil
}
