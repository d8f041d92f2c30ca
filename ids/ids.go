// Package ids defines the content-addressed identifier types shared across
// the consensus core: block hashes, validator identifiers, and attestation
// digests are all 32-byte Blake3 outputs wrapped in the same ID type so
// they compare, hash, and serialize identically.
package ids

import (
	"encoding/hex"
	"errors"

	"github.com/bizra/consensus/crypto"
)

// Len is the byte length of an ID.
const Len = crypto.HashSize

// ID is an opaque 32-byte content-addressed identifier.
type ID [Len]byte

// Empty is the all-zero ID, used to mean "no parent" on genesis blocks and
// "no vote yet" on a fresh replica.
var Empty ID

// ErrInvalidLen is returned by FromBytes/FromHex when the input is not
// exactly Len bytes (or 2*Len hex characters).
var ErrInvalidLen = errors.New("ids: invalid length")

// FromBytes copies b into a new ID. b must be exactly Len bytes.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Len {
		return id, ErrInvalidLen
	}
	copy(id[:], b)
	return id, nil
}

// FromHash wraps a crypto.Hash32 as an ID; the two types share layout.
func FromHash(h crypto.Hash32) ID {
	return ID(h)
}

// Hash reinterprets id as a crypto.Hash32, for passing into hashing/signature
// helpers that operate on raw digests.
func (id ID) Hash() crypto.Hash32 {
	return crypto.Hash32(id)
}

// FromHex parses a lowercase or uppercase hex string into an ID.
func FromHex(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	return FromBytes(raw)
}

// IsEmpty reports whether id is the all-zero ID.
func (id ID) IsEmpty() bool {
	return id == Empty
}

// Bytes returns a copy of id's underlying bytes.
func (id ID) Bytes() []byte {
	out := make([]byte, Len)
	copy(out, id[:])
	return out
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Less gives IDs a total order, used for deterministic iteration when a
// component needs to break ties (e.g. leader rotation tiebreaks never rely
// on map iteration order).
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}
