package crypto

import (
	"github.com/zeebo/blake3"
)

// HashSize is the digest length produced by Hash.
const HashSize = 32

// Hash32 is a 32-byte Blake3 digest, used as both BlockHash and the
// attestation replay digest.
type Hash32 [HashSize]byte

// Hash returns the Blake3 digest of data.
func Hash(data []byte) Hash32 {
	var out Hash32
	h := blake3.Sum256(data)
	copy(out[:], h[:])
	return out
}

// IsZero reports whether h is the all-zero hash.
func (h Hash32) IsZero() bool {
	return h == Hash32{}
}

// String returns the lowercase hex encoding of h.
func (h Hash32) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, HashSize*2)
	for i, b := range h {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}
