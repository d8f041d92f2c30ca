// Package block implements the weighted block graph: the chain DAG, its
// attestation-weight accumulation, and O(1) finality queries.
package block

import (
	"encoding/binary"

	"github.com/bizra/consensus/crypto"
	"github.com/bizra/consensus/ids"
)

// Hash identifies a block by the Blake3 digest of its canonical
// serialization (every field below except ProposerSignature and the two
// mutable fields owned by the graph).
type Hash = ids.ID

// QC is a quorum certificate: proof that at least quorum_size distinct
// active-set voters signed the same block hash at the same view. QCs are
// copied by value when embedded in a new block, so a block's history is
// immutable even though the QC that justified it was built by whichever
// replica observed quorum first.
type QC struct {
	BlockHash  Hash
	View       uint64
	VoterIDs   []ids.ID
	Signatures [][]byte
}

// Block is immutable once accepted by a Graph's Add. AccumulatedWeight
// and Finalized are the two fields the graph itself mutates in place;
// every other field is fixed at construction time.
type Block struct {
	Hash              Hash
	ParentHash        Hash // ids.Empty iff Height == 0 (genesis)
	Height            uint64
	ProposerID        ids.ID
	TimestampMS       int64
	ParentQC          QC
	Transactions      [][]byte
	ProposerSignature []byte

	// Mutable, owned exclusively by Graph after Add succeeds.
	AccumulatedWeight uint64
	Finalized         bool
}

// IsGenesis reports whether b is the chain's root block.
func (b *Block) IsGenesis() bool {
	return b.Height == 0 && b.ParentHash.IsEmpty()
}

// ComputeHash derives b's content hash by Blake3-hashing its canonical
// serialization: height, parent hash, every transaction's own hash,
// proposer, timestamp, and the parent QC, in that order. ProposerSignature
// and the graph-owned AccumulatedWeight/Finalized fields are excluded so
// the hash is stable before the block is signed.
func (b *Block) ComputeHash() Hash {
	var buf []byte

	var heightBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], b.Height)
	buf = append(buf, heightBuf[:]...)

	buf = append(buf, b.ParentHash.Bytes()...)

	for _, tx := range b.Transactions {
		txHash := crypto.Hash(tx)
		buf = append(buf, txHash[:]...)
	}

	buf = append(buf, b.ProposerID.Bytes()...)

	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(b.TimestampMS))
	buf = append(buf, tsBuf[:]...)

	buf = append(buf, b.ParentQC.BlockHash.Bytes()...)
	var qcViewBuf [8]byte
	binary.LittleEndian.PutUint64(qcViewBuf[:], b.ParentQC.View)
	buf = append(buf, qcViewBuf[:]...)
	for _, voter := range b.ParentQC.VoterIDs {
		buf = append(buf, voter.Bytes()...)
	}
	for _, sig := range b.ParentQC.Signatures {
		buf = append(buf, sig...)
	}

	digest := crypto.Hash(buf)
	return ids.FromHash(digest)
}
