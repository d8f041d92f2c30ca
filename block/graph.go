package block

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/bizra/consensus/utils/math"
	"github.com/bizra/consensus/utils/set"
)

const (
	minThresholdBPS = 5000
	maxThresholdBPS = 10000
	bpsDenominator  = 10000
)

// Graph is the weighted block DAG: a content-addressed map of blocks plus a
// children index, guarded by a single reader/writer lock. Reads
// (IsFinalized, GetBlock, GetWeight) dominate the workload and take RLock;
// the two writers (Add, UpdateWeight) keep their critical sections to a
// single map mutation plus, at most, one boolean flip.
type Graph struct {
	mu sync.RWMutex

	blocks   map[Hash]*Block
	children map[Hash]set.Set[Hash]

	committedHead Hash
	highestQC     QC
	totalWeight   uint64
	thresholdBPS  uint16
}

// New constructs a Graph seeded with genesis. genesis must have Height == 0
// and an empty ParentHash. thresholdBPS must satisfy 5000 < thresholdBPS <=
// 10000.
func New(genesis *Block, totalWeight uint64, thresholdBPS uint16) (*Graph, error) {
	if thresholdBPS <= minThresholdBPS || thresholdBPS > maxThresholdBPS {
		return nil, ErrInvalidThreshold
	}
	if !genesis.IsGenesis() {
		return nil, fmt.Errorf("block: genesis must have height 0 and no parent")
	}

	g := &Graph{
		blocks:        make(map[Hash]*Block),
		children:      make(map[Hash]set.Set[Hash]),
		committedHead: genesis.Hash,
		highestQC:     QC{BlockHash: genesis.Hash, View: 0},
		totalWeight:   totalWeight,
		thresholdBPS:  thresholdBPS,
	}
	gCopy := *genesis
	g.blocks[genesis.Hash] = &gCopy
	return g, nil
}

// Add inserts block if its hash is new, its parent exists (unless it is
// genesis), and its height is exactly parent height + 1.
func (g *Graph) Add(b *Block) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.blocks[b.Hash]; exists {
		return ErrDuplicate
	}

	if b.IsGenesis() {
		cp := *b
		g.blocks[b.Hash] = &cp
		return nil
	}

	parent, ok := g.blocks[b.ParentHash]
	if !ok {
		return ErrParentMissing
	}
	if b.Height != parent.Height+1 {
		return ErrHeightInvalid
	}

	cp := *b
	g.blocks[b.Hash] = &cp

	kids := g.children[b.ParentHash]
	kids.Add(b.Hash)
	g.children[b.ParentHash] = kids

	return nil
}

// UpdateWeight adds delta to hash's accumulated weight (saturating) and
// reports whether this call newly crossed the finality threshold. Once
// finalized, a block never reverts.
func (g *Graph) UpdateWeight(hash Hash, delta uint64) (newlyFinalized bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.blocks[hash]
	if !ok {
		return false, ErrNotFound
	}

	b.AccumulatedWeight = math.SatAdd64(b.AccumulatedWeight, delta)

	if b.Finalized {
		return false, nil
	}
	if meetsThreshold(b.AccumulatedWeight, g.totalWeight, g.thresholdBPS) {
		b.Finalized = true
		return true, nil
	}
	return false, nil
}

// meetsThreshold evaluates accumulated*10000 >= total*thresholdBps in
// arbitrary-precision arithmetic, eliminating both uint64 overflow (two
// uint64 values multiplied by up to 10000 can exceed 2^64) and any
// floating-point rounding from the decision.
func meetsThreshold(accumulated, total uint64, thresholdBPS uint16) bool {
	lhs := new(big.Int).Mul(new(big.Int).SetUint64(accumulated), big.NewInt(bpsDenominator))
	rhs := new(big.Int).Mul(new(big.Int).SetUint64(total), big.NewInt(int64(thresholdBPS)))
	return lhs.Cmp(rhs) >= 0
}

// IsFinalized returns hash's finalized flag, or false if hash is unknown.
// This is the hot path: it must never block behind a long write.
func (g *Graph) IsFinalized(hash Hash) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.blocks[hash]
	return ok && b.Finalized
}

// GetWeight returns hash's accumulated weight.
func (g *Graph) GetWeight(hash Hash) (uint64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.blocks[hash]
	if !ok {
		return 0, false
	}
	return b.AccumulatedWeight, true
}

// GetBlock returns a copy of the block stored under hash.
func (g *Graph) GetBlock(hash Hash) (*Block, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.blocks[hash]
	if !ok {
		return nil, false
	}
	cp := *b
	return &cp, true
}

// BlockCount returns the number of blocks currently retained.
func (g *Graph) BlockCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.blocks)
}

// FinalizedCount walks every retained block and counts finalized ones.
func (g *Graph) FinalizedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, b := range g.blocks {
		if b.Finalized {
			n++
		}
	}
	return n
}

// CommittedHead returns the hash of the most recently committed block.
func (g *Graph) CommittedHead() Hash {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.committedHead
}

// HighestQC returns the highest-view QC observed so far.
func (g *Graph) HighestQC() QC {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.highestQC
}

// UpdateHighestQC replaces the stored highest QC, preserving the
// "highest_qc.view never decreases" invariant. The genesis placeholder QC
// (view 0, no voters) is always replaceable by a real QC at the same
// view; once a real quorum-backed QC is stored, only a strictly greater
// view replaces it. Reports whether it replaced the stored QC.
func (g *Graph) UpdateHighestQC(qc QC) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if qc.View < g.highestQC.View {
		return false
	}
	if qc.View == g.highestQC.View && len(g.highestQC.VoterIDs) > 0 {
		return false
	}
	g.highestQC = qc
	return true
}

// ThresholdBPS returns the configured finality threshold, for observability.
func (g *Graph) ThresholdBPS() uint16 {
	return g.thresholdBPS
}

// pruneBufferBlocks is the number of blocks below the new committed head's
// height that are retained regardless of ancestry, for reorg debugging.
const pruneBufferBlocks = 8

// Commit advances committedHead to hash and prunes branches that are
// neither an ancestor of hash nor within pruneBufferBlocks of its height.
// hash must already be Finalized; the 3-chain rule in the consensus state
// machine is responsible for only calling Commit once that holds.
func (g *Graph) Commit(hash Hash) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.blocks[hash]
	if !ok {
		return ErrNotFound
	}
	if !b.Finalized {
		return fmt.Errorf("block: cannot commit %s: not yet finalized", hash)
	}

	g.committedHead = hash
	g.pruneLocked(b.Height)
	return nil
}

// pruneLocked removes every block whose height is more than
// pruneBufferBlocks below headHeight and that is not an ancestor of the new
// committed head. Must be called with mu held for writing.
func (g *Graph) pruneLocked(headHeight uint64) {
	ancestors := set.NewSet[Hash](pruneBufferBlocks + 1)
	cursor := g.committedHead
	for {
		b, ok := g.blocks[cursor]
		if !ok {
			break
		}
		ancestors.Add(cursor)
		if b.IsGenesis() {
			break
		}
		cursor = b.ParentHash
	}

	var minKeepHeight uint64
	if headHeight > pruneBufferBlocks {
		minKeepHeight = headHeight - pruneBufferBlocks
	}

	for h, b := range g.blocks {
		if b.Height >= minKeepHeight {
			continue
		}
		if ancestors.Contains(h) {
			continue
		}
		delete(g.blocks, h)
		delete(g.children, h)
		if parentKids, ok := g.children[b.ParentHash]; ok {
			parentKids.Remove(h)
		}
	}
}

// ThreeChain returns hash and its two ancestors, in descending-height
// order, as the candidate for the 3-chain commit rule. Returns
// ErrParentMissing if fewer than three blocks are retained along the
// chain (the genesis boundary was reached too early).
func (g *Graph) ThreeChain(hash Hash) (b2, b1, b0 *Block, err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	blk2, ok := g.blocks[hash]
	if !ok {
		return nil, nil, nil, ErrNotFound
	}
	blk1, ok := g.blocks[blk2.ParentHash]
	if !ok {
		return nil, nil, nil, ErrParentMissing
	}
	blk0, ok := g.blocks[blk1.ParentHash]
	if !ok {
		return nil, nil, nil, ErrParentMissing
	}

	c2, c1, c0 := *blk2, *blk1, *blk0
	return &c2, &c1, &c0, nil
}

// IsDescendant reports whether ancestor lies on candidate's chain,
// walking parent links back to genesis.
func (g *Graph) IsDescendant(candidate, ancestor Hash) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cursor := candidate
	for {
		if cursor == ancestor {
			return true
		}
		b, ok := g.blocks[cursor]
		if !ok || b.IsGenesis() {
			return cursor == ancestor
		}
		cursor = b.ParentHash
	}
}

// Children returns the set of known child hashes of hash.
func (g *Graph) Children(hash Hash) []Hash {
	g.mu.RLock()
	defer g.mu.RUnlock()
	kids := g.children[hash]
	return kids.List()
}
