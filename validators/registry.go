package validators

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/bizra/consensus/ids"
	"github.com/bizra/consensus/slashing"
)

// Config holds the registry's tunable lifecycle parameters, normally
// sourced from config.Config.
type Config struct {
	MinReputationForActivation uint64
	UnbondingDelayEpochs       uint64
	LivenessMissThreshold      uint64
	OfflineThreshold           uint64
	MaxActiveValidators        int
	ReputationDecayFactor      float64
	SlashQuarantineEpochs      map[string]uint64 // unused here; quarantine lengths come from slashing.Table
}

// DefaultConfig returns the registry defaults named in the spec's
// configuration-key table.
func DefaultConfig() Config {
	return Config{
		MinReputationForActivation: MinReputationForActivation,
		UnbondingDelayEpochs:       UnbondingDelayEpochs,
		LivenessMissThreshold:      LivenessMissThreshold,
		OfflineThreshold:           OfflineThreshold,
		MaxActiveValidators:        100,
		ReputationDecayFactor:      DefaultReputationDecayFactor,
	}
}

// quarantineRecord tracks a slashed validator's scheduled re-entry epoch.
type quarantineRecord struct {
	validatorID ids.ID
	releaseAt   uint64
}

// Registry is the process-wide, concurrency-safe store of validator
// records. Reads dominate (every vote or proposal dispatch consults it);
// writes happen one-at-a-time at registration/slashing and in bulk only at
// AdvanceEpoch, which may briefly stall readers but runs at most once per
// epoch.
type Registry struct {
	mu sync.RWMutex

	records map[ids.ID]*Record
	cfg     Config
	rep     ReputationTracker
	epoch   uint64

	pendingJoin *list.List // of ids.ID, FIFO
	pendingExit *list.List // of ids.ID, FIFO
	quarantine  []quarantineRecord
}

// New returns an empty Registry at epoch 0.
func New(cfg Config) *Registry {
	return &Registry{
		records:     make(map[ids.ID]*Record),
		cfg:         cfg,
		rep:         NewReputationTracker(cfg.ReputationDecayFactor),
		pendingJoin: list.New(),
		pendingExit: list.New(),
	}
}

// Register adds a fresh Pending record and enqueues it for activation at
// the next epoch boundary the churn limit permits.
func (r *Registry) Register(rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ValidatorID]; exists {
		return ErrAlreadyRegistered
	}
	r.records[rec.ValidatorID] = rec
	r.pendingJoin.PushBack(rec.ValidatorID)
	return nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id ids.ID) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// InitiateExit enqueues id for an Active -> Exiting transition at the next
// epoch boundary the churn limit permits.
func (r *Registry) InitiateExit(id ids.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != Active {
		return fmt.Errorf("%w: cannot exit validator in status %s", ErrWrongStatus, rec.Status)
	}
	r.pendingExit.PushBack(id)
	return nil
}

// Slash applies a slashing penalty immediately; slashing is never
// churn-limited or queued, since it must take effect before the next vote.
func (r *Registry) Slash(id ids.ID, weightSlashFactor, bondSlashFactor float64, repPenalty uint64, quarantineEpochs uint64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	if err := rec.Slash(weightSlashFactor, bondSlashFactor, repPenalty, now); err != nil {
		return err
	}
	r.quarantine = append(r.quarantine, quarantineRecord{
		validatorID: id,
		releaseAt:   r.epoch + quarantineEpochs,
	})
	return nil
}

// MarkSeen updates a validator's liveness tracking.
func (r *Registry) MarkSeen(id ids.ID, slot uint64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.MarkSeen(slot, now)
	return nil
}

// churnLimit implements max(2, floor(activeCount/50)).
func churnLimit(activeCount int) int {
	limit := activeCount / 50
	if limit < 2 {
		limit = 2
	}
	return limit
}

// ActiveCount returns the number of validators whose status counts toward
// the active set (Active or Exiting).
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCountLocked()
}

func (r *Registry) activeCountLocked() int {
	n := 0
	for _, rec := range r.records {
		if rec.Status.IsActiveSet() {
			n++
		}
	}
	return n
}

// TotalWeight sums PoIWeight across every validator whose status counts
// toward total_weight (Active or Exiting).
func (r *Registry) TotalWeight() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total uint64
	for _, rec := range r.records {
		if rec.Status.WeightCounts() {
			total += rec.PoIWeight
		}
	}
	return total
}

// ActiveSet returns a deterministically ordered snapshot of the active set
// (Active + Exiting validators), used by the consensus state machine for
// leader rotation. Determinism comes from sorting by validator ID.
func (r *Registry) ActiveSet() []ids.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ids.ID, 0, len(r.records))
	for id, rec := range r.records {
		if rec.Status.IsActiveSet() {
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []ids.ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j].Less(ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// Epoch returns the registry's current epoch.
func (r *Registry) Epoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// AdvanceEpoch runs the full epoch-boundary pipeline: reputation decay of
// Active and Exiting validators, quarantine expiry (Slashed -> Pending),
// unbonding expiry (Exiting ->
// Exited), and finally churn-limited activations (Pending -> Active) drawn
// FIFO from the join queue and churn-limited exits (Active -> Exiting)
// drawn FIFO from the exit queue. Liveness is not reclassified here;
// Record.IsOffline and Record.MissedLiveness report it on demand.
func (r *Registry) AdvanceEpoch(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.epoch++

	for _, rec := range r.records {
		if rec.Status.WeightCounts() {
			rec.RepScore = r.rep.ApplyDecay(rec.RepScore, 1)
		}
	}

	r.releaseQuarantineLocked(now)
	r.expireUnbondingLocked(now)

	limit := churnLimit(r.activeCountLocked())
	r.processJoinQueueLocked(limit, now)
	r.processExitQueueLocked(limit, now)
}

func (r *Registry) releaseQuarantineLocked(now time.Time) {
	var remaining []quarantineRecord
	for _, q := range r.quarantine {
		if r.epoch < q.releaseAt {
			remaining = append(remaining, q)
			continue
		}
		if rec, ok := r.records[q.validatorID]; ok && rec.Status == Slashed {
			rec.Status = Pending
			rec.RepScore = MinReputationScore
			rec.UpdatedAt = now.Unix()
		}
	}
	r.quarantine = remaining
}

func (r *Registry) expireUnbondingLocked(now time.Time) {
	for _, rec := range r.records {
		if rec.Status != Exiting || rec.EpochExit == nil {
			continue
		}
		if r.epoch >= *rec.EpochExit {
			_ = rec.CompleteExit(r.epoch, now)
		}
	}
}

func (r *Registry) processJoinQueueLocked(limit int, now time.Time) {
	processed := 0
	var deferred []ids.ID
	for r.pendingJoin.Len() > 0 && processed < limit {
		front := r.pendingJoin.Remove(r.pendingJoin.Front()).(ids.ID)
		rec, ok := r.records[front]
		if !ok || rec.Status != Pending {
			continue
		}
		if err := rec.Activate(r.epoch, r.cfg.MinReputationForActivation, now); err != nil {
			deferred = append(deferred, front)
			continue
		}
		processed++
	}
	for _, id := range deferred {
		r.pendingJoin.PushBack(id)
	}
}

func (r *Registry) processExitQueueLocked(limit int, now time.Time) {
	processed := 0
	for r.pendingExit.Len() > 0 && processed < limit {
		front := r.pendingExit.Remove(r.pendingExit.Front()).(ids.ID)
		rec, ok := r.records[front]
		if !ok || rec.Status != Active {
			continue
		}
		_ = rec.InitiateExit(r.epoch, r.cfg.UnbondingDelayEpochs, now)
		processed++
	}
}

// Apply implements slashing.Sink: it looks up the fixed penalty for
// evidence.Reason and applies it immediately, bypassing the churn queues
// (slashing must take effect before the next vote is cast).
func (r *Registry) Apply(evidence slashing.Evidence) error {
	penalty, ok := slashing.Table[evidence.Reason]
	if !ok {
		return fmt.Errorf("validators: unknown slashing reason %v", evidence.Reason)
	}
	return r.Slash(
		evidence.ValidatorID,
		penalty.WeightFactor,
		penalty.BondFactor,
		penalty.ReputationPenalty,
		penalty.QuarantineEpochs,
		time.Now(),
	)
}
