// Package metrics wires the consensus core's counters and gauges into a
// Prometheus registry supplied by the caller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registerer is the subset of prometheus.Registerer components accept when
// registering their own metrics.
type Registerer interface {
	prometheus.Registerer
}

// Registry is a full Prometheus registry: components register into it and
// the external interface adapters gather from it.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRegistry returns a fresh, empty Registry.
func NewRegistry() Registry {
	return prometheus.NewRegistry()
}

// MultiGatherer fans Gather() out across metrics registered by multiple
// components (block graph, consensus state machine, attestation engine),
// each under its own namespace.
type MultiGatherer interface {
	prometheus.Gatherer

	// Register attaches a component's gatherer under name. Name collisions
	// overwrite the previous registration.
	Register(name string, gatherer prometheus.Gatherer) error
}

type multiGatherer struct {
	gatherers map[string]prometheus.Gatherer
}

// NewMultiGatherer returns an empty MultiGatherer.
func NewMultiGatherer() MultiGatherer {
	return &multiGatherer{
		gatherers: make(map[string]prometheus.Gatherer),
	}
}

func (mg *multiGatherer) Register(name string, gatherer prometheus.Gatherer) error {
	mg.gatherers[name] = gatherer
	return nil
}

func (mg *multiGatherer) Gather() ([]*dto.MetricFamily, error) {
	var result []*dto.MetricFamily
	for _, g := range mg.gatherers {
		families, err := g.Gather()
		if err != nil {
			return nil, err
		}
		result = append(result, families...)
	}
	return result, nil
}

// ConsensusMetrics tracks the consensus state machine's hot-path counters.
type ConsensusMetrics struct {
	ProposalsSent    prometheus.Counter
	VotesCast        prometheus.Counter
	QuorumsFormed    prometheus.Counter
	BlocksCommitted  prometheus.Counter
	ViewChanges      prometheus.Counter
	EquivocationsSeen prometheus.Counter
	CurrentView      prometheus.Gauge
}

// NewConsensusMetrics builds and registers a ConsensusMetrics under namespace.
func NewConsensusMetrics(namespace string, reg Registerer) (*ConsensusMetrics, error) {
	m := &ConsensusMetrics{
		ProposalsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "proposals_sent_total", Help: "Proposals emitted as leader.",
		}),
		VotesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "votes_cast_total", Help: "Votes cast by this replica.",
		}),
		QuorumsFormed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "quorums_formed_total", Help: "Quorum certificates formed locally.",
		}),
		BlocksCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_committed_total", Help: "Blocks committed via the 3-chain rule.",
		}),
		ViewChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "view_changes_total", Help: "View-change timeouts fired.",
		}),
		EquivocationsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "equivocations_total", Help: "Distinct-vote equivocations detected.",
		}),
		CurrentView: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "current_view", Help: "The replica's current view number.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.ProposalsSent, m.VotesCast, m.QuorumsFormed, m.BlocksCommitted,
		m.ViewChanges, m.EquivocationsSeen, m.CurrentView,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// BlockGraphMetrics tracks the block graph's size and finality progress.
type BlockGraphMetrics struct {
	BlockCount     prometheus.Gauge
	FinalizedCount prometheus.Gauge
	PrunedTotal    prometheus.Counter
}

// NewBlockGraphMetrics builds and registers a BlockGraphMetrics under namespace.
func NewBlockGraphMetrics(namespace string, reg Registerer) (*BlockGraphMetrics, error) {
	m := &BlockGraphMetrics{
		BlockCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "blocks", Help: "Blocks currently retained in the graph.",
		}),
		FinalizedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "finalized_blocks", Help: "Blocks flagged finalized.",
		}),
		PrunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pruned_blocks_total", Help: "Blocks pruned after commit.",
		}),
	}
	for _, c := range []prometheus.Collector{m.BlockCount, m.FinalizedCount, m.PrunedTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AttestationMetrics tracks the attestation engine's acceptance rate.
type AttestationMetrics struct {
	Accepted prometheus.Counter
	Rejected *prometheus.CounterVec
	Replayed prometheus.Counter
}

// NewAttestationMetrics builds and registers an AttestationMetrics under namespace.
func NewAttestationMetrics(namespace string, reg Registerer) (*AttestationMetrics, error) {
	m := &AttestationMetrics{
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "attestations_accepted_total", Help: "Attestations that passed all validation rules.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "attestations_rejected_total", Help: "Attestations rejected, labeled by rule.",
		}, []string{"rule"}),
		Replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "attestations_replayed_total", Help: "Attestations rejected as nonce replays.",
		}),
	}
	for _, c := range []prometheus.Collector{m.Accepted, m.Rejected, m.Replayed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
