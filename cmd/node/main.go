// Command node runs a single consensus core replica: it loads
// configuration and key material from disk, wires together the block
// graph, validator registry, pipelined state machine, and attestation
// engine, and serves a Prometheus /metrics endpoint. It does not itself
// speak a network wire protocol; a transport layer would sit in front of
// the api.Adapter this command constructs.
package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bizra/consensus/api"
	"github.com/bizra/consensus/attestation"
	"github.com/bizra/consensus/block"
	"github.com/bizra/consensus/config"
	"github.com/bizra/consensus/consensus"
	"github.com/bizra/consensus/crypto"
	"github.com/bizra/consensus/ids"
	"github.com/bizra/consensus/log"
	"github.com/bizra/consensus/metrics"
	"github.com/bizra/consensus/validators"
)

// Process exit codes: 0 normal, 2 configuration error, 3 cryptographic-key
// load error, 4 irrecoverable storage error.
const (
	exitConfig  = 2
	exitKeyLoad = 3
	exitStorage = 4
)

func main() {
	configPath := flag.String("config", "", "path to the node's YAML configuration file")
	keyPath := flag.String("key", "", "path to the node's hex-encoded Ed25519 private key")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:9090", "address to serve /metrics on")
	flag.Parse()

	logger := log.New(zapcore.InfoLevel)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("configuration error", zap.Error(err))
		os.Exit(exitConfig)
	}

	keys, localID, err := loadIdentity(*keyPath)
	if err != nil {
		logger.Error("key load error", zap.Error(err))
		os.Exit(exitKeyLoad)
	}

	reg := metrics.NewRegistry()
	consensusMetrics, err := metrics.NewConsensusMetrics("bizra", reg)
	if err != nil {
		logger.Error("failed to register consensus metrics", zap.Error(err))
		os.Exit(exitStorage)
	}

	registry := validators.New(validators.Config{
		MinReputationForActivation: cfg.MinRepForActivation,
		UnbondingDelayEpochs:       cfg.UnbondingDelayEpochs,
		LivenessMissThreshold:      cfg.LivenessMissThreshold,
		OfflineThreshold:           cfg.OfflineThreshold,
		MaxActiveValidators:        cfg.MaxActiveValidators,
		ReputationDecayFactor:      validators.DefaultReputationDecayFactor,
	})

	genesis := &block.Block{ParentHash: ids.Empty, Height: 0}
	genesis.Hash = genesis.ComputeHash()
	graph, err := block.New(genesis, cfg.TotalWeight, cfg.ThresholdBPS)
	if err != nil {
		logger.Error("failed to construct block graph", zap.Error(err))
		os.Exit(exitConfig)
	}

	smCfg := consensus.Config{
		ActiveSet:            registry.ActiveSet(),
		QuorumSize:           quorumSize(len(registry.ActiveSet())),
		ViewChangeTimeout:    cfg.ViewChangeTimeout(),
		ViewChangeMaxTimeout: cfg.ViewChangeMaxTimeout(),
		ViewChangeBackoff:    cfg.ViewChangeBackoff,
		BatchVerifyEnabled:   cfg.BatchVerifyEnabled,
	}
	sm := consensus.New(localID, keys, graph, registry, registry, logger, consensusMetrics, smCfg)
	sm.Start()

	attestEng := attestation.NewEngine(cfg.ChainID, cfg.GenesisMerkleRoot)

	adapter := api.New(graph, sm, registry, attestEng)
	_ = adapter // a transport (gRPC/JSON-RPC) wraps this adapter; out of scope for this core

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("node started",
		zap.String("chain_id", cfg.ChainID),
		zap.String("local_id", localID.String()),
		zap.String("metrics_addr", *metricsAddr),
	)
	select {}
}

// quorumSize implements the BFT supermajority floor(2n/3)+1 against the
// active set size known at process start. The registry's active set grows
// as joiners are activated at epoch boundaries; a freshly started node with
// no registered validators yet requires an operator to register the
// genesis validator set before consensus can make progress.
func quorumSize(n int) int {
	return (2*n)/3 + 1
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, fmt.Errorf("%w: -config is required", config.ErrInvalid)
	}
	return config.FromFile(path)
}

// loadIdentity reads a hex-encoded 64-byte Ed25519 private key from path
// and derives the replica's local ids.ID from its public key.
func loadIdentity(path string) (*crypto.KeyPair, ids.ID, error) {
	if path == "" {
		return nil, ids.Empty, fmt.Errorf("%w: -key is required", crypto.ErrKeyLoad)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ids.Empty, fmt.Errorf("%w: %v", crypto.ErrKeyLoad, err)
	}
	decoded, err := hex.DecodeString(trimNewline(raw))
	if err != nil {
		return nil, ids.Empty, fmt.Errorf("%w: key file is not valid hex: %v", crypto.ErrKeyLoad, err)
	}
	priv, err := crypto.LoadPrivateKey(decoded)
	if err != nil {
		return nil, ids.Empty, err
	}
	pub, err := crypto.LoadPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, ids.Empty, err
	}

	keyPair := &crypto.KeyPair{Private: priv, Public: pub}
	localID := ids.FromHash(crypto.Hash(keyPair.Public))
	return keyPair, localID, nil
}

func trimNewline(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
