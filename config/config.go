// Package config defines the process-wide configuration loaded once at
// node start and threaded into every other package's constructor.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in the configuration-key table: chain
// identity, finality thresholds, epoch/slot timing, validator lifecycle
// windows, view-change pacing, and admission limits.
type Config struct {
	ChainID           string `yaml:"chain_id"`
	GenesisMerkleRoot string `yaml:"genesis_merkle_root"`

	ThresholdBPS uint16 `yaml:"threshold_bps"`
	TotalWeight  uint64 `yaml:"total_weight"`

	EpochDurationSlots uint64 `yaml:"epoch_duration_slots"`
	SlotDurationMS     uint64 `yaml:"slot_duration_ms"`

	UnbondingDelayEpochs  uint64 `yaml:"unbonding_delay_epochs"`
	LivenessMissThreshold uint64 `yaml:"liveness_miss_threshold"`
	OfflineThreshold      uint64 `yaml:"offline_threshold"`

	ViewChangeTimeoutMS    uint64  `yaml:"view_change_timeout_ms"`
	ViewChangeMaxTimeoutMS uint64  `yaml:"view_change_max_timeout_ms"`
	ViewChangeBackoff      float64 `yaml:"view_change_backoff"`

	MaxActiveValidators int    `yaml:"max_active_validators"`
	MinRepForActivation uint64 `yaml:"min_rep_for_activation"`

	BatchVerifyEnabled bool `yaml:"batch_verify_enabled"`
}

// Default returns the configuration-key table's documented defaults.
// ChainID and GenesisMerkleRoot are left empty: every deployment must set
// them explicitly, and Validate rejects an empty value.
func Default() Config {
	return Config{
		ThresholdBPS: 6667,

		EpochDurationSlots: 32,
		SlotDurationMS:     2000,

		UnbondingDelayEpochs:  2,
		LivenessMissThreshold: 64,
		OfflineThreshold:      1024,

		ViewChangeTimeoutMS:    3000,
		ViewChangeMaxTimeoutMS: 30000,
		ViewChangeBackoff:      1.5,

		MaxActiveValidators: 100,
		MinRepForActivation: 500,

		BatchVerifyEnabled: true,
	}
}

// FromFile loads a Config from a YAML file at path, starting from Default
// so an incomplete file still yields sane values for every key it omits.
func FromFile(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every range invariant named in the spec's configuration
// and threshold sections. A caller that receives ErrInvalid should exit
// with code 2 rather than attempt to run with a malformed configuration.
func (c Config) Validate() error {
	if c.ChainID == "" {
		return fmt.Errorf("%w: chain_id must be set", ErrInvalid)
	}
	if c.GenesisMerkleRoot == "" {
		return fmt.Errorf("%w: genesis_merkle_root must be set", ErrInvalid)
	}
	if c.ThresholdBPS <= 5000 || c.ThresholdBPS > 10000 {
		return fmt.Errorf("%w: threshold_bps must satisfy 5000 < threshold_bps <= 10000, got %d", ErrInvalid, c.ThresholdBPS)
	}
	if c.TotalWeight == 0 {
		return fmt.Errorf("%w: total_weight must be > 0", ErrInvalid)
	}
	if c.EpochDurationSlots == 0 {
		return fmt.Errorf("%w: epoch_duration_slots must be > 0", ErrInvalid)
	}
	if c.SlotDurationMS == 0 {
		return fmt.Errorf("%w: slot_duration_ms must be > 0", ErrInvalid)
	}
	if c.LivenessMissThreshold == 0 || c.LivenessMissThreshold >= c.OfflineThreshold {
		return fmt.Errorf("%w: liveness_miss_threshold must be > 0 and < offline_threshold", ErrInvalid)
	}
	if c.ViewChangeTimeoutMS == 0 {
		return fmt.Errorf("%w: view_change_timeout_ms must be > 0", ErrInvalid)
	}
	if c.ViewChangeMaxTimeoutMS < c.ViewChangeTimeoutMS {
		return fmt.Errorf("%w: view_change_max_timeout_ms must be >= view_change_timeout_ms", ErrInvalid)
	}
	if c.ViewChangeBackoff <= 1.0 {
		return fmt.Errorf("%w: view_change_backoff must be > 1.0", ErrInvalid)
	}
	if c.MaxActiveValidators <= 0 {
		return fmt.Errorf("%w: max_active_validators must be > 0", ErrInvalid)
	}
	return nil
}

// ViewChangeTimeout returns ViewChangeTimeoutMS as a time.Duration.
func (c Config) ViewChangeTimeout() time.Duration {
	return time.Duration(c.ViewChangeTimeoutMS) * time.Millisecond
}

// ViewChangeMaxTimeout returns ViewChangeMaxTimeoutMS as a time.Duration.
func (c Config) ViewChangeMaxTimeout() time.Duration {
	return time.Duration(c.ViewChangeMaxTimeoutMS) * time.Millisecond
}

// SlotDuration returns SlotDurationMS as a time.Duration.
func (c Config) SlotDuration() time.Duration {
	return time.Duration(c.SlotDurationMS) * time.Millisecond
}
