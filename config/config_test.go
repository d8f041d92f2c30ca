package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	c := Default()
	c.ChainID = "bizra-testnet-001"
	c.GenesisMerkleRoot = "aa11bb22cc33dd44ee55ff66001122334455667788990011223344556677889900"
	c.TotalWeight = 3000
	return c
}

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	c := Default()
	require.EqualValues(t, 6667, c.ThresholdBPS)
	require.EqualValues(t, 32, c.EpochDurationSlots)
	require.EqualValues(t, 2000, c.SlotDurationMS)
	require.EqualValues(t, 2, c.UnbondingDelayEpochs)
	require.EqualValues(t, 64, c.LivenessMissThreshold)
	require.EqualValues(t, 1024, c.OfflineThreshold)
	require.EqualValues(t, 3000, c.ViewChangeTimeoutMS)
	require.EqualValues(t, 100, c.MaxActiveValidators)
	require.EqualValues(t, 500, c.MinRepForActivation)
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMissingChainIdentity(t *testing.T) {
	c := validConfig()
	c.ChainID = ""
	require.ErrorIs(t, c.Validate(), ErrInvalid)

	c = validConfig()
	c.GenesisMerkleRoot = ""
	require.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestValidateRejectsThresholdOutOfRange(t *testing.T) {
	cases := []uint16{0, 5000, 10001, 65535}
	for _, bps := range cases {
		c := validConfig()
		c.ThresholdBPS = bps
		require.ErrorIsf(t, c.Validate(), ErrInvalid, "threshold_bps=%d", bps)
	}
}

func TestValidateRejectsZeroTotalWeight(t *testing.T) {
	c := validConfig()
	c.TotalWeight = 0
	require.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestValidateRejectsBadLivenessWindow(t *testing.T) {
	c := validConfig()
	c.LivenessMissThreshold = c.OfflineThreshold
	require.ErrorIs(t, c.Validate(), ErrInvalid)

	c = validConfig()
	c.LivenessMissThreshold = 0
	require.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestValidateRejectsInvertedViewChangeTimeouts(t *testing.T) {
	c := validConfig()
	c.ViewChangeMaxTimeoutMS = c.ViewChangeTimeoutMS - 1
	require.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestValidateRejectsBackoffNotGreaterThanOne(t *testing.T) {
	c := validConfig()
	c.ViewChangeBackoff = 1.0
	require.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestFromFileLoadsAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	contents := `
chain_id: bizra-mainnet
genesis_merkle_root: aa11bb22cc33dd44ee55ff66001122334455667788990011223344556677889900
total_weight: 500000
threshold_bps: 7500
max_active_validators: 50
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	require.Equal(t, "bizra-mainnet", cfg.ChainID)
	require.EqualValues(t, 7500, cfg.ThresholdBPS)
	require.EqualValues(t, 50, cfg.MaxActiveValidators)
	// Keys absent from the file keep Default's values.
	require.EqualValues(t, 2000, cfg.SlotDurationMS)
}

func TestFromFileRejectsMissingFile(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestFromFileRejectsInvalidContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chain_id: only-chain-id\n"), 0o600))

	_, err := FromFile(path)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestDurationHelpers(t *testing.T) {
	c := validConfig()
	require.Equal(t, "3s", c.ViewChangeTimeout().String())
	require.Equal(t, "30s", c.ViewChangeMaxTimeout().String())
	require.Equal(t, "2s", c.SlotDuration().String())
}
