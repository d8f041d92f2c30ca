package attestation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReplayCacheRejectsDuplicate(t *testing.T) {
	c := NewReplayCache()
	now := time.Now()

	require.NoError(t, c.CheckAndStore("attester-1", "nonce-a", now))
	require.ErrorIs(t, c.CheckAndStore("attester-1", "nonce-a", now), ErrReplayedNonce)
}

func TestReplayCacheDistinctAttesterOrNonce(t *testing.T) {
	c := NewReplayCache()
	now := time.Now()

	require.NoError(t, c.CheckAndStore("attester-1", "nonce-a", now))
	require.NoError(t, c.CheckAndStore("attester-2", "nonce-a", now))
	require.NoError(t, c.CheckAndStore("attester-1", "nonce-b", now))
	require.Equal(t, 3, c.Len())
}

func TestReplayCacheExpiresOldEntries(t *testing.T) {
	c := NewReplayCache()
	start := time.Now()

	require.NoError(t, c.CheckAndStore("attester-1", "nonce-a", start))

	later := start.Add(ReplayWindow + time.Minute)
	require.NoError(t, c.CheckAndStore("attester-1", "nonce-a", later))
}

func TestReplayCacheConcurrentAccess(t *testing.T) {
	c := NewReplayCache()
	now := time.Now()

	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			_ = c.CheckAndStore("attester-concurrent", string(rune('a'+i)), now)
		}(i)
	}
	for i := 0; i < 50; i++ {
		<-done
	}
	require.Equal(t, 50, c.Len())
}
