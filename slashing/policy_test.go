package slashing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableMatchesSpec(t *testing.T) {
	cases := []struct {
		reason  Reason
		penalty Penalty
	}{
		{Equivocation, Penalty{0.9, 1.0, 5000, 4}},
		{FraudulentAttestation, Penalty{0.7, 0.5, 3000, 2}},
		{Censorship, Penalty{0.5, 0.3, 2000, 2}},
		{KeyTheft, Penalty{0.95, 0.1, 500, 1}},
	}
	for _, c := range cases {
		got, ok := Table[c.reason]
		require.True(t, ok)
		require.Equal(t, c.penalty, got)
	}
}

func TestReasonString(t *testing.T) {
	require.Equal(t, "Equivocation", Equivocation.String())
	require.Equal(t, "KeyTheft", KeyTheft.String())
}
