// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSatAdd64(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
	}{
		{"normal addition", 10, 20, 30},
		{"saturates at max", math.MaxUint64, 200, math.MaxUint64},
		{"saturates just over", math.MaxUint64 - 100, 200, math.MaxUint64},
		{"exact max stays max", math.MaxUint64 - 1, 1, math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SatAdd64(tt.a, tt.b))
		})
	}
}

func TestSatSub64(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
	}{
		{"normal subtraction", 30, 20, 10},
		{"clamps at zero", 10, 20, 0},
		{"equal values", 100, 100, 0},
		{"zero minuend", 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SatSub64(tt.a, tt.b))
		})
	}
}
