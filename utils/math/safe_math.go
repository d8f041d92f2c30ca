// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import "math"

// SatAdd64 returns a + b, clamped to math.MaxUint64 instead of wrapping.
// Used for block-weight accumulation, where an overflowing accumulation
// must saturate rather than error or wrap.
func SatAdd64(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// SatSub64 returns a - b, clamped to 0 instead of underflowing. Used for
// slashing reductions and liveness-gap arithmetic.
func SatSub64(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
