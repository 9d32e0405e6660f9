// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"math/bits"
)

// ReverseBits reverses the low width bits of value. Bits above width are
// discarded, so the result is always below 1<<width.
//
//	value  width  result
//	1      3      4   (001 -> 100)
//	6      3      3   (110 -> 011)
//	1      4      8   (0001 -> 1000)
func ReverseBits(value uint, width uint) uint {
	if width == 0 {
		return 0
	}
	return bits.Reverse(value) >> (bits.UintSize - width)
}

// Permutation returns the bit-reversal permutation of 0..n-1 for a power of
// two n, i.e. perm[i] = ReverseBits(i, log2(n)). The table is an involution:
// perm[perm[i]] == i.
func Permutation(n int) ([]int, error) {
	width, err := Log2(n)
	if err != nil {
		return nil, fmt.Errorf("bit-reversal permutation of %d: %w", n, err)
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = int(ReverseBits(uint(i), uint(width)))
	}
	return perm, nil
}
