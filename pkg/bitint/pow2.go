/*
Package bitint provides the bit manipulation helpers shared by the
spectral transforms and buffer sizing code. Everything here works on
power-of-two sizes, which is the only kind of block the radix-2 FFTs
accept.

Design Principles:
- Zero Allocations: scalar helpers use stack memory only
- Predictable Performance: O(1) scalar operations, O(n) tables
- Fail Fast: table builders reject sizes that are not a power of two

Usage:

	// Round an arbitrary block length up for the FFT
	size := bitint.NextPowerOfTwo(1000) // 1024

	// Bit-reversal table for an 8 point iterative FFT
	perm, err := bitint.Permutation(8) // [0 4 2 6 1 5 3 7]

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that an
exact power of two maps to itself:

	size = 8, size-1 = 7 (0111), bits.Len(7) = 3, 1<<3 = 8

Without the subtraction bits.Len(8) = 4 and the result doubles to 16.
*/
package bitint

import (
	"errors"
	"math/bits"
)

// ErrNotPowerOfTwo is returned when a size must be a positive power of two.
var ErrNotPowerOfTwo = errors.New("bitint: size is not a power of two")

// NextPowerOfTwo returns the smallest power of two >= size.
//
// Examples:
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. Powers of two
// have exactly one bit set, so n&(n-1) clears it and leaves zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the base two logarithm of a power of two. It is the bit
// width used for the reversal permutation of an n point transform.
func Log2(n int) (int, error) {
	if !IsPowerOfTwo(n) {
		return 0, ErrNotPowerOfTwo
	}
	return bits.TrailingZeros(uint(n)), nil
}
