// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size and index the
sample ring buffer. A power-of-two capacity lets the ring wrap its write
position with a single AND instead of a modulo in the audio hot path.

Usage:

	capacity := bitint.NextPowerOfTwo(maxWindow + hop + margin) // 2048+128+64 -> 4096
	mask := bitint.Mask(capacity)                                // 4095
	pos = (pos + 1) & mask

All functions are allocation free and constant time.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Values <= 0 map
// to 1. Subtracting one before taking the bit length keeps exact powers of two
// unchanged (8 -> 8, not 16).
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Mask returns the wraparound mask (n-1) for a power-of-two n, or 0 when n is
// not a power of two. Callers validate capacity once at construction.
func Mask(n int) int {
	if !IsPowerOfTwo(n) {
		return 0
	}
	return n - 1
}

// Log2 returns floor(log2(n)) for n > 0 and -1 otherwise.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}
