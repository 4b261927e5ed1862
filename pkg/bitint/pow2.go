// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size FFT windows
and analysis rings. All functions are allocation free and constant time, so
they are safe to call from a processing callback.

NextPowerOfTwo subtracts one before measuring the bit length; without that
step an exact power of two would be doubled:

	size   size-1   bits.Len   result
	8      0111     3          8
	9      1000     4          16
*/
package bitint

import "math/bits"

// Integer is the set of signed integer types the helpers accept.
type Integer interface {
	~int | ~int32 | ~int64
}

// NextPowerOfTwo returns the smallest power of two >= n. Non-positive input
// returns 1.
func NextPowerOfTwo[T Integer](n T) T {
	if n <= 1 {
		return 1
	}
	return T(1) << bits.Len64(uint64(n-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo[T Integer](n T) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns floor(log2(n)) for positive n and -1 otherwise.
func Log2[T Integer](n T) int {
	if n <= 0 {
		return -1
	}
	return bits.Len64(uint64(n)) - 1
}
