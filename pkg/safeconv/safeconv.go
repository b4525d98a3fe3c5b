// Package safeconv provides integer conversions that either panic or clamp
// instead of silently wrapping.
package safeconv

import "math"

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// MustUintToInt converts uint to int, panics on overflow.
// Use only when overflow is logically impossible.
func MustUintToInt(v uint) int {
	if v > uint(MaxInt) {
		panic("safeconv: uint to int overflow")
	}

	return int(v)
}

// MustIntToUint converts int to uint, panics if negative.
// Use only when negative values are logically impossible.
func MustIntToUint(v int) uint {
	if v < 0 {
		panic("safeconv: negative int to uint conversion")
	}

	return uint(v)
}

// MustUintToUint32 converts uint to uint32, panics on overflow.
// Source offsets are bounded to 4 GiB before they reach this call.
func MustUintToUint32(v uint) uint32 {
	if v > math.MaxUint32 {
		panic("safeconv: uint to uint32 overflow")
	}

	return uint32(v)
}

// ClampUint64ToInt converts uint64 to int, clamping at MaxInt.
func ClampUint64ToInt(v uint64) int {
	if v > uint64(MaxInt) {
		return MaxInt
	}

	return int(v)
}
