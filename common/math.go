package common

import (
	"math"
	"unsafe"
)

// Number is the set of numeric types the clamp helpers accept.
type Number interface {
	~int | ~int32 | ~int64 | ~uint32 | ~float32 | ~float64
}

// Clamp restricts v to the closed range [lo, hi].
// If lo is greater than hi, lo wins.
//
// Parameters:
//   - v: the value to clamp
//   - lo: the lower bound
//   - hi: the upper bound
//
// Returns:
//   - T: v restricted to [lo, hi]
func Clamp[T Number](v, lo, hi T) T {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// WrapFloat returns the Euclidean remainder of v modulo m, always in [0, m).
// Used for horizontal wrap-around of world coordinates.
//
// Parameters:
//   - v: the value to wrap
//   - m: the modulus, must be positive
//
// Returns:
//   - float64: v wrapped into [0, m)
func WrapFloat(v, m float64) float64 {
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}
	// math.Mod of a tiny negative value can round back up to m
	if r >= m {
		r = 0
	}
	return r
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
func AlignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}
