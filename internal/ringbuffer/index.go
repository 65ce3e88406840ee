// Package ringbuffer implements a FIFO ring buffer whose items live in an
// external key-value store under integer indices. Only the (start, end) pair
// is held in memory; it is loaded once per batch and written back on Commit.
package ringbuffer

import (
	"math"
	"unsafe"
)

// Index is the set of unsigned integer types usable as ring buffer slots.
// The capacity of the index space is 2^width.
type Index interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// WrappingAdd returns a+b modulo 2^width.
func WrappingAdd[I Index](a, b I) I {
	return a + b
}

// WrappingSub returns a-b modulo 2^width.
func WrappingSub[I Index](a, b I) I {
	return a - b
}

// Distance returns the number of slots between start and end, walking
// forward from start and wrapping at the top of the index space.
func Distance[I Index](start, end I) uint64 {
	return uint64(WrappingSub(end, start))
}

// Capacity returns 2^width for I. For 64-bit indices the true value does
// not fit in a uint64, so math.MaxUint64 is returned instead.
func Capacity[I Index]() uint64 {
	var zero I
	bits := unsafe.Sizeof(zero) * 8
	if bits >= 64 {
		return math.MaxUint64
	}
	return uint64(1) << bits
}
