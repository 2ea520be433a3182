// Package mem provides memory allocation utilities for column segments.
package mem

import (
	"unsafe"
)

// Alignment is the byte alignment used for all column segments (64 bytes).
// This matches both cache-line alignment and the alignment Arrow recommends
// for buffer starts.
const Alignment = 64

// AllocAligned allocates a byte slice of the given size with 64-byte alignment.
// The returned slice is guaranteed to start at a memory address divisible by 64.
//
// Note: This function allocates slightly more memory than requested to ensure
// alignment. The underlying array is kept alive by the returned slice.
func AllocAligned(size int) []byte {
	if size == 0 {
		return nil
	}

	// Allocate size + alignment so an aligned offset always exists within
	// the first Alignment bytes.
	totalSize := size + Alignment
	buf := make([]byte, totalSize)

	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // unsafe is required for memory alignment
	addr := uintptr(ptr)
	offset := (Alignment - (addr & (Alignment - 1))) & (Alignment - 1)

	return buf[offset : offset+uintptr(size)]
}

// AllocAlignedInt64 allocates an int64 slice of the given length with 64-byte
// alignment. Used for variable-length offset segments.
func AllocAlignedInt64(size int) []int64 {
	if size == 0 {
		return nil
	}

	byteSlice := AllocAligned(size * 8)

	// Safe because AllocAligned guarantees 64-byte alignment, which is also
	// 8-byte aligned.
	ptr := unsafe.Pointer(&byteSlice[0])     //nolint:gosec // unsafe is required for memory alignment
	return unsafe.Slice((*int64)(ptr), size) //nolint:gosec // unsafe is required for memory alignment
}

// AsBytes reinterprets an int64 slice as its backing bytes without copying.
// The returned slice aliases s.
func AsBytes(s []int64) []byte {
	if len(s) == 0 {
		return nil
	}
	ptr := unsafe.Pointer(&s[0])              //nolint:gosec // zero-copy reinterpretation
	return unsafe.Slice((*byte)(ptr), len(s)*8) //nolint:gosec // zero-copy reinterpretation
}
