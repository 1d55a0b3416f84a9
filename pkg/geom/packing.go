package geom

// Endpoint values pack two 32-bit fields into one 64-bit word: the first
// field occupies the high 32 bits, the second the low 32 bits. Vertices use
// {vertex id, degree}, edges use {start vertex id, end vertex id}.
//
// Degree overflow past 2^32 is not guarded.

// H64 packs a and b.
func H64(a, b uint32) uint64 {
	return uint64(a)<<32 | uint64(b)
}

// H64A returns the high field.
func H64A(h uint64) uint32 {
	return uint32(h >> 32)
}

// H64B returns the low field.
func H64B(h uint64) uint32 {
	return uint32(h)
}

// H64Split is the inverse of H64.
func H64Split(h uint64) (a, b uint32) {
	return uint32(h >> 32), uint32(h)
}

// H64U packs an unordered pair, smallest value first, so (a,b) and (b,a)
// produce the same key.
func H64U(a, b uint32) uint64 {
	if a > b {
		a, b = b, a
	}
	return H64(a, b)
}

// PackEndpoint packs into the signed representation stored in int64
// attributes.
func PackEndpoint(a, b uint32) int64 {
	return int64(H64(a, b))
}

// UnpackEndpoint is the inverse of PackEndpoint.
func UnpackEndpoint(v int64) (a, b uint32) {
	return H64Split(uint64(v))
}
