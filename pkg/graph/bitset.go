package graph

import "math/bits"

// BitSet is a growable set of non-negative integers.
type BitSet struct {
	buckets []uint64
}

// NewBitSet returns a set able to hold [0, capacity) without growing.
func NewBitSet(capacity int) *BitSet {
	return &BitSet{buckets: make([]uint64, (capacity>>6)+1)}
}

func (bs *BitSet) grow(n int) {
	needed := (n >> 6) + 1
	if len(bs.buckets) < needed {
		grown := make([]uint64, needed)
		copy(grown, bs.buckets)
		bs.buckets = grown
	}
}

// Add inserts n.
func (bs *BitSet) Add(n int) {
	b := n >> 6
	if b >= len(bs.buckets) {
		bs.grow(n)
	}
	bs.buckets[b] |= 1 << (n & 63)
}

// Has reports whether n is in the set.
func (bs *BitSet) Has(n int) bool {
	b := n >> 6
	if n < 0 || b >= len(bs.buckets) {
		return false
	}
	return bs.buckets[b]&(1<<(n&63)) != 0
}

// Count returns the number of members.
func (bs *BitSet) Count() int {
	c := 0
	for _, w := range bs.buckets {
		c += bits.OnesCount64(w)
	}
	return c
}

// Each calls fn for every member in ascending order.
func (bs *BitSet) Each(fn func(n int)) {
	for b, w := range bs.buckets {
		for w != 0 {
			i := bits.TrailingZeros64(w)
			fn(b<<6 + i)
			w &= w - 1
		}
	}
}

// Clear removes every member.
func (bs *BitSet) Clear() {
	for i := range bs.buckets {
		bs.buckets[i] = 0
	}
}
