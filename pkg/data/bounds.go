package data

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/geom"
)

// Bounds is the box of one point set and the other records it overlaps.
// Records are built for one pass and dropped afterwards.
type Bounds struct {
	Box      r3.Box
	IO       *PointIO
	Overlaps []*Bounds
}

// Overlap reports whether b and other intersect.
func (b *Bounds) Overlap(other *Bounds) bool {
	return geom.Intersects(b.Box, other.Box)
}

// FindOverlaps fills the Overlaps of every record. Invalid boxes overlap
// nothing.
func FindOverlaps(bounds []*Bounds) {
	for _, b := range bounds {
		b.Overlaps = b.Overlaps[:0]
	}
	for i, a := range bounds {
		if !geom.IsValidBox(a.Box) {
			continue
		}
		for _, b := range bounds[i+1:] {
			if !geom.IsValidBox(b.Box) || !a.Overlap(b) {
				continue
			}
			a.Overlaps = append(a.Overlaps, b)
			b.Overlaps = append(b.Overlaps, a)
		}
	}
}
