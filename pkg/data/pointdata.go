package data

import (
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/geom"
)

var uidCounter atomic.Uint64

// NextUID returns a process-wide unique identifier.
func NextUID() uint64 {
	return uidCounter.Add(1)
}

// PointData is a point array and its attribute table.
type PointData struct {
	// UID identifies this data for the lifetime of the process. It is what
	// cluster id tags and attributes carry.
	UID      uint64
	Points   []Point
	Metadata *Metadata
}

// NewPointData returns an empty point set with a fresh UID.
func NewPointData() *PointData {
	return &PointData{UID: NextUID(), Metadata: NewMetadata()}
}

// Num returns the number of points.
func (d *PointData) Num() int {
	if d == nil {
		return 0
	}
	return len(d.Points)
}

// CloneSchema returns an empty point set with the same attribute columns.
func (d *PointData) CloneSchema() *PointData {
	return &PointData{UID: NextUID(), Metadata: d.Metadata.CloneSchema()}
}

// Clone deep-copies points and metadata. The copy gets a new UID.
func (d *PointData) Clone() *PointData {
	return &PointData{
		UID:      NextUID(),
		Points:   append([]Point(nil), d.Points...),
		Metadata: d.Metadata.Clone(),
	}
}

// Positions returns the location of every point.
func (d *PointData) Positions() []r3.Vec {
	out := make([]r3.Vec, len(d.Points))
	for i := range d.Points {
		out[i] = d.Points[i].Transform.Location
	}
	return out
}

// Bounds returns the union of every point's bounds.
func (d *PointData) Bounds(source BoundsSource) r3.Box {
	box := geom.EmptyBox()
	if d == nil {
		return box
	}
	for _, p := range d.Points {
		box = geom.Union(box, p.Bounds(source))
	}
	return box
}
