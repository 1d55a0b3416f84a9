package data

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/geom"
)

// InvalidEntryKey marks a point that has no metadata row yet.
const InvalidEntryKey int64 = -1

// Transform places a point in world space.
type Transform struct {
	Location r3.Vec
	Rotation quat.Number
	Scale    r3.Vec
}

// IdentityTransform has no translation, no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{Rotation: quat.Number{Real: 1}, Scale: geom.One}
}

// TransformPosition applies scale, rotation then translation to p.
func (t Transform) TransformPosition(p r3.Vec) r3.Vec {
	return r3.Add(t.Location, t.Rotate(geom.Mul(t.Scale, p)))
}

// Rotate rotates v by the transform's rotation. A zero quaternion is treated
// as the identity.
func (t Transform) Rotate(v r3.Vec) r3.Vec {
	q := t.Rotation
	n := quat.Abs(q)
	if n == 0 {
		return v
	}
	q = quat.Scale(1/n, q)
	r := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Compose returns the transform applying t first, then parent.
func (t Transform) Compose(parent Transform) Transform {
	return Transform{
		Location: parent.TransformPosition(t.Location),
		Rotation: quat.Mul(parent.Rotation, t.Rotation),
		Scale:    geom.Mul(parent.Scale, t.Scale),
	}
}

// Point is one row of a point set. Attribute values live in the owning
// set's Metadata under MetadataEntry.
type Point struct {
	Transform     Transform
	BoundsMin     r3.Vec
	BoundsMax     r3.Vec
	Density       float64
	Steepness     float64
	Color         [4]float64
	Seed          int32
	MetadataEntry int64
}

// NewPoint returns a point at the origin with unit bounds and no metadata row.
func NewPoint() Point {
	return Point{
		Transform:     IdentityTransform(),
		BoundsMin:     r3.Vec{X: -1, Y: -1, Z: -1},
		BoundsMax:     geom.One,
		Density:       1,
		Steepness:     0.5,
		Color:         [4]float64{1, 1, 1, 1},
		MetadataEntry: InvalidEntryKey,
	}
}

// Position is shorthand for Transform.Location.
func (p Point) Position() r3.Vec { return p.Transform.Location }

// Extents returns the half-size of the local bounds.
func (p Point) Extents() r3.Vec {
	return r3.Scale(0.5, r3.Sub(p.BoundsMax, p.BoundsMin))
}

// ScaledExtents returns Extents scaled by the transform scale.
func (p Point) ScaledExtents() r3.Vec {
	return geom.Mul(p.Extents(), p.Transform.Scale)
}

// LocalBounds returns the untransformed bounds.
func (p Point) LocalBounds() r3.Box {
	return r3.Box{Min: p.BoundsMin, Max: p.BoundsMax}
}

// BoundsSource selects which extents a point contributes to a bounding box.
type BoundsSource uint8

const (
	// ScaledExtents uses the scaled local bounds.
	ScaledExtents BoundsSource = iota
	// DensityBounds grows the scaled bounds as steepness decreases.
	DensityBounds
	// Extents uses the unscaled local bounds.
	Extents
)

func (s BoundsSource) String() string {
	switch s {
	case DensityBounds:
		return "density"
	case Extents:
		return "extents"
	default:
		return "scaled"
	}
}

// Bounds returns the world-space box of the point for the given source.
func (p Point) Bounds(source BoundsSource) r3.Box {
	var e r3.Vec
	switch source {
	case DensityBounds:
		e = r3.Scale(2-p.Steepness, p.ScaledExtents())
	case Extents:
		e = p.Extents()
	default:
		e = p.ScaledExtents()
	}
	center := r3.Add(p.Transform.Location, r3.Scale(0.5, geom.Mul(r3.Add(p.BoundsMin, p.BoundsMax), p.Transform.Scale)))
	return geom.BoxFromCenterExtents(center, abs(e))
}

func abs(v r3.Vec) r3.Vec {
	if v.X < 0 {
		v.X = -v.X
	}
	if v.Y < 0 {
		v.Y = -v.Y
	}
	if v.Z < 0 {
		v.Z = -v.Z
	}
	return v
}
