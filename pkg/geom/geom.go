// Package geom provides the small set of geometric primitives shared by the
// point and cluster packages: vector helpers on top of gonum's r3 types,
// axis-aligned boxes, endpoint packing and plane projection.
//
// Triangulation lives in delaunay.go.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Zero is the origin.
var Zero = r3.Vec{}

// One is the unit scale.
var One = r3.Vec{X: 1, Y: 1, Z: 1}

// Up is the default projection normal.
var Up = r3.Vec{Z: 1}

// DistSquared returns the squared Euclidean distance between a and b.
func DistSquared(a, b r3.Vec) float64 {
	return r3.Norm2(r3.Sub(a, b))
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Lerp interpolates between a and b.
func Lerp(a, b r3.Vec, alpha float64) r3.Vec {
	return r3.Add(a, r3.Scale(alpha, r3.Sub(b, a)))
}

// Mul multiplies two vectors component-wise.
func Mul(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

// Min returns the component-wise minimum.
func Min(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

// Max returns the component-wise maximum.
func Max(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// EmptyBox returns an inverted box that any Expand call will overwrite.
func EmptyBox() r3.Box {
	inf := math.Inf(1)
	return r3.Box{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// BoxFromCenterExtents builds a box from its center and half-size.
func BoxFromCenterExtents(center, extents r3.Vec) r3.Box {
	return r3.Box{Min: r3.Sub(center, extents), Max: r3.Add(center, extents)}
}

// IsValidBox reports whether b has been expanded at least once.
func IsValidBox(b r3.Box) bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Expand grows b so that it contains p.
func Expand(b r3.Box, p r3.Vec) r3.Box {
	return r3.Box{Min: Min(b.Min, p), Max: Max(b.Max, p)}
}

// Union returns the smallest box containing a and b.
func Union(a, b r3.Box) r3.Box {
	if !IsValidBox(a) {
		return b
	}
	if !IsValidBox(b) {
		return a
	}
	return r3.Box{Min: Min(a.Min, b.Min), Max: Max(a.Max, b.Max)}
}

// ExpandBy grows b by amount on every side.
func ExpandBy(b r3.Box, amount float64) r3.Box {
	d := r3.Vec{X: amount, Y: amount, Z: amount}
	return r3.Box{Min: r3.Sub(b.Min, d), Max: r3.Add(b.Max, d)}
}

// Center returns the center of b.
func Center(b r3.Box) r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Extents returns the half-size of b.
func Extents(b r3.Box) r3.Vec {
	return r3.Scale(0.5, r3.Sub(b.Max, b.Min))
}

// Volume returns the volume of b, 0 for an invalid box.
func Volume(b r3.Box) float64 {
	if !IsValidBox(b) {
		return 0
	}
	s := r3.Sub(b.Max, b.Min)
	return s.X * s.Y * s.Z
}

// Intersects reports whether a and b overlap (touching counts).
func Intersects(a, b r3.Box) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// Overlap returns the intersection box of a and b and whether it is non-empty.
func Overlap(a, b r3.Box) (r3.Box, bool) {
	o := r3.Box{Min: Max(a.Min, b.Min), Max: Min(a.Max, b.Max)}
	return o, IsValidBox(o)
}

// Contains reports whether p lies inside b (inclusive).
func Contains(b r3.Box, p r3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// PointAtUVW maps uvw, each component in [-1, 1], onto b. (0,0,0) is the
// center, (1,1,1) the max corner.
func PointAtUVW(b r3.Box, uvw r3.Vec) r3.Vec {
	return r3.Add(Center(b), Mul(Extents(b), uvw))
}

// ClosestPointOnBox returns the point of b closest to p.
func ClosestPointOnBox(b r3.Box, p r3.Vec) r3.Vec {
	return Max(b.Min, Min(b.Max, p))
}
