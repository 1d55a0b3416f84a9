package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Projection flattens 3D positions onto the plane orthogonal to Normal.
type Projection struct {
	// Normal of the projection plane. Zero means Up.
	Normal r3.Vec `yaml:"normal" json:"normal"`

	u, v  r3.Vec
	ready bool
}

// DefaultProjection projects onto the XY plane.
func DefaultProjection() Projection {
	return Projection{Normal: Up}
}

// Init computes the plane basis. Project calls it lazily; calling it up
// front makes the value safe for concurrent use.
func (p *Projection) Init() {
	n := p.Normal
	if r3.Norm2(n) < 1e-12 {
		n = Up
	}
	n = r3.Unit(n)

	// Pick the world axis least aligned with n to build a stable basis.
	ref := r3.Vec{X: 1}
	if math.Abs(n.X) > 0.9 {
		ref = r3.Vec{Y: 1}
	}
	p.u = r3.Unit(r3.Cross(ref, n))
	p.v = r3.Cross(n, p.u)
	p.ready = true
}

// Project returns the 2D coordinates of pos in the plane basis.
func (p *Projection) Project(pos r3.Vec) r2.Vec {
	if !p.ready {
		p.Init()
	}
	return r2.Vec{X: r3.Dot(pos, p.u), Y: r3.Dot(pos, p.v)}
}

// ProjectAll projects a slice of positions.
func (p *Projection) ProjectAll(positions []r3.Vec) []r2.Vec {
	if !p.ready {
		p.Init()
	}
	out := make([]r2.Vec, len(positions))
	for i, pos := range positions {
		out[i] = p.Project(pos)
	}
	return out
}
