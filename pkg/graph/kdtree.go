package graph

import (
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// nodePoint is a node position carried through the kd-tree.
type nodePoint struct {
	pos  r3.Vec
	node int
}

func (p nodePoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.pos.X
	case 1:
		return p.pos.Y
	default:
		return p.pos.Z
	}
}

func (p nodePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(nodePoint).coord(d)
}

func (p nodePoint) Dims() int { return 3 }

func (p nodePoint) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.pos, c.(nodePoint).pos))
}

type nodePoints []nodePoint

func (p nodePoints) Index(i int) kdtree.Comparable { return p[i] }
func (p nodePoints) Len() int                       { return len(p) }
func (p nodePoints) Pivot(d kdtree.Dim) int         { return nodePlane{dim: d, nodePoints: p}.Pivot() }
func (p nodePoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

type nodePlane struct {
	dim kdtree.Dim
	nodePoints
}

func (p nodePlane) Less(i, j int) bool {
	return p.nodePoints[i].coord(p.dim) < p.nodePoints[j].coord(p.dim)
}
func (p nodePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p nodePlane) Slice(start, end int) kdtree.SortSlicer {
	p.nodePoints = p.nodePoints[start:end]
	return p
}
func (p nodePlane) Swap(i, j int) {
	p.nodePoints[i], p.nodePoints[j] = p.nodePoints[j], p.nodePoints[i]
}

func newNodeTree(nodes []Node) *kdtree.Tree {
	pts := make(nodePoints, len(nodes))
	for i, n := range nodes {
		pts[i] = nodePoint{pos: n.Position, node: i}
	}
	return kdtree.New(pts, false)
}
