package graph

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/mt"
)

// EdgeFlags holds one flag per edge of a cluster. Flags may be raised from
// concurrent tasks.
type EdgeFlags []atomic.Bool

// NewEdgeFlags returns cleared flags for every edge of c.
func NewEdgeFlags(c *Cluster) EdgeFlags {
	return make(EdgeFlags, len(c.EdgeList))
}

// Bools copies the flags.
func (f EdgeFlags) Bools() []bool {
	out := make([]bool, len(f))
	for i := range f {
		out[i] = f[i].Load()
	}
	return out
}

// StartKeepShortest submits the keep-shortest pass over the nodes of c on m:
// every edge that is the shortest adjacent edge of at least one of its nodes
// is flagged. flags is final once m has no pending work.
func StartKeepShortest(m *mt.Manager, c *Cluster, chunkSize int, flags EdgeFlags) error {
	return m.ParallelFor("keep-shortest", len(c.Nodes), chunkSize, func(i int) {
		best, bestDist := -1, math.MaxFloat64
		for _, l := range c.Nodes[i].Links {
			if d := c.DistSquared(i, l.Node); d < bestDist {
				best, bestDist = l.Edge, d
			}
		}
		if best >= 0 {
			flags[best].Store(true)
		}
	})
}

// KeepShortest runs StartKeepShortest and blocks until it is done.
func KeepShortest(m *mt.Manager, c *Cluster) ([]bool, error) {
	flags := NewEdgeFlags(c)
	if err := StartKeepShortest(m, c, 256, flags); err != nil {
		return nil, err
	}
	if err := m.Wait(); err != nil {
		return nil, err
	}
	return flags.Bools(), nil
}

// SpecialEdges summarizes the adjacent edges of a node. Directions point
// from the node towards the neighbor.
type SpecialEdges struct {
	Shortest          int
	ShortestNode      int
	ShortestLength    float64
	ShortestDirection r3.Vec
	Longest           int
	LongestNode       int
	LongestLength     float64
	LongestDirection  r3.Vec
	// AverageDirection is the mean of the unit directions towards the
	// neighbors.
	AverageDirection r3.Vec
	AverageLength    float64
}

// SpecialEdgesOf returns the shortest, longest and average adjacent edge of
// node. Edge and node indices are -1 for isolated nodes.
func (c *Cluster) SpecialEdgesOf(node int) SpecialEdges {
	s := SpecialEdges{Shortest: -1, ShortestNode: -1, Longest: -1, LongestNode: -1, ShortestLength: math.MaxFloat64}
	n := &c.Nodes[node]
	if len(n.Links) == 0 {
		s.ShortestLength = 0
		return s
	}
	var dirSum r3.Vec
	var lenSum float64
	for _, l := range n.Links {
		delta := r3.Sub(c.Pos(l.Node), n.Position)
		length := r3.Norm(delta)
		var dir r3.Vec
		if length > 0 {
			dir = r3.Scale(1/length, delta)
		}
		if length < s.ShortestLength {
			s.Shortest, s.ShortestNode, s.ShortestLength, s.ShortestDirection = l.Edge, l.Node, length, dir
		}
		if length > s.LongestLength || s.Longest < 0 {
			s.Longest, s.LongestNode, s.LongestLength, s.LongestDirection = l.Edge, l.Node, length, dir
		}
		dirSum = r3.Add(dirSum, dir)
		lenSum += length
	}
	k := float64(len(n.Links))
	s.AverageDirection = r3.Scale(1/k, dirSum)
	s.AverageLength = lenSum / k
	return s
}
