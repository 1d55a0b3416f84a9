package graph

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/geom"
	"github.com/sanonone/pcgcluster/pkg/metrics"
)

// ErrEmptyCluster is returned by queries that need at least one node.
var ErrEmptyCluster = errors.New("cluster has no nodes")

// Node is a vertex referenced by at least one valid edge.
type Node struct {
	// PointIndex is the index of the vertex in the vertex set.
	PointIndex int
	Position   r3.Vec
	Links      []Link
}

// Degree returns the number of adjacent edges.
func (n *Node) Degree() int { return len(n.Links) }

// EndpointLookup maps vertex ids to vertex point indices.
type EndpointLookup map[uint32]int

// Resolve returns the point index of id, or -1.
func (l EndpointLookup) Resolve(id uint32) int {
	if i, ok := l[id]; ok {
		return i
	}
	return -1
}

// BuildEndpointLookup reads AttrVtxEndpoint from side of vtx.
func BuildEndpointLookup(vtx *data.PointIO, side data.Side) (EndpointLookup, error) {
	r, err := data.NewReader[int64](vtx, side, AttrVtxEndpoint)
	if err != nil {
		return nil, fmt.Errorf("vertex endpoints: %w", err)
	}
	lookup := make(EndpointLookup, len(r.Values))
	for i, v := range r.Values {
		id, _ := geom.UnpackEndpoint(v)
		lookup[id] = i
	}
	return lookup, nil
}

// BuildOptions tunes BuildCluster.
type BuildOptions struct {
	// Side is the side of both point sets the cluster reads.
	Side data.Side
	// Lookup reuses a lookup built for the same vertex set.
	Lookup EndpointLookup
	// Positions, when set, provides vertex positions by point index instead
	// of reading them from the vertex set.
	Positions []r3.Vec
}

// Cluster is a read-only graph view over a vertex set and one edge set.
type Cluster struct {
	Vtx   *data.PointIO
	Edges *data.PointIO

	Nodes     []Node
	EdgeList  []IndexedEdge
	NodeIndex map[int]int
	Bounds    r3.Box

	side         data.Side
	lookup       EndpointLookup
	invalidEdges int

	treeOnce sync.Once
	tree     *kdtree.Tree
}

// BuildCluster resolves every edge of edges against the vertices of vtx.
// Edges whose endpoints are missing or equal are kept but marked invalid
// and never linked.
func BuildCluster(vtx, edges *data.PointIO, opts BuildOptions) (*Cluster, error) {
	lookup := opts.Lookup
	if lookup == nil {
		var err error
		if lookup, err = BuildEndpointLookup(vtx, opts.Side); err != nil {
			return nil, err
		}
	}
	endpoints, err := data.NewReader[int64](edges, opts.Side, AttrEdgeEndpoints)
	if err != nil {
		return nil, fmt.Errorf("edge endpoints: %w", err)
	}

	vtxData := vtx.Data(opts.Side)
	numVtx := vtxData.Num()

	c := &Cluster{
		Vtx:       vtx,
		Edges:     edges,
		EdgeList:  make([]IndexedEdge, len(endpoints.Values)),
		NodeIndex: make(map[int]int),
		Bounds:    geom.EmptyBox(),
		side:      opts.Side,
		lookup:    lookup,
	}

	referenced := NewBitSet(numVtx)
	for i, v := range endpoints.Values {
		a, b := geom.UnpackEndpoint(v)
		e := IndexedEdge{Index: i, Start: lookup.Resolve(a), End: lookup.Resolve(b)}
		e.Valid = e.Start >= 0 && e.End >= 0 && e.Start != e.End && e.Start < numVtx && e.End < numVtx
		if e.Valid {
			referenced.Add(e.Start)
			referenced.Add(e.End)
		} else {
			c.invalidEdges++
		}
		c.EdgeList[i] = e
	}

	c.Nodes = make([]Node, 0, referenced.Count())
	referenced.Each(func(pt int) {
		pos := vtxData.Points[pt].Position()
		if pt < len(opts.Positions) {
			pos = opts.Positions[pt]
		}
		c.NodeIndex[pt] = len(c.Nodes)
		c.Nodes = append(c.Nodes, Node{PointIndex: pt, Position: pos})
		c.Bounds = geom.Expand(c.Bounds, pos)
	})

	for i, e := range c.EdgeList {
		if !e.Valid {
			continue
		}
		a, b := c.NodeIndex[e.Start], c.NodeIndex[e.End]
		c.Nodes[a].Links = append(c.Nodes[a].Links, Link{Node: b, Edge: i})
		c.Nodes[b].Links = append(c.Nodes[b].Links, Link{Node: a, Edge: i})
	}

	if c.Valid() {
		metrics.ClustersBuilt.WithLabelValues("valid").Inc()
	} else {
		metrics.ClustersBuilt.WithLabelValues("invalid").Inc()
	}
	return c, nil
}

// Derive builds a cluster over new point sets. With reusePositions the node
// positions of c are kept, which is only correct when the vertex order did
// not change.
func (c *Cluster) Derive(vtx, edges *data.PointIO, reusePositions bool) (*Cluster, error) {
	opts := BuildOptions{Side: c.side}
	if vtx == c.Vtx {
		opts.Lookup = c.lookup
	}
	if reusePositions {
		opts.Positions = make([]r3.Vec, c.Vtx.Data(c.side).Num())
		for i := range opts.Positions {
			opts.Positions[i] = c.Vtx.Data(c.side).Points[i].Position()
		}
		for _, n := range c.Nodes {
			opts.Positions[n.PointIndex] = n.Position
		}
	}
	return BuildCluster(vtx, edges, opts)
}

// Valid reports whether the cluster has nodes and every edge resolved to two
// distinct vertices.
func (c *Cluster) Valid() bool {
	return c.invalidEdges == 0 && len(c.Nodes) > 0
}

// InvalidEdges returns the number of edges that could not be resolved.
func (c *Cluster) InvalidEdges() int { return c.invalidEdges }

// Lookup returns the endpoint lookup the cluster was built with.
func (c *Cluster) Lookup() EndpointLookup { return c.lookup }

// Pos returns the position of node.
func (c *Cluster) Pos(node int) r3.Vec { return c.Nodes[node].Position }

// DistSquared returns the squared distance between nodes a and b.
func (c *Cluster) DistSquared(a, b int) float64 {
	return geom.DistSquared(c.Nodes[a].Position, c.Nodes[b].Position)
}

// NodeOf returns the node of vertex point index pt, or -1.
func (c *Cluster) NodeOf(pt int) int {
	if n, ok := c.NodeIndex[pt]; ok {
		return n
	}
	return -1
}

// EdgeLength returns the length of a valid edge, 0 otherwise.
func (c *Cluster) EdgeLength(edge int) float64 {
	e := c.EdgeList[edge]
	if !e.Valid {
		return 0
	}
	return math.Sqrt(c.DistSquared(c.NodeIndex[e.Start], c.NodeIndex[e.End]))
}

// EdgeMidpoint returns the midpoint of a valid edge.
func (c *Cluster) EdgeMidpoint(edge int) (r3.Vec, bool) {
	e := c.EdgeList[edge]
	if !e.Valid {
		return r3.Vec{}, false
	}
	return geom.Lerp(c.Pos(c.NodeIndex[e.Start]), c.Pos(c.NodeIndex[e.End]), 0.5), true
}

// Centroid returns the mean node position.
func (c *Cluster) Centroid() r3.Vec {
	if len(c.Nodes) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, n := range c.Nodes {
		sum = r3.Add(sum, n.Position)
	}
	return r3.Scale(1/float64(len(c.Nodes)), sum)
}

// FindClosestNode returns the node nearest to pos, or -1 when the cluster is
// empty. The kd-tree is built on first use.
func (c *Cluster) FindClosestNode(pos r3.Vec) int {
	if len(c.Nodes) == 0 {
		return -1
	}
	c.treeOnce.Do(func() { c.tree = newNodeTree(c.Nodes) })
	got, _ := c.tree.Nearest(nodePoint{pos: pos})
	if got == nil {
		return -1
	}
	return got.(nodePoint).node
}

// FindClosestEdge returns the valid edge whose midpoint is nearest to pos,
// or -1.
func (c *Cluster) FindClosestEdge(pos r3.Vec) int {
	best, bestDist := -1, math.MaxFloat64
	for i := range c.EdgeList {
		mid, ok := c.EdgeMidpoint(i)
		if !ok {
			continue
		}
		if d := geom.DistSquared(mid, pos); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// ClosestNodePair scans every node pair of a and b and returns the closest
// one. Ties keep the first pair in node order.
func ClosestNodePair(a, b *Cluster) (na, nb int, dist2 float64, err error) {
	if len(a.Nodes) == 0 || len(b.Nodes) == 0 {
		return -1, -1, 0, ErrEmptyCluster
	}
	na, nb, dist2 = -1, -1, math.MaxFloat64
	for i := range a.Nodes {
		for j := range b.Nodes {
			if d := geom.DistSquared(a.Nodes[i].Position, b.Nodes[j].Position); d < dist2 {
				na, nb, dist2 = i, j, d
			}
		}
	}
	return na, nb, dist2, nil
}
