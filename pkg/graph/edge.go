package graph

// Link is one adjacency entry of a node.
type Link struct {
	Node int
	Edge int
}

// IndexedEdge is one edge row of a cluster. Start and End are point indices
// into the vertex set, -1 when the endpoint could not be resolved.
type IndexedEdge struct {
	Index int
	Start int
	End   int
	Valid bool
}

// Other returns the endpoint of e that is not vtx.
func (e IndexedEdge) Other(vtx int) int {
	if e.Start == vtx {
		return e.End
	}
	return e.Start
}
