package nodes

import (
	"context"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/geom"
	"github.com/sanonone/pcgcluster/pkg/graph"
)

// PartitionVertices splits every vertex set into one vertex set per edge
// set, each holding only the vertices its edges reference. Vertex order and
// attributes are preserved; every pair gets a fresh cluster id.
type PartitionVertices struct {
	vtx     *data.Collection
	edges   *data.Collection
	outVtx  *data.Collection
	batches []graph.Batch
	parts   []partition
}

type partition struct {
	vtx    *data.PointIO
	edges  *data.PointIO
	lookup graph.EndpointLookup
	out    *data.PointIO
}

// NewPartitionVertices returns the node.
func NewPartitionVertices() *PartitionVertices {
	return &PartitionVertices{}
}

func (n *PartitionVertices) Name() string { return "PartitionVertices" }

func (n *PartitionVertices) Boot(c *Context) error {
	var err error
	n.vtx, n.edges, n.batches, err = clusterInputs(c, "Partition", data.NoOutput, data.DuplicateInput)
	if err != nil {
		return err
	}
	n.outVtx = data.NewCollection(PinVtx)
	return nil
}

func (n *PartitionVertices) Advance(c *Context) (bool, error) {
	if c.IsState(StateSetup) {
		c.SetState(StateProcessingClusters)
	}

	switch c.State() {
	case StateProcessingClusters:
		done, err := c.Phase(func() error { return n.start(c) })
		if err != nil || !done {
			return false, err
		}
		c.SetState(StateDone)
		return false, nil

	case StateDone:
		n.outVtx.OutputTo(c.Staging, -1, -1)
		n.edges.OutputTo(c.Staging, -1, -1)
		return true, nil
	}
	return false, nil
}

func (n *PartitionVertices) start(c *Context) error {
	// Outputs are created up front so staging order follows input order.
	for _, b := range n.batches {
		lookup, err := graph.BuildEndpointLookup(b.Vtx, data.In)
		if err != nil {
			return err
		}
		for _, e := range b.Edges {
			out := n.outVtx.Emplace(b.Vtx.In, b.Vtx.Tags.Clone(), data.NewOutput)
			n.parts = append(n.parts, partition{vtx: b.Vtx, edges: e, lookup: lookup, out: out})
		}
	}

	for _, p := range n.parts {
		if _, err := c.Manager.Start("partition", func(context.Context) error {
			return p.run()
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p partition) run() error {
	endpoints, err := data.NewReader[int64](p.edges, data.In, graph.AttrEdgeEndpoints)
	if err != nil {
		return err
	}

	numVtx := p.vtx.Num()
	referenced := graph.NewBitSet(numVtx)
	for _, v := range endpoints.Values {
		a, b := geom.UnpackEndpoint(v)
		if i := p.lookup.Resolve(a); i >= 0 && i < numVtx {
			referenced.Add(i)
		}
		if i := p.lookup.Resolve(b); i >= 0 && i < numVtx {
			referenced.Add(i)
		}
	}

	referenced.Each(func(i int) {
		p.out.CopyPoint(p.vtx.InPoint(i))
	})

	id := p.out.Out.UID
	for _, io := range []*data.PointIO{p.out, p.edges} {
		if err := writeClusterID(io, id); err != nil {
			return err
		}
	}
	graph.MarkVtx(p.out, id)
	graph.MarkEdges(p.edges, id)
	return nil
}
