package nodes

import (
	"context"
	"fmt"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/graph"
)

// clusterInputs wraps the Vtx and Edges pins and pairs them by cluster id.
// Inputs that cannot be paired are disabled and reported once.
func clusterInputs(c *Context, component string, vtxMode, edgesMode data.InitMode) (vtx, edges *data.Collection, batches []graph.Batch, err error) {
	vtx = data.NewCollectionFrom(PinVtx, c.Inputs, PinVtx, vtxMode)
	edges = data.NewCollectionFrom(PinEdges, c.Inputs, PinEdges, edgesMode)

	batches, orphans := graph.GroupBatches(vtx, edges)
	for _, o := range orphans {
		o.Disable()
	}
	if len(orphans) > 0 {
		c.Logger.Warn("["+component+"] Some inputs have no matching vtx or edges and were dropped", "count", len(orphans))
	}
	if len(batches) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no vtx/edges pairs", ErrNoValidInputs)
	}
	return vtx, edges, batches, nil
}

// batchCluster is one edge set of a batch and the cluster built over it.
type batchCluster struct {
	batch   int
	edges   int
	vtx     *data.PointIO
	edgeIO  *data.PointIO
	cluster *graph.Cluster
}

// flattenBatches lists every edge set of batches in batch order.
func flattenBatches(batches []graph.Batch) []*batchCluster {
	var out []*batchCluster
	for b, batch := range batches {
		for e, io := range batch.Edges {
			out = append(out, &batchCluster{batch: b, edges: e, vtx: batch.Vtx, edgeIO: io})
		}
	}
	return out
}

// startClusterBuilds builds one cluster per entry. The endpoint lookup of
// each vertex set is built once and shared by its edge sets.
func startClusterBuilds(c *Context, entries []*batchCluster, side data.Side) error {
	lookups := make(map[*data.PointIO]graph.EndpointLookup)
	for _, e := range entries {
		if _, ok := lookups[e.vtx]; ok {
			continue
		}
		l, err := graph.BuildEndpointLookup(e.vtx, side)
		if err != nil {
			return fmt.Errorf("vtx %d: %w", e.vtx.IOIndex, err)
		}
		lookups[e.vtx] = l
	}
	for _, e := range entries {
		lookup := lookups[e.vtx]
		if _, err := c.Manager.Start("build-cluster", func(context.Context) error {
			cl, err := graph.BuildCluster(e.vtx, e.edgeIO, graph.BuildOptions{Side: side, Lookup: lookup})
			if err != nil {
				return err
			}
			e.cluster = cl
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeClusterID overwrites the cluster id column of io with id.
func writeClusterID(io *data.PointIO, id uint64) error {
	w, err := data.NewWriterDefault(io, graph.AttrClusterID, int64(id), false)
	if err != nil {
		return err
	}
	return w.Write()
}
