package nodes

import (
	"context"
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/geom"
	"github.com/sanonone/pcgcluster/pkg/graph"
	"github.com/sanonone/pcgcluster/pkg/metrics"
)

// BridgeSettings configures BridgeClusters.
type BridgeSettings struct {
	Method BridgeMethod `yaml:"method" json:"method" validate:"required,oneof=delaunay3d delaunay2d least-edges most-edges"`
	// Projection is the plane used by BridgeDelaunay2D.
	Projection geom.Projection `yaml:"projection" json:"projection"`
}

// bridgeBatch is the working state of one vertex set and its edge sets.
type bridgeBatch struct {
	graph.Batch

	entries []*batchCluster
	valid   []*graph.Cluster

	composite *data.PointIO
	merger    *data.Merger

	pairs       [][2]int
	firstBridge int
	endpoints   []int64
	vtxIDs      []uint32
	degrees     []atomic.Uint32
}

// BridgeClusters connects the clusters sharing a vertex set. The edge sets
// of a batch are merged into one, bridge edges are added between the
// closest vertices of the selected cluster pairs and the result is tagged
// with a new cluster id.
type BridgeClusters struct {
	Settings BridgeSettings

	vtx      *data.Collection
	edges    *data.Collection
	outEdges *data.Collection

	batches    []graph.Batch
	batchIndex int
	current    *bridgeBatch
}

// NewBridgeClusters returns the node.
func NewBridgeClusters(settings BridgeSettings) *BridgeClusters {
	return &BridgeClusters{Settings: settings}
}

func (n *BridgeClusters) Name() string { return "BridgeClusters" }

func (n *BridgeClusters) Boot(c *Context) error {
	switch n.Settings.Method {
	case BridgeDelaunay3D, BridgeDelaunay2D, BridgeLeastEdges, BridgeMostEdges:
	default:
		return fmt.Errorf("unknown bridge method %q", n.Settings.Method)
	}
	n.Settings.Projection.Init()

	var err error
	n.vtx, n.edges, n.batches, err = clusterInputs(c, "Bridge", data.DuplicateInput, data.Forward)
	if err != nil {
		return err
	}
	n.outEdges = data.NewCollection(PinEdges)
	n.batchIndex = -1
	return nil
}

func (n *BridgeClusters) Advance(c *Context) (bool, error) {
	if c.IsState(StateSetup) {
		c.SetState(StateReadyForNextBatch)
	}

	if c.IsState(StateReadyForNextBatch) {
		n.batchIndex++
		if n.batchIndex >= len(n.batches) {
			c.SetState(StateDone)
		} else {
			b := n.batches[n.batchIndex]
			if len(b.Edges) == 1 {
				// Nothing to bridge; vtx and edges are staged as they are.
				return false, nil
			}
			n.current = &bridgeBatch{Batch: b}
			c.SetState(StateProcessingClusters)
			return false, nil
		}
	}

	switch c.State() {
	case StateProcessingClusters:
		done, err := c.Phase(func() error { return n.buildClusters(c) })
		if err != nil || !done {
			return false, err
		}
		n.gatherValid(c)
		c.SetState(StateMerging)

	case StateMerging:
		done, err := c.Phase(func() error { return n.merge(c) })
		if err != nil || !done {
			return false, err
		}
		n.findPairs(c)
		c.SetState(StateBridging)

	case StateBridging:
		done, err := c.Phase(func() error { return n.startBridges(c) })
		if err != nil || !done {
			return false, err
		}
		c.SetState(StateWriting)

	case StateWriting:
		if err := n.write(); err != nil {
			return false, err
		}
		n.current = nil
		c.SetState(StateReadyForNextBatch)

	case StateDone:
		n.vtx.OutputTo(c.Staging, -1, -1)
		n.edges.OutputTo(c.Staging, -1, -1)
		n.outEdges.OutputTo(c.Staging, -1, -1)
		return true, nil
	}
	return false, nil
}

func (n *BridgeClusters) buildClusters(c *Context) error {
	b := n.current
	b.entries = flattenBatches([]graph.Batch{b.Batch})
	return startClusterBuilds(c, b.entries, data.In)
}

func (n *BridgeClusters) gatherValid(c *Context) {
	b := n.current
	invalid := 0
	for _, e := range b.entries {
		if cl := e.cluster; cl.Valid() {
			b.valid = append(b.valid, cl)
		} else {
			invalid++
		}
	}
	if invalid > 0 {
		c.Logger.Warn("[Bridge] Some vtx/edges groups have invalid clusters, sanitize the input first",
			"invalid", invalid, "clusters", len(b.entries))
	}
}

func (n *BridgeClusters) merge(c *Context) error {
	b := n.current
	b.composite = n.outEdges.EmplaceNew()
	for _, e := range b.Edges {
		b.composite.Tags.Append(e.Tags)
	}
	b.merger = data.NewMerger(b.composite, c.Logger)
	b.merger.Append(b.Edges...)
	if err := b.merger.Merge(c.Manager, []string{graph.AttrClusterID}); err != nil {
		return err
	}
	return b.merger.Write(c.Manager)
}

func (n *BridgeClusters) findPairs(c *Context) {
	b := n.current
	bounds := make([]*data.Bounds, len(b.valid))
	centroids := make([]r3.Vec, len(b.valid))
	for i, cl := range b.valid {
		bounds[i] = &data.Bounds{Box: cl.Bounds, IO: cl.Edges}
		centroids[i] = geom.Center(cl.Bounds)
	}
	data.FindOverlaps(bounds)
	for _, r := range bounds {
		if len(r.Overlaps) > 0 {
			c.Logger.Debug("[Bridge] Cluster bounds overlap, bridges may cross other clusters",
				"edges", r.IO.IOIndex, "overlaps", len(r.Overlaps))
		}
	}
	pairs, err := BridgePairs(n.Settings.Method, centroids, n.Settings.Projection, c.Logger)
	if err != nil {
		c.Logger.Warn("[Bridge] Triangulation failed, no bridges for this batch. Are cluster centers coplanar? If so use delaunay2d",
			"method", string(n.Settings.Method), "clusters", len(centroids), "error", err)
		pairs = nil
	}
	b.pairs = pairs
}

func (n *BridgeClusters) startBridges(c *Context) error {
	b := n.current
	vtxEndpoints, err := data.NewReader[int64](b.Vtx, data.Out, graph.AttrVtxEndpoint)
	if err != nil {
		return err
	}
	b.vtxIDs = make([]uint32, len(vtxEndpoints.Values))
	b.degrees = make([]atomic.Uint32, len(vtxEndpoints.Values))
	for i, v := range vtxEndpoints.Values {
		id, degree := geom.UnpackEndpoint(v)
		b.vtxIDs[i] = id
		b.degrees[i].Store(degree)
	}

	b.firstBridge = b.composite.ReservePoints(len(b.pairs))
	b.endpoints = make([]int64, len(b.pairs))
	vtxPoints := b.Vtx.Out.Points

	for k, pair := range b.pairs {
		ca, cb := b.valid[pair[0]], b.valid[pair[1]]
		_, err := c.Manager.Start("bridge", func(context.Context) error {
			na, nb, _, err := graph.ClosestNodePair(ca, cb)
			if err != nil {
				return err
			}
			pa, pb := ca.Nodes[na].PointIndex, cb.Nodes[nb].PointIndex
			mid := geom.Lerp(vtxPoints[pa].Position(), vtxPoints[pb].Position(), 0.5)
			if err := b.composite.UpdatePoint(b.firstBridge+k, func(p *data.Point) {
				p.Transform.Location = mid
			}); err != nil {
				return err
			}
			b.degrees[pa].Add(1)
			b.degrees[pb].Add(1)
			b.endpoints[k] = geom.PackEndpoint(b.vtxIDs[pa], b.vtxIDs[pb])
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *BridgeClusters) write() error {
	b := n.current

	ew, err := data.NewWriter(b.composite, graph.AttrEdgeEndpoints, int64(0), false)
	if err != nil {
		return err
	}
	for k, v := range b.endpoints {
		ew.Set(b.firstBridge+k, v)
	}
	if err := ew.Write(); err != nil {
		return err
	}

	vw, err := data.NewWriter(b.Vtx, graph.AttrVtxEndpoint, int64(0), false)
	if err != nil {
		return err
	}
	for i := range b.vtxIDs {
		vw.Set(i, geom.PackEndpoint(b.vtxIDs[i], b.degrees[i].Load()))
	}
	if err := vw.Write(); err != nil {
		return err
	}

	// The id is always overwritten so merged vtx never inherit a stale one.
	id := b.Vtx.Out.UID
	for _, io := range []*data.PointIO{b.Vtx, b.composite} {
		if err := writeClusterID(io, id); err != nil {
			return err
		}
	}
	graph.MarkVtx(b.Vtx, id)
	graph.MarkEdges(b.composite, id)

	for _, e := range b.Edges {
		e.Disable()
	}
	metrics.BridgesCreated.WithLabelValues(string(n.Settings.Method)).Add(float64(len(b.pairs)))
	return nil
}
