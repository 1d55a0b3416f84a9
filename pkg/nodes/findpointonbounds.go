package nodes

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/geom"
)

// OutputMode selects how per-cluster results are staged.
type OutputMode string

const (
	// OutputMerged stages a single point set holding every result.
	OutputMerged OutputMode = "merged"
	// OutputIndividual stages one point set per cluster.
	OutputIndividual OutputMode = "individual"
)

// FindPointOnBoundsSettings configures FindPointOnBounds.
type FindPointOnBoundsSettings struct {
	// UVW is the position in the cluster bounds, each component in [-1, 1].
	UVW        r3.Vec     `yaml:"uvw" json:"uvw"`
	SearchMode SearchMode `yaml:"search_mode" json:"search_mode" validate:"required,oneof=node edge"`
	OutputMode OutputMode `yaml:"output_mode" json:"output_mode" validate:"required,oneof=merged individual"`
}

// FindPointOnBounds outputs, for each cluster, a copy of the vertex (or
// edge point) closest to a relative position in the cluster bounds.
type FindPointOnBounds struct {
	Settings FindPointOnBoundsSettings

	entries []*batchCluster
	picks   *data.Collection
	merged  *data.Collection
	merger  *data.Merger
}

// NewFindPointOnBounds returns the node.
func NewFindPointOnBounds(settings FindPointOnBoundsSettings) *FindPointOnBounds {
	return &FindPointOnBounds{Settings: settings}
}

func (n *FindPointOnBounds) Name() string { return "FindPointOnBounds" }

func (n *FindPointOnBounds) Boot(c *Context) error {
	uvw := n.Settings.UVW
	for _, v := range []float64{uvw.X, uvw.Y, uvw.Z} {
		if v < -1 || v > 1 {
			return fmt.Errorf("uvw %v out of [-1, 1]", uvw)
		}
	}
	switch n.Settings.SearchMode {
	case SearchNode, SearchEdge:
	default:
		return fmt.Errorf("unknown search mode %q", n.Settings.SearchMode)
	}

	_, _, batches, err := clusterInputs(c, "FindPointOnBounds", data.NoOutput, data.NoOutput)
	if err != nil {
		return err
	}
	n.entries = flattenBatches(batches)
	n.picks = data.NewCollection(PinPoints)
	n.merged = data.NewCollection(PinPoints)
	return nil
}

func (n *FindPointOnBounds) Advance(c *Context) (bool, error) {
	if c.IsState(StateSetup) {
		c.SetState(StateProcessingClusters)
	}

	switch c.State() {
	case StateProcessingClusters:
		done, err := c.Phase(func() error { return startClusterBuilds(c, n.entries, data.In) })
		if err != nil || !done {
			return false, err
		}
		n.pickPoints(c)
		if n.Settings.OutputMode == OutputMerged {
			c.SetState(StateMerging)
		} else {
			c.SetState(StateDone)
		}

	case StateMerging:
		done, err := c.Phase(func() error { return n.merge(c) })
		if err != nil || !done {
			return false, err
		}
		c.SetState(StateDone)

	case StateDone:
		if n.Settings.OutputMode == OutputMerged {
			n.merged.OutputTo(c.Staging, 1, -1)
		} else {
			n.picks.OutputTo(c.Staging, 1, -1)
		}
		return true, nil
	}
	return false, nil
}

func (n *FindPointOnBounds) pickPoints(c *Context) {
	skipped := 0
	for _, e := range n.entries {
		cl := e.cluster
		target := geom.PointAtUVW(cl.Bounds, n.Settings.UVW)

		src, index := e.vtx, -1
		switch n.Settings.SearchMode {
		case SearchNode:
			if node := cl.FindClosestNode(target); node >= 0 {
				index = cl.Nodes[node].PointIndex
			}
		case SearchEdge:
			src, index = e.edgeIO, cl.FindClosestEdge(target)
		}
		if index < 0 {
			skipped++
			continue
		}

		io := n.picks.Emplace(src.In, src.Tags.Clone(), data.NewOutput)
		io.CopyPoint(src.InPoint(index))
	}
	if skipped > 0 {
		c.Logger.Warn("[FindPointOnBounds] Some clusters have no valid node or edge", "skipped", skipped)
	}
}

func (n *FindPointOnBounds) merge(c *Context) error {
	composite := n.merged.EmplaceNew()
	n.merger = data.NewMerger(composite, c.Logger)
	for i, io := range n.picks.Pairs {
		// The merger reads inputs, so each pick is wrapped as one.
		n.merger.Append(data.NewPointIO(io.Out, io.Tags, i))
	}
	if err := n.merger.Merge(c.Manager, nil); err != nil {
		return err
	}
	return n.merger.Write(c.Manager)
}
