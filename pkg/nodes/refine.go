package nodes

import (
	"context"
	"fmt"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/graph"
)

// Refinement selects which edges RefineEdges keeps.
type Refinement string

const (
	// RefineKeepShortest keeps, for every node, its shortest adjacent edge.
	RefineKeepShortest Refinement = "keep-shortest"
)

// RefineEdgesSettings configures RefineEdges.
type RefineEdgesSettings struct {
	Refinement Refinement `yaml:"refinement" json:"refinement" validate:"omitempty,oneof=keep-shortest"`
}

// RefineEdges rewrites every edge set with only the edges a refinement
// keeps. Vertex sets are forwarded; edge sets of invalid clusters are
// dropped.
type RefineEdges struct {
	Settings RefineEdgesSettings

	vtx     *data.Collection
	edges   *data.Collection
	entries []*batchCluster
	flags   []graph.EdgeFlags
}

// NewRefineEdges returns the node.
func NewRefineEdges(settings RefineEdgesSettings) *RefineEdges {
	if settings.Refinement == "" {
		settings.Refinement = RefineKeepShortest
	}
	return &RefineEdges{Settings: settings}
}

func (n *RefineEdges) Name() string { return "RefineEdges" }

func (n *RefineEdges) Boot(c *Context) error {
	if n.Settings.Refinement != RefineKeepShortest {
		return fmt.Errorf("unknown refinement %q", n.Settings.Refinement)
	}
	vtx, edges, batches, err := clusterInputs(c, "Refine", data.Forward, data.NewOutput)
	if err != nil {
		return err
	}
	n.vtx, n.edges = vtx, edges
	n.entries = flattenBatches(batches)
	return nil
}

func (n *RefineEdges) Advance(c *Context) (bool, error) {
	if c.IsState(StateSetup) {
		c.SetState(StateProcessingClusters)
	}

	switch c.State() {
	case StateProcessingClusters:
		done, err := c.Phase(func() error { return startClusterBuilds(c, n.entries, data.In) })
		if err != nil || !done {
			return false, err
		}
		c.SetState(StateProcessingPoints)

	case StateProcessingPoints:
		done, err := c.Phase(func() error { return n.startRefinement(c) })
		if err != nil || !done {
			return false, err
		}
		c.SetState(StateWriting)

	case StateWriting:
		done, err := c.Phase(func() error { return n.startWrites(c) })
		if err != nil || !done {
			return false, err
		}
		c.SetState(StateDone)

	case StateDone:
		n.vtx.OutputTo(c.Staging, -1, -1)
		n.edges.OutputTo(c.Staging, -1, -1)
		return true, nil
	}
	return false, nil
}

func (n *RefineEdges) startRefinement(c *Context) error {
	n.flags = make([]graph.EdgeFlags, len(n.entries))
	invalid := 0
	for i, e := range n.entries {
		if !e.cluster.Valid() {
			e.edgeIO.Disable()
			invalid++
			continue
		}
		n.flags[i] = graph.NewEdgeFlags(e.cluster)
		if err := graph.StartKeepShortest(c.Manager, e.cluster, c.ChunkSize, n.flags[i]); err != nil {
			return err
		}
	}
	if invalid > 0 {
		c.Logger.Warn("[Refine] Some vtx/edges groups have invalid clusters. Make sure to sanitize the input first.",
			"invalid", invalid)
	}
	return nil
}

func (n *RefineEdges) startWrites(c *Context) error {
	for i, e := range n.entries {
		if n.flags[i] == nil {
			continue
		}
		flags := n.flags[i]
		if _, err := c.Manager.Start("refine-write", func(context.Context) error {
			kept := 0
			for edge := range flags {
				if flags[edge].Load() {
					e.edgeIO.CopyPoint(e.edgeIO.InPoint(edge))
					kept++
				}
			}
			c.Logger.Debug("[Refine] Edges kept", "io", e.edgeIO.IOIndex, "kept", kept, "total", len(flags))
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
