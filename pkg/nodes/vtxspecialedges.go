package nodes

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/graph"
)

// VtxSpecialEdgesSettings configures WriteVtxSpecialEdges. Every attribute
// name starts with Prefix.
type VtxSpecialEdgesSettings struct {
	Prefix string `yaml:"prefix" json:"prefix,omitempty"`
}

// Attribute name suffixes written by WriteVtxSpecialEdges.
const (
	AttrShortestDir    = "ShortestDir"
	AttrShortestLength = "ShortestLength"
	AttrShortestIndex  = "ShortestIndex"
	AttrLongestDir     = "LongestDir"
	AttrLongestLength  = "LongestLength"
	AttrLongestIndex   = "LongestIndex"
	AttrAverageDir     = "AverageDir"
	AttrAverageLength  = "AverageLength"
)

// WriteVtxSpecialEdges writes, on every vertex, the direction, length and
// neighbor index of its shortest and longest adjacent edge, plus the mean
// direction and length of all of them. Vertices without edges keep the
// defaults (zero vectors and lengths, index -1).
type WriteVtxSpecialEdges struct {
	Settings VtxSpecialEdgesSettings

	vtx     *data.Collection
	edges   *data.Collection
	batches []graph.Batch
	entries []*batchCluster
}

// NewWriteVtxSpecialEdges returns the node.
func NewWriteVtxSpecialEdges(settings VtxSpecialEdgesSettings) *WriteVtxSpecialEdges {
	return &WriteVtxSpecialEdges{Settings: settings}
}

func (n *WriteVtxSpecialEdges) Name() string { return "WriteVtxSpecialEdges" }

func (n *WriteVtxSpecialEdges) Boot(c *Context) error {
	vtx, edges, batches, err := clusterInputs(c, "VtxSpecialEdges", data.DuplicateInput, data.Forward)
	if err != nil {
		return err
	}
	n.vtx, n.edges, n.batches = vtx, edges, batches
	n.entries = flattenBatches(batches)
	return nil
}

func (n *WriteVtxSpecialEdges) Advance(c *Context) (bool, error) {
	if c.IsState(StateSetup) {
		c.SetState(StateProcessingClusters)
	}

	switch c.State() {
	case StateProcessingClusters:
		done, err := c.Phase(func() error { return startClusterBuilds(c, n.entries, data.In) })
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

// startWrites submits one task per vertex set. Edge sets sharing a vertex
// set are applied in order, so a vertex referenced by several of them ends
// up with the values of the last one.
func (n *WriteVtxSpecialEdges) startWrites(c *Context) error {
	invalid := 0
	byBatch := make([][]*graph.Cluster, len(n.batches))
	for _, e := range n.entries {
		if !e.cluster.Valid() {
			invalid++
			continue
		}
		byBatch[e.batch] = append(byBatch[e.batch], e.cluster)
	}
	if invalid > 0 {
		c.Logger.Warn("[VtxSpecialEdges] Some vtx/edges groups have invalid clusters. Make sure to sanitize the input first.",
			"invalid", invalid)
	}

	for b, batch := range n.batches {
		clusters := byBatch[b]
		if _, err := c.Manager.Start("vtx-special-edges", func(context.Context) error {
			return n.write(batch.Vtx, clusters)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (n *WriteVtxSpecialEdges) write(vtx *data.PointIO, clusters []*graph.Cluster) error {
	p := n.Settings.Prefix
	var errs []error
	vec := func(name string) *data.Writer[r3.Vec] {
		w, err := data.NewWriterDefault(vtx, p+name, r3.Vec{}, true)
		errs = append(errs, err)
		return w
	}
	length := func(name string) *data.Writer[float64] {
		w, err := data.NewWriterDefault(vtx, p+name, 0.0, true)
		errs = append(errs, err)
		return w
	}
	index := func(name string) *data.Writer[int64] {
		w, err := data.NewWriterDefault(vtx, p+name, int64(-1), false)
		errs = append(errs, err)
		return w
	}

	shortestDir, shortestLen, shortestIdx := vec(AttrShortestDir), length(AttrShortestLength), index(AttrShortestIndex)
	longestDir, longestLen, longestIdx := vec(AttrLongestDir), length(AttrLongestLength), index(AttrLongestIndex)
	averageDir, averageLen := vec(AttrAverageDir), length(AttrAverageLength)
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, cl := range clusters {
		for i := range cl.Nodes {
			node := &cl.Nodes[i]
			s := cl.SpecialEdgesOf(i)
			pt := node.PointIndex
			if s.ShortestNode >= 0 {
				shortestDir.Set(pt, s.ShortestDirection)
				shortestLen.Set(pt, s.ShortestLength)
				shortestIdx.Set(pt, int64(cl.Nodes[s.ShortestNode].PointIndex))
			}
			if s.LongestNode >= 0 {
				longestDir.Set(pt, s.LongestDirection)
				longestLen.Set(pt, s.LongestLength)
				longestIdx.Set(pt, int64(cl.Nodes[s.LongestNode].PointIndex))
			}
			averageDir.Set(pt, s.AverageDirection)
			averageLen.Set(pt, s.AverageLength)
		}
	}

	return errors.Join(
		shortestDir.Write(), shortestLen.Write(), shortestIdx.Write(),
		longestDir.Write(), longestLen.Write(), longestIdx.Write(),
		averageDir.Write(), averageLen.Write(),
	)
}
