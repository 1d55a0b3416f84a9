package nodes

import (
	"context"
	"fmt"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/graph"
)

// CopyToPointsSettings configures CopyClustersToPoints.
type CopyToPointsSettings struct {
	InheritRotation bool `yaml:"inherit_rotation" json:"inherit_rotation"`
	InheritScale    bool `yaml:"inherit_scale" json:"inherit_scale"`
}

// CopyClustersToPoints places a copy of every cluster on every target
// point. Copies get fresh cluster ids; the input clusters are not staged.
// Inputs are not sanitized.
type CopyClustersToPoints struct {
	Settings CopyToPointsSettings

	targets  []data.Point
	batches  []graph.Batch
	outVtx   *data.Collection
	outEdges *data.Collection
}

// NewCopyClustersToPoints returns the node.
func NewCopyClustersToPoints(settings CopyToPointsSettings) *CopyClustersToPoints {
	return &CopyClustersToPoints{Settings: settings}
}

func (n *CopyClustersToPoints) Name() string { return "CopyClustersToPoints" }

func (n *CopyClustersToPoints) Boot(c *Context) error {
	for _, t := range c.InputsOn(PinTargets) {
		if t.Data != nil {
			n.targets = append(n.targets, t.Data.Points...)
		}
	}
	if len(n.targets) == 0 {
		return fmt.Errorf("%w: no target points", ErrNoValidInputs)
	}

	var err error
	if _, _, n.batches, err = clusterInputs(c, "CopyToPoints", data.NoOutput, data.NoOutput); err != nil {
		return err
	}
	n.outVtx = data.NewCollection(PinVtx)
	n.outEdges = data.NewCollection(PinEdges)
	return nil
}

func (n *CopyClustersToPoints) Advance(c *Context) (bool, error) {
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

	case StateDone:
		n.outVtx.OutputTo(c.Staging, -1, -1)
		n.outEdges.OutputTo(c.Staging, -1, -1)
		return true, nil
	}
	return false, nil
}

// targetTransform returns the transform applied to copies placed on t.
func (n *CopyClustersToPoints) targetTransform(t data.Point) data.Transform {
	xf := data.IdentityTransform()
	xf.Location = t.Transform.Location
	if n.Settings.InheritRotation {
		xf.Rotation = t.Transform.Rotation
	}
	if n.Settings.InheritScale {
		xf.Scale = t.Transform.Scale
	}
	return xf
}

func (n *CopyClustersToPoints) start(c *Context) error {
	type copyJob struct {
		vtx   *data.PointIO
		edges []*data.PointIO
		xf    data.Transform
	}

	// Every copy is emplaced up front so staging order is batch then target.
	var jobs []copyJob
	for _, b := range n.batches {
		for _, t := range n.targets {
			job := copyJob{
				vtx: n.outVtx.Emplace(b.Vtx.In, b.Vtx.Tags.Clone(), data.DuplicateInput),
				xf:  n.targetTransform(t),
			}
			for _, e := range b.Edges {
				job.edges = append(job.edges, n.outEdges.Emplace(e.In, e.Tags.Clone(), data.DuplicateInput))
			}
			jobs = append(jobs, job)
		}
	}

	for _, job := range jobs {
		if _, err := c.Manager.Start("copy-cluster", func(context.Context) error {
			id := job.vtx.Out.UID
			applyTransform(job.vtx.Out, job.xf)
			if err := writeClusterID(job.vtx, id); err != nil {
				return err
			}
			graph.MarkVtx(job.vtx, id)
			for _, e := range job.edges {
				applyTransform(e.Out, job.xf)
				if err := writeClusterID(e, id); err != nil {
					return err
				}
				graph.MarkEdges(e, id)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func applyTransform(d *data.PointData, xf data.Transform) {
	for i := range d.Points {
		d.Points[i].Transform = d.Points[i].Transform.Compose(xf)
	}
}
