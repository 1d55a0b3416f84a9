package nodes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/geom"
)

// SearchMode selects what part of a cluster is measured against a position.
type SearchMode string

const (
	SearchNode SearchMode = "node"
	SearchEdge SearchMode = "edge"
)

// PickMode controls whether several targets may pick the same cluster.
type PickMode string

const (
	// PickOnlyBest lets every target pick its closest cluster.
	PickOnlyBest PickMode = "only-best"
	// PickNextBest skips clusters already picked by an earlier target.
	PickNextBest PickMode = "next-best"
)

// FilterAction is what happens to picked and unpicked clusters.
type FilterAction string

const (
	ActionKeep FilterAction = "keep"
	ActionOmit FilterAction = "omit"
	ActionTag  FilterAction = "tag"
)

// PickClosestSettings configures PickClosestClusters.
type PickClosestSettings struct {
	SearchMode SearchMode   `yaml:"search_mode" json:"search_mode" validate:"required,oneof=node edge"`
	PickMode   PickMode     `yaml:"pick_mode" json:"pick_mode" validate:"required,oneof=only-best next-best"`
	Action     FilterAction `yaml:"action" json:"action" validate:"required,oneof=keep omit tag"`
	KeepTag    string       `yaml:"keep_tag" json:"keep_tag,omitempty"`
	OmitTag    string       `yaml:"omit_tag" json:"omit_tag,omitempty"`
}

// PickClosestClusters picks, for each target point, the cluster closest to
// it and keeps, omits or tags the picked clusters.
type PickClosestClusters struct {
	Settings PickClosestSettings

	vtx     *data.Collection
	edges   *data.Collection
	targets []r3.Vec
	entries []*batchCluster

	// distances[i][t] is the distance of cluster i to target t.
	distances [][]float64
	picked    []bool
}

// NewPickClosestClusters returns the node.
func NewPickClosestClusters(settings PickClosestSettings) *PickClosestClusters {
	return &PickClosestClusters{Settings: settings}
}

func (n *PickClosestClusters) Name() string { return "PickClosestClusters" }

func (n *PickClosestClusters) Boot(c *Context) error {
	switch n.Settings.SearchMode {
	case SearchNode, SearchEdge:
	default:
		return fmt.Errorf("unknown search mode %q", n.Settings.SearchMode)
	}
	if n.Settings.Action == ActionTag && n.Settings.KeepTag == "" && n.Settings.OmitTag == "" {
		return fmt.Errorf("action %q needs a keep or omit tag", ActionTag)
	}

	for _, t := range c.InputsOn(PinTargets) {
		if t.Data != nil {
			n.targets = append(n.targets, t.Data.Positions()...)
		}
	}
	if len(n.targets) == 0 {
		return fmt.Errorf("%w: no target points", ErrNoValidInputs)
	}

	vtx, edges, batches, err := clusterInputs(c, "PickClosest", data.Forward, data.Forward)
	if err != nil {
		return err
	}
	n.vtx, n.edges = vtx, edges
	n.entries = flattenBatches(batches)
	return nil
}

func (n *PickClosestClusters) Advance(c *Context) (bool, error) {
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
		done, err := c.Phase(func() error { return n.startSearch(c) })
		if err != nil || !done {
			return false, err
		}
		n.pick()
		n.apply()
		c.SetState(StateDone)

	case StateDone:
		n.vtx.OutputTo(c.Staging, -1, -1)
		n.edges.OutputTo(c.Staging, -1, -1)
		return true, nil
	}
	return false, nil
}

func (n *PickClosestClusters) startSearch(c *Context) error {
	n.distances = make([][]float64, len(n.entries))
	return c.Manager.ParallelFor("search", len(n.entries), 1, func(i int) {
		cl := n.entries[i].cluster
		d := make([]float64, len(n.targets))
		for t, pos := range n.targets {
			d[t] = math.Inf(1)
			switch n.Settings.SearchMode {
			case SearchNode:
				if node := cl.FindClosestNode(pos); node >= 0 {
					d[t] = geom.Dist(cl.Pos(node), pos)
				}
			case SearchEdge:
				if e := cl.FindClosestEdge(pos); e >= 0 {
					mid, _ := cl.EdgeMidpoint(e)
					d[t] = geom.Dist(mid, pos)
				}
			}
		}
		n.distances[i] = d
	})
}

func (n *PickClosestClusters) pick() {
	n.picked = make([]bool, len(n.entries))
	for t := range n.targets {
		best, bestDist := -1, math.Inf(1)
		for i := range n.entries {
			if n.Settings.PickMode == PickNextBest && n.picked[i] {
				continue
			}
			if d := n.distances[i][t]; d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			n.picked[best] = true
		}
	}
}

func (n *PickClosestClusters) apply() {
	// A vertex set survives as long as one of its edge sets does.
	type usage struct{ picked, unpicked bool }
	vtx := make(map[*data.PointIO]*usage)
	var order []*data.PointIO
	for i, e := range n.entries {
		u, ok := vtx[e.vtx]
		if !ok {
			u = &usage{}
			vtx[e.vtx] = u
			order = append(order, e.vtx)
		}
		if n.picked[i] {
			u.picked = true
		} else {
			u.unpicked = true
		}
		n.applyTo(e.edgeIO, n.picked[i])
	}
	for _, io := range order {
		u := vtx[io]
		switch n.Settings.Action {
		case ActionOmit:
			n.applyTo(io, !u.unpicked)
		default:
			n.applyTo(io, u.picked)
		}
	}
}

func (n *PickClosestClusters) applyTo(io *data.PointIO, picked bool) {
	switch n.Settings.Action {
	case ActionKeep:
		if !picked {
			io.Disable()
		}
	case ActionOmit:
		if picked {
			io.Disable()
		}
	case ActionTag:
		if picked && n.Settings.KeepTag != "" {
			io.Tags.Add(n.Settings.KeepTag)
		} else if !picked && n.Settings.OmitTag != "" {
			io.Tags.Add(n.Settings.OmitTag)
		}
	}
}
