package nodes

import (
	"fmt"
	"sync"

	"github.com/tidwall/btree"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/graph"
)

// ConsolidateSettings configures ConsolidateGraph.
type ConsolidateSettings struct {
	Graphs []*graph.GraphParams `yaml:"graphs" json:"graphs" validate:"required,min=1,dive"`
	// ConsolidateEdgeType recomputes every edge type once indices are fixed.
	ConsolidateEdgeType bool `yaml:"consolidate_edge_type" json:"consolidate_edge_type"`
}

type relation struct {
	point, socket int
}

// ConsolidateGraph rewrites socket targets after points were pruned or
// reordered. Each point's cached index tells where it used to be; relations
// pointing at points that no longer exist become unknown.
type ConsolidateGraph struct {
	Settings ConsolidateSettings

	graphs []*graph.GraphParams
	points *data.Collection

	graphIndex int
	pointIndex int
	current    *data.PointIO
	access     *graph.GraphAccess

	remapMu sync.RWMutex
	remap   btree.Map[int64, int]

	candidatesMu sync.Mutex
	candidates   []relation
}

// NewConsolidateGraph returns the node.
func NewConsolidateGraph(settings ConsolidateSettings) *ConsolidateGraph {
	return &ConsolidateGraph{Settings: settings}
}

func (n *ConsolidateGraph) Name() string { return "ConsolidateGraph" }

func (n *ConsolidateGraph) Boot(c *Context) error {
	seen := make(map[uint64]struct{})
	for _, g := range n.Settings.Graphs {
		g.Bind()
		h, err := g.Hash()
		if err != nil {
			return fmt.Errorf("hash graph %q: %w", g.Identifier, err)
		}
		if _, dup := seen[h]; dup {
			c.Logger.Debug("[Consolidate] Skipping duplicate graph definition", "graph", g.Identifier)
			continue
		}
		seen[h] = struct{}{}
		n.graphs = append(n.graphs, g)
	}
	if len(n.graphs) == 0 {
		return fmt.Errorf("%w: no graph definition", ErrNoValidInputs)
	}

	n.points = data.NewCollectionFrom(PinPoints, c.Inputs, PinPoints, data.DuplicateInput)
	if n.points.Num() == 0 {
		return fmt.Errorf("%w: no points", ErrNoValidInputs)
	}
	n.graphIndex = -1
	return nil
}

func (n *ConsolidateGraph) Advance(c *Context) (bool, error) {
	if c.IsState(StateSetup) {
		c.SetState(StateReadyForNextGraph)
	}

	if c.IsState(StateReadyForNextGraph) {
		n.graphIndex++
		if n.graphIndex >= len(n.graphs) {
			c.SetState(StateDone)
		} else {
			n.pointIndex = -1
			c.SetState(StateReadyForNextPoints)
		}
	}

	if c.IsState(StateReadyForNextPoints) {
		if n.advancePoints() {
			c.SetState(StateProcessingPoints)
		} else {
			c.SetState(StateReadyForNextGraph)
		}
		return false, nil
	}

	if c.IsState(StateProcessingPoints) {
		done, err := c.Phase(func() error { return n.startFirstPass(c) })
		if err != nil {
			return false, err
		}
		if done {
			c.SetState(StateProcessingPoints2ndPass)
		}
		return false, nil
	}

	if c.IsState(StateProcessingPoints2ndPass) {
		done, err := c.Phase(func() error { return n.startSecondPass(c) })
		if err != nil {
			return false, err
		}
		if done {
			n.classifyCandidates()
			if n.Settings.ConsolidateEdgeType {
				c.SetState(StateProcessingPoints3rdPass)
			} else {
				c.SetState(StateReadyForNextPoints)
			}
		}
		return false, nil
	}

	if c.IsState(StateProcessingPoints3rdPass) {
		done, err := c.Phase(func() error {
			points := n.current.Out.Points
			return c.Manager.ParallelFor("consolidate-edge-types", len(points), c.ChunkSize, func(i int) {
				n.access.ComputeEdgeType(points, i)
			})
		})
		if err != nil {
			return false, err
		}
		if done {
			c.SetState(StateReadyForNextPoints)
		}
		return false, nil
	}

	if c.IsState(StateDone) {
		n.remap = btree.Map[int64, int]{}
		n.points.OutputTo(c.Staging, -1, -1)
		return true, nil
	}
	return false, nil
}

// advancePoints moves to the next point set carrying the current graph.
func (n *ConsolidateGraph) advancePoints() bool {
	g := n.graphs[n.graphIndex]
	for n.pointIndex++; n.pointIndex < len(n.points.Pairs); n.pointIndex++ {
		io := n.points.Pairs[n.pointIndex]
		if g.HasMatchingGraphData(io.Out.Metadata) {
			n.current = io
			return true
		}
	}
	n.current = nil
	return false
}

func (n *ConsolidateGraph) startFirstPass(c *Context) error {
	io := n.current
	if _, err := io.CreateOutKeys(); err != nil {
		return err
	}
	access, err := n.graphs[n.graphIndex].Prepare(io.Out.Metadata)
	if err != nil {
		return err
	}
	n.access = access
	n.remapMu.Lock()
	n.remap = btree.Map[int64, int]{}
	n.remapMu.Unlock()
	n.candidates = n.candidates[:0]

	points := io.Out.Points
	return c.Manager.ParallelFor("consolidate-remap", len(points), c.ChunkSize, func(i int) {
		key := points[i].MetadataEntry
		n.remapMu.Lock()
		defer n.remapMu.Unlock()
		cached := access.CachedIndex.Value(key)
		n.remap.Set(cached, i)
		access.CachedIndex.SetValue(key, int64(i))
	})
}

func (n *ConsolidateGraph) fixedIndex(old int64) int {
	n.remapMu.RLock()
	defer n.remapMu.RUnlock()
	if i, ok := n.remap.Get(old); ok {
		return i
	}
	return -1
}

func (n *ConsolidateGraph) startSecondPass(c *Context) error {
	points := n.current.Out.Points
	access := n.access
	return c.Manager.ParallelFor("consolidate-relations", len(points), c.ChunkSize, func(i int) {
		key := points[i].MetadataEntry
		for s, sa := range access.Sockets {
			old := sa.Target.Value(key)
			if old == -1 {
				continue
			}
			fixed := n.fixedIndex(old)
			if fixed == -1 {
				sa.Target.SetValue(key, -1)
				sa.EntryKey.SetValue(key, data.InvalidEntryKey)
				sa.EdgeType.SetValue(key, int32(graph.EdgeUnknown))
				continue
			}
			sa.Target.SetValue(key, int64(fixed))
			sa.EntryKey.SetValue(key, points[fixed].MetadataEntry)
			if graph.EdgeType(sa.EdgeType.Value(key)) == graph.EdgeUnknown {
				n.candidatesMu.Lock()
				n.candidates = append(n.candidates, relation{point: i, socket: s})
				n.candidatesMu.Unlock()
			}
		}
	})
}

// classifyCandidates evaluates resolved relations that had no edge type,
// once every target of the pass is fixed.
func (n *ConsolidateGraph) classifyCandidates() {
	points := n.current.Out.Points
	for _, r := range n.candidates {
		key := points[r.point].MetadataEntry
		n.access.Sockets[r.socket].EdgeType.SetValue(key, int32(n.access.EdgeTypeOf(points, r.point, r.socket)))
	}
	n.candidates = n.candidates[:0]
}
