package nodes

import (
	"context"
	"fmt"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/graph"
)

// DeleteGraphSettings configures DeleteGraph.
type DeleteGraphSettings struct {
	Graphs []*graph.GraphParams `yaml:"graphs" json:"graphs" validate:"required,min=1,dive"`
}

// DeleteGraph strips the socket attributes and the cached index of every
// graph definition from its inputs.
type DeleteGraph struct {
	Settings DeleteGraphSettings

	points *data.Collection
}

// NewDeleteGraph returns the node.
func NewDeleteGraph(settings DeleteGraphSettings) *DeleteGraph {
	return &DeleteGraph{Settings: settings}
}

func (n *DeleteGraph) Name() string { return "DeleteGraph" }

func (n *DeleteGraph) Boot(c *Context) error {
	if len(n.Settings.Graphs) == 0 {
		return fmt.Errorf("%w: no graph definition", ErrNoValidInputs)
	}
	for _, g := range n.Settings.Graphs {
		g.Bind()
	}
	n.points = data.NewCollectionFrom(PinPoints, c.Inputs, PinPoints, data.DuplicateInput)
	if n.points.Num() == 0 {
		return fmt.Errorf("%w: no points", ErrNoValidInputs)
	}
	return nil
}

func (n *DeleteGraph) Advance(c *Context) (bool, error) {
	if c.IsState(StateSetup) {
		c.SetState(StateProcessingPoints)
	}

	switch c.State() {
	case StateProcessingPoints:
		done, err := c.Phase(func() error {
			for _, io := range n.points.Pairs {
				if _, err := c.Manager.Start("delete-graph", func(context.Context) error {
					removed := 0
					for _, g := range n.Settings.Graphs {
						removed += g.DeleteFrom(io.Out.Metadata)
					}
					c.Logger.Debug("[DeleteGraph] Removed graph attributes", "io", io.IOIndex, "count", removed)
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil || !done {
			return false, err
		}
		c.SetState(StateDone)

	case StateDone:
		n.points.OutputTo(c.Staging, -1, -1)
		return true, nil
	}
	return false, nil
}
