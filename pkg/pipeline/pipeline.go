// Package pipeline chains cluster nodes from a YAML description: inputs are
// loaded or declared inline, each step runs one node over the data staged
// by the previous steps, and the final collection can be saved to a file.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/graph"
	"github.com/sanonone/pcgcluster/pkg/nodes"
	"github.com/sanonone/pcgcluster/pkg/persistence"
)

// Pipeline runs the steps of a Config.
type Pipeline struct {
	ID     string
	cfg    Config
	steps  []nodes.Element
	logger *slog.Logger
}

// New validates cfg and builds its nodes.
func New(cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{ID: uuid.New().String(), cfg: cfg, logger: logger}
	for _, s := range cfg.Steps {
		el, err := s.Element()
		if err != nil {
			return nil, err
		}
		p.steps = append(p.steps, el)
	}
	return p, nil
}

// Run executes every step in order. A step receives everything staged so
// far; its outputs replace the data on the pins it produced.
func (p *Pipeline) Run(ctx context.Context, inputs []data.TaggedData) ([]data.TaggedData, error) {
	current := inputs
	opts := nodes.RunOptions{
		Workers:      p.cfg.Workers,
		Logger:       p.logger,
		TickInterval: time.Duration(p.cfg.TickInterval),
		ChunkSize:    p.cfg.ChunkSize,
	}

	for i, el := range p.steps {
		label := p.cfg.Steps[i].label(el)
		start := time.Now()
		staging, err := nodes.Run(ctx, el, current, opts)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, label, err)
		}
		outputs := staging.Outputs()
		p.logger.Info("[Pipeline] Step done", "run", p.ID, "step", label,
			"inputs", len(current), "outputs", len(outputs), "duration", time.Since(start))
		current = carryOver(current, outputs)
	}
	return current, nil
}

// carryOver returns outputs followed by the items of previous on pins that
// outputs does not use.
func carryOver(previous, outputs []data.TaggedData) []data.TaggedData {
	produced := make(map[string]bool)
	for _, o := range outputs {
		produced[o.Pin] = true
	}
	next := append([]data.TaggedData(nil), outputs...)
	for _, d := range previous {
		if !produced[d.Pin] {
			next = append(next, d)
		}
	}
	return next
}

// Save writes data to the configured output file, if any.
func (p *Pipeline) Save(outputs []data.TaggedData) error {
	if p.cfg.Output == "" {
		return nil
	}
	h, err := persistence.SaveFile(p.cfg.Output, outputs)
	if err != nil {
		return err
	}
	p.logger.Info("[Pipeline] Outputs saved", "run", p.ID, "path", p.cfg.Output, "file_id", h.ID, "count", h.Count)
	return nil
}

// LoadInputs materializes every input of cfg. Files are read concurrently;
// the result keeps declaration order. Inputs not started yet are skipped once
// ctx is done or another input failed.
func LoadInputs(ctx context.Context, cfg Config) ([]data.TaggedData, error) {
	loaded := make([][]data.TaggedData, len(cfg.Inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range cfg.Inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items, err := loadInput(in)
			if err != nil {
				return fmt.Errorf("inputs[%d]: %w", i, err)
			}
			loaded[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []data.TaggedData
	for _, items := range loaded {
		out = append(out, items...)
	}
	return out, nil
}

func loadInput(in InputConfig) ([]data.TaggedData, error) {
	switch {
	case in.File != "":
		_, items, err := persistence.LoadFile(in.File)
		return items, err

	case in.Cluster != nil:
		vtx, edges, err := graph.NewClusterBatch(toVecs(in.Cluster.Positions), in.Cluster.EdgeSets...)
		if err != nil {
			return nil, err
		}
		items := []data.TaggedData{{Pin: nodes.PinVtx, Data: vtx.Out, Tags: vtx.Tags.Flatten()}}
		for _, e := range edges {
			items = append(items, data.TaggedData{Pin: nodes.PinEdges, Data: e.Out, Tags: e.Tags.Flatten()})
		}
		return items, nil

	case in.Points != nil:
		d := data.NewPointData()
		for _, pos := range toVecs(in.Points.Positions) {
			pt := data.NewPoint()
			pt.Transform.Location = pos
			pt.MetadataEntry = d.Metadata.AddEntry()
			d.Points = append(d.Points, pt)
		}
		return []data.TaggedData{{Pin: in.Points.Pin, Data: d}}, nil
	}
	return nil, fmt.Errorf("empty input")
}

func toVecs(positions [][3]float64) []r3.Vec {
	out := make([]r3.Vec, len(positions))
	for i, p := range positions {
		out[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	return out
}
