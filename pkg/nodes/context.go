// Package nodes implements the cluster processing nodes. Each node is a
// small state machine advanced one tick at a time; Run drives it to
// completion and stages its outputs.
package nodes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/metrics"
	"github.com/sanonone/pcgcluster/pkg/mt"
)

// Input and output pin labels.
const (
	PinPoints  = "Points"
	PinVtx     = "Vtx"
	PinEdges   = "Edges"
	PinTargets = "Targets"
)

var (
	// ErrNoValidInputs is returned by Boot when nothing can be processed.
	ErrNoValidInputs = errors.New("no valid inputs")
	// ErrCancelled is returned by Run when execution was cancelled. Outputs
	// are discarded.
	ErrCancelled = mt.ErrCancelled
)

// State is the execution state of a node.
type State int

const (
	StateSetup State = iota
	StateReadyForNextGraph
	StateReadyForNextPoints
	StateProcessingPoints
	StateProcessingPoints2ndPass
	StateProcessingPoints3rdPass
	StateReadyForNextBatch
	StateProcessingClusters
	StateMerging
	StateBridging
	StateWriting
	StateDone
)

var stateNames = map[State]string{
	StateSetup:                   "setup",
	StateReadyForNextGraph:       "ready-for-next-graph",
	StateReadyForNextPoints:      "ready-for-next-points",
	StateProcessingPoints:        "processing-points",
	StateProcessingPoints2ndPass: "processing-points-2nd-pass",
	StateProcessingPoints3rdPass: "processing-points-3rd-pass",
	StateReadyForNextBatch:       "ready-for-next-batch",
	StateProcessingClusters:      "processing-clusters",
	StateMerging:                 "merging",
	StateBridging:                "bridging",
	StateWriting:                 "writing",
	StateDone:                    "done",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Element is a node implementation.
type Element interface {
	Name() string
	// Boot validates settings and inputs. An error here aborts the node
	// before any work is done.
	Boot(c *Context) error
	// Advance runs one tick and reports whether the node is done.
	Advance(c *Context) (bool, error)
}

// Context carries the services and the execution state of one node run.
type Context struct {
	Inputs  []data.TaggedData
	Staging *data.Staging
	Manager *mt.Manager
	Logger  *slog.Logger
	// ChunkSize is the scope size used for parallel loops over points.
	ChunkSize int

	state        State
	phaseStarted bool
}

// NewContext returns a context in StateSetup.
func NewContext(ctx context.Context, inputs []data.TaggedData, workers int, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Inputs:    inputs,
		Staging:   &data.Staging{},
		Manager:   mt.NewManager(ctx, workers, logger),
		Logger:    logger,
		ChunkSize: 256,
	}
}

// State returns the current state.
func (c *Context) State() State { return c.state }

// SetState moves to s.
func (c *Context) SetState(s State) { c.state = s }

// IsState reports whether the current state is s.
func (c *Context) IsState(s State) bool { return c.state == s }

// InputsOn returns the inputs connected to pin.
func (c *Context) InputsOn(pin string) []data.TaggedData {
	var out []data.TaggedData
	for _, in := range c.Inputs {
		if in.Pin == pin {
			out = append(out, in)
		}
	}
	return out
}

// Phase starts work on the first call and reports true once every task it
// submitted returned. Later calls only poll.
func (c *Context) Phase(start func() error) (bool, error) {
	if !c.phaseStarted {
		c.phaseStarted = true
		if err := start(); err != nil {
			c.phaseStarted = false
			return false, err
		}
	}
	if !c.Manager.IsWorkComplete() {
		return false, nil
	}
	c.phaseStarted = false
	if err := c.Manager.Err(); err != nil {
		return false, err
	}
	c.Manager.Reset()
	return true, nil
}

// RunOptions tunes Run.
type RunOptions struct {
	Workers int
	Logger  *slog.Logger
	// TickInterval is how long the driver sleeps between ticks while tasks
	// are in flight.
	TickInterval time.Duration
	ChunkSize    int
}

// Run boots el and advances it until it is done, ctx is cancelled or a tick
// fails. On cancellation in-flight tasks are allowed to finish and the
// outputs are discarded.
func Run(ctx context.Context, el Element, inputs []data.TaggedData, opts RunOptions) (*data.Staging, error) {
	start := time.Now()
	c := NewContext(ctx, inputs, opts.Workers, opts.Logger)
	if opts.ChunkSize > 0 {
		c.ChunkSize = opts.ChunkSize
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = time.Millisecond
	}

	result := "ok"
	defer func() {
		metrics.NodeDuration.WithLabelValues(el.Name(), result).Observe(time.Since(start).Seconds())
	}()

	if err := el.Boot(c); err != nil {
		result = "error"
		c.Logger.Error("["+el.Name()+"] Boot failed", "error", err)
		return nil, fmt.Errorf("%s: %w", el.Name(), err)
	}

	for {
		if ctx.Err() != nil {
			result = "cancelled"
			c.Manager.Cancel()
			_ = c.Manager.Wait()
			c.Logger.Info("["+el.Name()+"] Execution cancelled, discarding outputs", "state", c.state.String())
			return nil, ErrCancelled
		}

		done, err := el.Advance(c)
		if err != nil {
			result = "error"
			c.Manager.Cancel()
			_ = c.Manager.Wait()
			return nil, fmt.Errorf("%s (%s): %w", el.Name(), c.state, err)
		}
		if done {
			return c.Staging, nil
		}

		if !c.Manager.IsWorkComplete() {
			select {
			case <-ctx.Done():
			case <-time.After(tick):
			}
		}
	}
}
