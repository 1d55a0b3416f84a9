package data

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/geom"
)

// TaggedData is a point set as it enters or leaves a node.
type TaggedData struct {
	Pin  string
	Data *PointData
	Tags []string
}

// Staging collects the outputs of a node execution.
type Staging struct {
	mu      sync.Mutex
	outputs []TaggedData
}

// Add stages d.
func (s *Staging) Add(d TaggedData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, d)
}

// Outputs returns the staged data in staging order.
func (s *Staging) Outputs() []TaggedData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TaggedData(nil), s.outputs...)
}

// ByPin returns the staged data labelled pin.
func (s *Staging) ByPin(pin string) []TaggedData {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TaggedData
	for _, d := range s.outputs {
		if d.Pin == pin {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of staged outputs.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outputs)
}

// Collection is an ordered list of point sets sharing an output label.
type Collection struct {
	DefaultOutputLabel string
	Pairs              []*PointIO

	mu sync.Mutex
}

// NewCollection returns an empty collection.
func NewCollection(label string) *Collection {
	return &Collection{DefaultOutputLabel: label}
}

// NewCollectionFrom wraps every input on pin (every input when pin is
// empty) and initializes their outputs with mode.
func NewCollectionFrom(label string, inputs []TaggedData, pin string, mode InitMode) *Collection {
	c := NewCollection(label)
	for _, in := range inputs {
		if pin != "" && in.Pin != pin {
			continue
		}
		if in.Data == nil {
			continue
		}
		c.Emplace(in.Data, NewTags(in.Tags...), mode)
	}
	return c
}

// Emplace appends a point set wrapping in.
func (c *Collection) Emplace(in *PointData, tags *Tags, mode InitMode) *PointIO {
	c.mu.Lock()
	defer c.mu.Unlock()
	io := NewPointIO(in, tags, len(c.Pairs))
	io.InitializeOutput(mode)
	c.Pairs = append(c.Pairs, io)
	return io
}

// EmplaceNew appends a point set with no input and an empty output.
func (c *Collection) EmplaceNew() *PointIO {
	return c.Emplace(nil, nil, NewOutput)
}

// EmplaceBranch appends a point set reading from's input and carrying a
// copy of its tags.
func (c *Collection) EmplaceBranch(from *PointIO, mode InitMode) *PointIO {
	return c.Emplace(from.In, from.Tags.Clone(), mode)
}

// Num returns the number of point sets.
func (c *Collection) Num() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Pairs)
}

// Sort orders the point sets by IOIndex.
func (c *Collection) Sort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.SliceStable(c.Pairs, func(i, j int) bool { return c.Pairs[i].IOIndex < c.Pairs[j].IOIndex })
}

// InBounds returns the union of the input bounds.
func (c *Collection) InBounds(source BoundsSource) r3.Box {
	return c.bounds(In, source)
}

// OutBounds returns the union of the output bounds.
func (c *Collection) OutBounds(source BoundsSource) r3.Box {
	return c.bounds(Out, source)
}

func (c *Collection) bounds(side Side, source BoundsSource) r3.Box {
	box := geom.EmptyBox()
	for _, io := range c.Pairs {
		box = geom.Union(box, io.Bounds(side, source))
	}
	return box
}

// OutputTo stages every enabled output within [minPoints, maxPoints] and
// returns how many were staged.
func (c *Collection) OutputTo(staging *Staging, minPoints, maxPoints int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, io := range c.Pairs {
		if io.Pin == "" {
			io.Pin = c.DefaultOutputLabel
		}
		if io.OutputTo(staging, minPoints, maxPoints) {
			n++
		}
	}
	return n
}

// Flush drops every point set.
func (c *Collection) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, io := range c.Pairs {
		io.Cleanup()
	}
	c.Pairs = nil
}
