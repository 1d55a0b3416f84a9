package data

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
)

// InitMode selects how a PointIO materializes its output.
type InitMode uint8

const (
	// NoOutput leaves the output nil.
	NoOutput InitMode = iota
	// NewOutput creates an empty output with the input's attribute schema.
	NewOutput
	// DuplicateInput deep-copies the input.
	DuplicateInput
	// Forward aliases the output to the input.
	Forward
)

func (m InitMode) String() string {
	switch m {
	case NewOutput:
		return "new"
	case DuplicateInput:
		return "duplicate"
	case Forward:
		return "forward"
	default:
		return "none"
	}
}

// PointIO pairs a read-only input point set with the output a node writes.
type PointIO struct {
	In      *PointData
	Out     *PointData
	Tags    *Tags
	IOIndex int
	// Pin is the output label used when staging. Empty means the owning
	// collection's default.
	Pin string

	mu       sync.Mutex
	keysMu   sync.Mutex
	inKeys   *Keys
	outKeys  *Keys
	disabled atomic.Bool
}

// NewPointIO wraps in. tags may be nil.
func NewPointIO(in *PointData, tags *Tags, index int) *PointIO {
	if tags == nil {
		tags = NewTags()
	}
	return &PointIO{In: in, Tags: tags, IOIndex: index}
}

// InitializeOutput creates the output according to mode. An unknown mode,
// or a mode that needs an input when there is none, leaves the output nil
// except for NewOutput which then starts from an empty schema.
func (io *PointIO) InitializeOutput(mode InitMode) {
	io.keysMu.Lock()
	io.outKeys = nil
	io.keysMu.Unlock()

	switch mode {
	case NewOutput:
		if io.In != nil {
			io.Out = io.In.CloneSchema()
		} else {
			io.Out = NewPointData()
		}
	case DuplicateInput:
		if io.In == nil {
			io.Out = nil
			return
		}
		io.Out = io.In.Clone()
	case Forward:
		io.Out = io.In
	default:
		io.Out = nil
	}
}

// HasOutput reports whether an output was initialized.
func (io *PointIO) HasOutput() bool { return io.Out != nil }

// Source returns the output when present, the input otherwise.
func (io *PointIO) Source() *PointData {
	if io.Out != nil {
		return io.Out
	}
	return io.In
}

// Data returns the point set of side.
func (io *PointIO) Data(side Side) *PointData {
	if side == Out {
		return io.Out
	}
	return io.In
}

// Num returns the number of input points.
func (io *PointIO) Num() int { return io.In.Num() }

// OutNum returns the number of output points.
func (io *PointIO) OutNum() int { return io.Out.Num() }

// InPoint returns input point i.
func (io *PointIO) InPoint(i int) Point { return io.In.Points[i] }

// Lock acquires the output write lock. Hold it around any append whose
// index must be captured together with the append.
func (io *PointIO) Lock() { io.mu.Lock() }

// Unlock releases the output write lock.
func (io *PointIO) Unlock() { io.mu.Unlock() }

// NewPoint appends a default point with a fresh metadata row and returns its
// index. Not safe for concurrent use; see Lock.
func (io *PointIO) NewPoint() int {
	return io.NewPointAt(NewPoint())
}

// NewPointAt appends p with a fresh metadata row and returns its index. Not
// safe for concurrent use; see Lock.
func (io *PointIO) NewPointAt(p Point) int {
	p.MetadataEntry = io.Out.Metadata.AddEntry()
	return io.AddPoint(p)
}

// CopyPoint appends a copy of input point p. Its attribute values are copied
// into a fresh output row. Not safe for concurrent use; see Lock.
func (io *PointIO) CopyPoint(p Point) int {
	var src *Metadata
	if io.In != nil {
		src = io.In.Metadata
	}
	p.MetadataEntry = io.Out.Metadata.AddEntryFromOther(src, p.MetadataEntry)
	return io.AddPoint(p)
}

// AddPoint appends p as-is and returns its index. Not safe for concurrent
// use; see Lock.
func (io *PointIO) AddPoint(p Point) int {
	io.Out.Points = append(io.Out.Points, p)
	io.invalidateOutKeys()
	return len(io.Out.Points) - 1
}

// AppendPoint is AddPoint under the write lock.
func (io *PointIO) AppendPoint(p Point) int {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.AddPoint(p)
}

// ReservePoints appends n default points with fresh metadata rows under the
// write lock and returns the index of the first one.
func (io *PointIO) ReservePoints(n int) int {
	io.mu.Lock()
	defer io.mu.Unlock()
	first := len(io.Out.Points)
	key := io.Out.Metadata.AddEntries(n)
	for i := 0; i < n; i++ {
		p := NewPoint()
		p.MetadataEntry = key + int64(i)
		io.Out.Points = append(io.Out.Points, p)
	}
	io.invalidateOutKeys()
	return first
}

// UpdatePoint runs fn on output point i under the write lock. The entry key
// of the point is preserved.
func (io *PointIO) UpdatePoint(i int, fn func(p *Point)) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	if i < 0 || i >= len(io.Out.Points) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(io.Out.Points))
	}
	key := io.Out.Points[i].MetadataEntry
	fn(&io.Out.Points[i])
	io.Out.Points[i].MetadataEntry = key
	return nil
}

// InitializeNum resizes the output to n points. New points get fresh
// metadata rows; surviving points keep theirs.
func (io *PointIO) InitializeNum(n int) error {
	if io.Out == nil {
		return ErrNoOutput
	}
	io.mu.Lock()
	defer io.mu.Unlock()
	cur := len(io.Out.Points)
	if n <= cur {
		io.Out.Points = io.Out.Points[:n]
	} else {
		key := io.Out.Metadata.AddEntries(n - cur)
		for i := cur; i < n; i++ {
			p := NewPoint()
			p.MetadataEntry = key + int64(i-cur)
			io.Out.Points = append(io.Out.Points, p)
		}
	}
	io.invalidateOutKeys()
	return nil
}

func (io *PointIO) invalidateOutKeys() {
	io.keysMu.Lock()
	io.outKeys = nil
	if io.Out == io.In {
		io.inKeys = nil
	}
	io.keysMu.Unlock()
}

// CreateInKeys caches the input entry keys. Repeated calls return the same
// cache.
func (io *PointIO) CreateInKeys() (*Keys, error) {
	if io.In == nil {
		return nil, ErrNoInput
	}
	io.keysMu.Lock()
	defer io.keysMu.Unlock()
	if io.inKeys == nil {
		io.inKeys = newKeys(io.In)
	}
	return io.inKeys, nil
}

// CreateOutKeys caches the output entry keys. Points without a row get a
// fresh one and points sharing a row with an earlier point are detached
// onto a copy of it, so that writing through the keys never aliases two
// points. Repeated calls return the same cache until points are appended.
func (io *PointIO) CreateOutKeys() (*Keys, error) {
	if io.Out == nil {
		return nil, ErrNoOutput
	}
	io.keysMu.Lock()
	defer io.keysMu.Unlock()
	if io.outKeys != nil {
		return io.outKeys, nil
	}
	md := io.Out.Metadata
	seen := make(map[int64]struct{}, len(io.Out.Points))
	for i := range io.Out.Points {
		p := &io.Out.Points[i]
		if p.MetadataEntry < 0 {
			p.MetadataEntry = md.AddEntry()
		} else if _, shared := seen[p.MetadataEntry]; shared {
			p.MetadataEntry = md.AddEntryFrom(p.MetadataEntry)
		}
		seen[p.MetadataEntry] = struct{}{}
	}
	io.outKeys = newKeys(io.Out)
	if io.Out == io.In {
		io.inKeys = io.outKeys
	}
	return io.outKeys, nil
}

func (io *PointIO) keysFor(side Side) (*Keys, error) {
	if side == Out {
		return io.CreateOutKeys()
	}
	return io.CreateInKeys()
}

// Disable excludes the point set from staging without dropping its data.
func (io *PointIO) Disable() { io.disabled.Store(true) }

// Enable reverts Disable.
func (io *PointIO) Enable() { io.disabled.Store(false) }

// IsEnabled reports whether the point set will be staged.
func (io *PointIO) IsEnabled() bool { return !io.disabled.Load() }

// OutputTo stages the output when it is enabled and its size is within
// [minPoints, maxPoints]. Negative bounds are ignored.
func (io *PointIO) OutputTo(staging *Staging, minPoints, maxPoints int) bool {
	if !io.IsEnabled() || io.Out == nil {
		return false
	}
	n := io.Out.Num()
	if minPoints >= 0 && n < minPoints {
		return false
	}
	if maxPoints >= 0 && n > maxPoints {
		return false
	}
	staging.Add(TaggedData{Pin: io.Pin, Data: io.Out, Tags: io.Tags.Flatten()})
	return true
}

// Bounds returns the union of the bounds of side's points.
func (io *PointIO) Bounds(side Side, source BoundsSource) r3.Box {
	return io.Data(side).Bounds(source)
}

// Cleanup drops the cached keys.
func (io *PointIO) Cleanup() {
	io.keysMu.Lock()
	defer io.keysMu.Unlock()
	io.inKeys = nil
	io.outKeys = nil
}
