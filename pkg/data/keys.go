package data

import "fmt"

// Side selects the input or output of a PointIO.
type Side uint8

const (
	In Side = iota
	Out
)

func (s Side) String() string {
	if s == Out {
		return "out"
	}
	return "in"
}

// Keys caches the metadata entry key of every point of one side of a
// PointIO, indexed by point index.
type Keys struct {
	Metadata *Metadata
	keys     []int64
}

func newKeys(d *PointData) *Keys {
	k := &Keys{Metadata: d.Metadata, keys: make([]int64, len(d.Points))}
	for i := range d.Points {
		k.keys[i] = d.Points[i].MetadataEntry
	}
	return k
}

// Num returns the number of cached keys.
func (k *Keys) Num() int { return len(k.keys) }

// Key returns the entry key of point i.
func (k *Keys) Key(i int) int64 { return k.keys[i] }

// All returns the cached keys. The slice must not be modified.
func (k *Keys) All() []int64 { return k.keys }

// Range returns the keys of points [start, start+count).
func (k *Keys) Range(start, count int) []int64 { return k.keys[start : start+count] }

// Reader buffers the values of one attribute for every point of a side.
type Reader[T Value] struct {
	Attribute *TypedAttribute[T]
	Values    []T
}

// NewReader fetches attribute name of type T for every point of side.
func NewReader[T Value](io *PointIO, side Side, name string) (*Reader[T], error) {
	keys, err := io.keysFor(side)
	if err != nil {
		return nil, err
	}
	attr, err := GetAttribute[T](keys.Metadata, name)
	if err != nil {
		return nil, err
	}
	return &Reader[T]{Attribute: attr, Values: attr.Values(keys.All())}, nil
}

// Get returns the value of point i.
func (r *Reader[T]) Get(i int) T { return r.Values[i] }

// Writer buffers values of one output attribute. Nothing reaches the
// metadata until Write is called.
type Writer[T Value] struct {
	Attribute *TypedAttribute[T]
	Values    []T
	keys      *Keys
}

// NewWriter creates or reuses output attribute name and pre-fills the buffer
// with its current values.
func NewWriter[T Value](io *PointIO, name string, def T, allowsInterpolation bool) (*Writer[T], error) {
	keys, err := io.keysFor(Out)
	if err != nil {
		return nil, err
	}
	attr, err := CreateAttribute(keys.Metadata, name, def, allowsInterpolation)
	if err != nil {
		return nil, err
	}
	return &Writer[T]{Attribute: attr, Values: attr.Values(keys.All()), keys: keys}, nil
}

// NewWriterDefault is NewWriter with every buffered value reset to def.
// Use it when the column is recomputed from scratch.
func NewWriterDefault[T Value](io *PointIO, name string, def T, allowsInterpolation bool) (*Writer[T], error) {
	keys, err := io.keysFor(Out)
	if err != nil {
		return nil, err
	}
	attr := ForceCreateAttribute(keys.Metadata, name, def, allowsInterpolation)
	values := make([]T, keys.Num())
	for i := range values {
		values[i] = def
	}
	return &Writer[T]{Attribute: attr, Values: values, keys: keys}, nil
}

// Set buffers v for point i.
func (w *Writer[T]) Set(i int, v T) { w.Values[i] = v }

// Write flushes the buffer into the metadata.
func (w *Writer[T]) Write() error {
	if len(w.Values) != w.keys.Num() {
		return fmt.Errorf("writer %q: %d values for %d points", w.Attribute.Name(), len(w.Values), w.keys.Num())
	}
	w.Attribute.SetValues(w.keys.All(), w.Values)
	return nil
}
