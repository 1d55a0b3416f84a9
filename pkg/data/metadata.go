package data

import (
	"fmt"
	"sync"

	"github.com/tidwall/btree"
)

// Metadata is the attribute side-table of a point set. Rows are addressed by
// entry key; points sharing a key share their attribute values.
type Metadata struct {
	mu         sync.RWMutex
	attributes btree.Map[string, Attribute]
	numEntries int64
}

// NewMetadata returns an empty table.
func NewMetadata() *Metadata {
	return &Metadata{}
}

// NumEntries returns the number of rows allocated so far.
func (md *Metadata) NumEntries() int64 {
	md.mu.RLock()
	defer md.mu.RUnlock()
	return md.numEntries
}

// AddEntry allocates a fresh row. Every attribute reads its default there.
func (md *Metadata) AddEntry() int64 {
	md.mu.Lock()
	defer md.mu.Unlock()
	key := md.numEntries
	md.numEntries++
	return key
}

// AddEntries allocates n consecutive rows and returns the first key.
func (md *Metadata) AddEntries(n int) int64 {
	md.mu.Lock()
	defer md.mu.Unlock()
	first := md.numEntries
	md.numEntries += int64(n)
	return first
}

// AddEntryFrom allocates a row seeded with the values of parent. A point that
// is about to be modified gets such a row so that the points still sharing
// parent are left untouched.
func (md *Metadata) AddEntryFrom(parent int64) int64 {
	key := md.AddEntry()
	if parent < 0 {
		return key
	}
	for _, attr := range md.Attributes() {
		attr.copyEntry(key, parent)
	}
	return key
}

// AddEntryFromOther allocates a row seeded with the values src holds for
// srcKey. Only attributes present in both tables with the same type are
// copied.
func (md *Metadata) AddEntryFromOther(src *Metadata, srcKey int64) int64 {
	if src == md {
		return md.AddEntryFrom(srcKey)
	}
	key := md.AddEntry()
	if src == nil || srcKey < 0 {
		return key
	}
	srcKeys, dstKeys := []int64{srcKey}, []int64{key}
	for _, attr := range md.Attributes() {
		if other, ok := src.Attribute(attr.Name()); ok {
			attr.copyRange(other, srcKeys, dstKeys)
		}
	}
	return key
}

// Attribute returns the column called name.
func (md *Metadata) Attribute(name string) (Attribute, bool) {
	md.mu.RLock()
	defer md.mu.RUnlock()
	return md.attributes.Get(name)
}

// HasAttribute reports whether a column called name exists.
func (md *Metadata) HasAttribute(name string) bool {
	_, ok := md.Attribute(name)
	return ok
}

// DeleteAttribute removes the column called name, if present.
func (md *Metadata) DeleteAttribute(name string) bool {
	md.mu.Lock()
	defer md.mu.Unlock()
	_, ok := md.attributes.Delete(name)
	return ok
}

// Attributes returns every column sorted by name.
func (md *Metadata) Attributes() []Attribute {
	md.mu.RLock()
	defer md.mu.RUnlock()
	out := make([]Attribute, 0, md.attributes.Len())
	md.attributes.Scan(func(_ string, attr Attribute) bool {
		out = append(out, attr)
		return true
	})
	return out
}

// Identities returns the schema of the table sorted by name.
func (md *Metadata) Identities() []Identity {
	attrs := md.Attributes()
	out := make([]Identity, len(attrs))
	for i, attr := range attrs {
		out[i] = attr.Identity()
	}
	return out
}

// CopySchemaOf creates an empty column with the name, type, default and
// interpolation flag of attr. An existing column with the same name is
// returned untouched when its type matches.
func (md *Metadata) CopySchemaOf(attr Attribute) (Attribute, error) {
	md.mu.Lock()
	defer md.mu.Unlock()
	if existing, ok := md.attributes.Get(attr.Name()); ok {
		if existing.Type() != attr.Type() {
			return existing, fmt.Errorf("%w: %q is %s, not %s", ErrTypeMismatch, attr.Name(), existing.Type(), attr.Type())
		}
		return existing, nil
	}
	created := attr.cloneSchema()
	md.attributes.Set(created.Name(), created)
	return created, nil
}

// CloneSchema returns a table with the same columns and no rows.
func (md *Metadata) CloneSchema() *Metadata {
	out := NewMetadata()
	for _, attr := range md.Attributes() {
		out.attributes.Set(attr.Name(), attr.cloneSchema())
	}
	return out
}

// Clone returns a deep copy of the table.
func (md *Metadata) Clone() *Metadata {
	out := NewMetadata()
	for _, attr := range md.Attributes() {
		out.attributes.Set(attr.Name(), attr.clone())
	}
	out.numEntries = md.NumEntries()
	return out
}

// CreateAttribute creates a column of type T, or returns the existing one
// when it already has type T.
func CreateAttribute[T Value](md *Metadata, name string, def T, allowsInterpolation bool) (*TypedAttribute[T], error) {
	md.mu.Lock()
	defer md.mu.Unlock()
	if existing, ok := md.attributes.Get(name); ok {
		typed, ok := existing.(*TypedAttribute[T])
		if !ok {
			return nil, fmt.Errorf("%w: %q is %s, not %s", ErrTypeMismatch, name, existing.Type(), TypeOf[T]())
		}
		return typed, nil
	}
	attr := newTypedAttribute(name, def, allowsInterpolation)
	md.attributes.Set(name, attr)
	return attr, nil
}

// ForceCreateAttribute replaces any column called name with a fresh column
// of type T.
func ForceCreateAttribute[T Value](md *Metadata, name string, def T, allowsInterpolation bool) *TypedAttribute[T] {
	md.mu.Lock()
	defer md.mu.Unlock()
	attr := newTypedAttribute(name, def, allowsInterpolation)
	md.attributes.Set(name, attr)
	return attr
}

// GetAttribute returns the column called name when it holds T.
func GetAttribute[T Value](md *Metadata, name string) (*TypedAttribute[T], error) {
	attr, ok := md.Attribute(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingAttribute, name)
	}
	typed, ok := attr.(*TypedAttribute[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s, not %s", ErrTypeMismatch, name, attr.Type(), TypeOf[T]())
	}
	return typed, nil
}
