package data

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec4 is a four component vector attribute value.
type Vec4 [4]float64

// Value is the closed set of Go types an attribute column can hold.
type Value interface {
	bool | int32 | int64 | float32 | float64 | r2.Vec | r3.Vec | Vec4 | quat.Number | string
}

// AttributeType identifies the underlying type of a column.
type AttributeType uint8

const (
	TypeUnknown AttributeType = iota
	TypeBool
	TypeInt32
	TypeInt64
	TypeFloat
	TypeDouble
	TypeVector2
	TypeVector
	TypeVector4
	TypeQuaternion
	TypeString
)

func (t AttributeType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeVector2:
		return "vector2"
	case TypeVector:
		return "vector"
	case TypeVector4:
		return "vector4"
	case TypeQuaternion:
		return "quaternion"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// Interpolable reports whether values of this type can be blended.
func (t AttributeType) Interpolable() bool {
	return t != TypeBool && t != TypeString && t != TypeUnknown
}

// TypeOf returns the AttributeType of T.
func TypeOf[T Value]() AttributeType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return TypeBool
	case int32:
		return TypeInt32
	case int64:
		return TypeInt64
	case float32:
		return TypeFloat
	case float64:
		return TypeDouble
	case r2.Vec:
		return TypeVector2
	case r3.Vec:
		return TypeVector
	case Vec4:
		return TypeVector4
	case quat.Number:
		return TypeQuaternion
	case string:
		return TypeString
	}
	return TypeUnknown
}

// Identity is the schema unit of a column.
type Identity struct {
	Name                string
	Type                AttributeType
	AllowsInterpolation bool
}

func (id Identity) String() string {
	return fmt.Sprintf("%s(%s)", id.Name, id.Type)
}

// Attribute is a named typed column of a Metadata table.
type Attribute interface {
	Name() string
	Type() AttributeType
	AllowsInterpolation() bool
	Identity() Identity

	// NumValues returns the number of rows explicitly stored.
	NumValues() int

	cloneSchema() Attribute
	clone() Attribute
	copyEntry(dst, src int64)
	// copyRange copies src[srcKeys[i]] into dst[dstKeys[i]]. It returns false
	// when src holds another type.
	copyRange(src Attribute, srcKeys, dstKeys []int64) bool
	record() AttributeRecord
}

// TypedAttribute stores one value per metadata entry key. Rows that were
// never written read as the default value.
type TypedAttribute[T Value] struct {
	name          string
	defaultValue  T
	interpolation bool

	mu     sync.RWMutex
	values []T
}

func newTypedAttribute[T Value](name string, def T, allowsInterpolation bool) *TypedAttribute[T] {
	return &TypedAttribute[T]{
		name:          name,
		defaultValue:  def,
		interpolation: allowsInterpolation && TypeOf[T]().Interpolable(),
	}
}

func (a *TypedAttribute[T]) Name() string              { return a.name }
func (a *TypedAttribute[T]) Type() AttributeType       { return TypeOf[T]() }
func (a *TypedAttribute[T]) AllowsInterpolation() bool { return a.interpolation }
func (a *TypedAttribute[T]) Default() T                { return a.defaultValue }

func (a *TypedAttribute[T]) Identity() Identity {
	return Identity{Name: a.name, Type: a.Type(), AllowsInterpolation: a.interpolation}
}

func (a *TypedAttribute[T]) NumValues() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// Value returns the value stored for key, or the default.
func (a *TypedAttribute[T]) Value(key int64) T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if key < 0 || key >= int64(len(a.values)) {
		return a.defaultValue
	}
	return a.values[key]
}

// SetValue stores v for key. Negative keys are ignored.
func (a *TypedAttribute[T]) SetValue(key int64, v T) {
	if key < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.growLocked(key)
	a.values[key] = v
}

// SetValues stores values[i] for keys[i].
func (a *TypedAttribute[T]) SetValues(keys []int64, values []T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, key := range keys {
		if key < 0 || i >= len(values) {
			continue
		}
		a.growLocked(key)
		a.values[key] = values[i]
	}
}

// Values reads the values of keys into a new slice.
func (a *TypedAttribute[T]) Values(keys []int64) []T {
	out := make([]T, len(keys))
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i, key := range keys {
		if key < 0 || key >= int64(len(a.values)) {
			out[i] = a.defaultValue
			continue
		}
		out[i] = a.values[key]
	}
	return out
}

func (a *TypedAttribute[T]) growLocked(key int64) {
	if key < int64(len(a.values)) {
		return
	}
	n := int(key) + 1
	if n <= cap(a.values) {
		start := len(a.values)
		a.values = a.values[:n]
		for i := start; i < n; i++ {
			a.values[i] = a.defaultValue
		}
		return
	}
	grown := make([]T, n, max(n, 2*cap(a.values)))
	copy(grown, a.values)
	for i := len(a.values); i < n; i++ {
		grown[i] = a.defaultValue
	}
	a.values = grown
}

func (a *TypedAttribute[T]) cloneSchema() Attribute {
	return newTypedAttribute(a.name, a.defaultValue, a.interpolation)
}

func (a *TypedAttribute[T]) clone() Attribute {
	c := newTypedAttribute(a.name, a.defaultValue, a.interpolation)
	a.mu.RLock()
	c.values = append([]T(nil), a.values...)
	a.mu.RUnlock()
	return c
}

func (a *TypedAttribute[T]) copyEntry(dst, src int64) {
	if dst < 0 || src < 0 {
		return
	}
	a.SetValue(dst, a.Value(src))
}

func (a *TypedAttribute[T]) copyRange(src Attribute, srcKeys, dstKeys []int64) bool {
	typed, ok := src.(*TypedAttribute[T])
	if !ok {
		return false
	}
	a.SetValues(dstKeys, typed.Values(srcKeys))
	return true
}
