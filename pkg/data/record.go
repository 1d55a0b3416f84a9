package data

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func init() {
	gob.Register(r2.Vec{})
	gob.Register(r3.Vec{})
	gob.Register(Vec4{})
	gob.Register(quat.Number{})
	gob.Register([]r2.Vec{})
	gob.Register([]r3.Vec{})
	gob.Register([]Vec4{})
	gob.Register([]quat.Number{})
}

// AttributeRecord is the serializable state of one column. Default holds a
// T and Values a []T for the column's type.
type AttributeRecord struct {
	Name                string
	Type                AttributeType
	AllowsInterpolation bool
	Default             any
	Values              any
}

// PointDataRecord is the serializable state of a point set.
type PointDataRecord struct {
	Tags       []string
	Points     []Point
	NumEntries int64
	Attributes []AttributeRecord
}

func (a *TypedAttribute[T]) record() AttributeRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AttributeRecord{
		Name:                a.name,
		Type:                a.Type(),
		AllowsInterpolation: a.interpolation,
		Default:             a.defaultValue,
		Values:              append(make([]T, 0, len(a.values)), a.values...),
	}
}

// Record captures d and tags.
func (d *PointData) Record(tags []string) PointDataRecord {
	rec := PointDataRecord{
		Tags:       tags,
		Points:     d.Points,
		NumEntries: d.Metadata.NumEntries(),
	}
	for _, attr := range d.Metadata.Attributes() {
		rec.Attributes = append(rec.Attributes, attr.record())
	}
	return rec
}

// PointDataFromRecord rebuilds a point set. The result gets a fresh UID.
func PointDataFromRecord(rec PointDataRecord) (*PointData, error) {
	d := NewPointData()
	d.Points = rec.Points
	d.Metadata.numEntries = rec.NumEntries
	for _, ar := range rec.Attributes {
		var err error
		switch ar.Type {
		case TypeBool:
			err = restore[bool](d.Metadata, ar)
		case TypeInt32:
			err = restore[int32](d.Metadata, ar)
		case TypeInt64:
			err = restore[int64](d.Metadata, ar)
		case TypeFloat:
			err = restore[float32](d.Metadata, ar)
		case TypeDouble:
			err = restore[float64](d.Metadata, ar)
		case TypeVector2:
			err = restore[r2.Vec](d.Metadata, ar)
		case TypeVector:
			err = restore[r3.Vec](d.Metadata, ar)
		case TypeVector4:
			err = restore[Vec4](d.Metadata, ar)
		case TypeQuaternion:
			err = restore[quat.Number](d.Metadata, ar)
		case TypeString:
			err = restore[string](d.Metadata, ar)
		default:
			err = fmt.Errorf("attribute %q: unknown type %d", ar.Name, ar.Type)
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func restore[T Value](md *Metadata, ar AttributeRecord) error {
	def, ok := ar.Default.(T)
	if !ok && ar.Default != nil {
		return fmt.Errorf("%w: default of %q is %T", ErrTypeMismatch, ar.Name, ar.Default)
	}
	attr := ForceCreateAttribute(md, ar.Name, def, ar.AllowsInterpolation)
	if ar.Values == nil {
		return nil
	}
	values, ok := ar.Values.([]T)
	if !ok {
		return fmt.Errorf("%w: values of %q are %T", ErrTypeMismatch, ar.Name, ar.Values)
	}
	attr.values = values
	return nil
}
