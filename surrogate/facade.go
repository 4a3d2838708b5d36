// Package surrogate makes platform values safe to write: the Facade swaps
// Go maps, sets, errors and typed slices for explicit surrogate records,
// and the classes registered by Register give the common java.lang and
// java.util types their legacy serial forms.
package surrogate

import (
	"io"
	"net/url"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	javaio "github.com/lujjjh/go-javaio/v2"
)

// Adapter converts a value into the surrogate written in its place.
type Adapter func(obj any) (any, error)

// Classes returns the classes Register installs.
func Classes() []*javaio.Class {
	return []*javaio.Class{
		numberClass,
		booleanClass, characterClass, byteClass, shortClass,
		integerClass, longClass, floatClass, doubleClass,
		dateClass, uriClass, uuidClass, fileClass,
		mapSerializerClass, setSerializerClass, throwableClass,
		hashMapClass, arrayListClass, hashSetClass,
	}
}

// Register installs the surrogate classes in reg. Registering twice is a
// no-op.
func Register(reg *javaio.Registry) error {
	return reg.Register(Classes()...)
}

// Facade is a javaio.Replacer that substitutes surrogate records for
// values the registry has no class for. Its adapter table is built once
// and never changes.
type Facade struct {
	reg      *javaio.Registry
	adapters map[reflect.Type]Adapter
}

var _ javaio.Replacer = (*Facade)(nil)

func NewFacade(reg *javaio.Registry) *Facade {
	return &Facade{
		reg: reg,
		adapters: map[reflect.Type]Adapter{
			reflect.TypeOf(int(0)):   func(obj any) (any, error) { return int64(obj.(int)), nil },
			reflect.TypeOf(uint(0)):  func(obj any) (any, error) { return int64(obj.(uint)), nil },
			reflect.TypeOf(uint8(0)): func(obj any) (any, error) { return int8(obj.(uint8)), nil },
			reflect.TypeOf(uint32(0)): func(obj any) (any, error) {
				return int64(obj.(uint32)), nil
			},
			reflect.TypeOf(uint64(0)): func(obj any) (any, error) {
				return int64(obj.(uint64)), nil
			},
			reflect.TypeOf((*time.Time)(nil)): func(obj any) (any, error) {
				return *obj.(*time.Time), nil
			},
			reflect.TypeOf(url.URL{}): func(obj any) (any, error) {
				u := obj.(url.URL)
				return &u, nil
			},
			reflect.TypeOf((*uuid.UUID)(nil)): func(obj any) (any, error) {
				return *obj.(*uuid.UUID), nil
			},
			reflect.TypeOf((*File)(nil)): func(obj any) (any, error) {
				return *obj.(*File), nil
			},
		},
	}
}

// ReplaceObject passes registered values through and wraps the rest:
// maps become MapSerializer or SetSerializer records, errors become
// Throwable records, slices of anything but primitives become
// *javaio.Array and named basic types become their underlying type.
func (f *Facade) ReplaceObject(obj any) (any, error) {
	t := reflect.TypeOf(obj)
	if _, ok := f.reg.ClassByType(t); ok {
		return obj, nil
	}
	if adapt, ok := f.adapters[t]; ok {
		return adapt(obj)
	}
	switch obj.(type) {
	case string, *javaio.Array, *javaio.Proxy:
		return obj, nil
	}
	if _, err := javaio.ArrayClassName(obj); err == nil {
		return obj, nil
	}
	if err, ok := obj.(error); ok {
		return ThrowableOf(err), nil
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Map:
		return f.wrapMap(v), nil
	case reflect.Slice, reflect.Array:
		return f.wrapSlice(v), nil
	}
	return convertBasic(v), nil
}

func (f *Facade) wrapMap(v reflect.Value) any {
	if elem := v.Type().Elem(); elem.Kind() == reflect.Struct && elem.Size() == 0 {
		return &SetSerializer{Elems: lo.Map(v.MapKeys(), func(k reflect.Value, _ int) any { return k.Interface() })}
	}
	m := &MapSerializer{Keys: make([]any, 0, v.Len()), Values: make([]any, 0, v.Len())}
	iter := v.MapRange()
	for iter.Next() {
		m.Keys = append(m.Keys, iter.Key().Interface())
		m.Values = append(m.Values, iter.Value().Interface())
	}
	return m
}

// wrapSlice builds an object array named after the slice's element class
// when the registry knows it.
func (f *Facade) wrapSlice(v reflect.Value) *javaio.Array {
	component := "java.lang.Object"
	if cls, ok := f.reg.ClassByType(v.Type().Elem()); ok {
		component = cls.Name
	}
	elems := make([]any, v.Len())
	for i := range elems {
		elems[i] = v.Index(i).Interface()
	}
	return javaio.NewObjectArray(component, elems...)
}

var basicTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeOf(false),
	reflect.Int8:    reflect.TypeOf(int8(0)),
	reflect.Int16:   reflect.TypeOf(int16(0)),
	reflect.Uint16:  reflect.TypeOf(uint16(0)),
	reflect.Int32:   reflect.TypeOf(int32(0)),
	reflect.Int64:   reflect.TypeOf(int64(0)),
	reflect.Int:     reflect.TypeOf(int64(0)),
	reflect.Float32: reflect.TypeOf(float32(0)),
	reflect.Float64: reflect.TypeOf(float64(0)),
	reflect.String:  reflect.TypeOf(""),
}

// convertBasic turns a value of a named basic type, such as a
// `type Port int32`, into its underlying type.
func convertBasic(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if t, ok := basicTypes[v.Kind()]; ok && v.Type() != t {
		return v.Convert(t).Interface()
	}
	return v.Interface()
}

// NewEncoder returns an encoder over reg, with the surrogate classes
// registered and the Facade installed.
func NewEncoder(w io.Writer, reg *javaio.Registry, opts ...javaio.Option) (*javaio.Encoder, error) {
	if err := Register(reg); err != nil {
		return nil, err
	}
	opts = append(append([]javaio.Option(nil), opts...),
		javaio.WithRegistry(reg),
		javaio.WithReplacer(NewFacade(reg)),
	)
	return javaio.NewEncoder(w, opts...)
}

// NewDecoder returns a decoder over reg with the surrogate classes
// registered.
func NewDecoder(r io.Reader, reg *javaio.Registry, opts ...javaio.Option) (*javaio.Decoder, error) {
	if err := Register(reg); err != nil {
		return nil, err
	}
	opts = append(append([]javaio.Option(nil), opts...), javaio.WithRegistry(reg))
	return javaio.NewDecoder(r, opts...)
}
