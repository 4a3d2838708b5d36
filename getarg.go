package javaio

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// levelData holds what the stream carried for one local class level.
type levelData struct {
	local  *Class
	stream *ClassDesc
	values map[string]any
	result any
}

type argState struct {
	dec    *Decoder
	desc   *ClassDesc
	levels []*levelData
	// handle of the object under construction
	handle int
	active bool
}

// GetArg is the only view a class's New and Check functions get of the
// values read for an object. Values are typed and checked on access; a
// field the stream did not carry reports the caller's default and
// Defaulted reports true.
//
// A GetArg is valid only during the call it was passed to. Afterwards every
// method fails with ErrNotActive.
type GetArg struct {
	state *argState
	level int
}

func (a *GetArg) checkActive() error {
	if !a.state.active {
		return errors.Wrapf(ErrNotActive, "%s: GetArg used after construction", a.current().local.Name)
	}
	return nil
}

func (a *GetArg) current() *levelData {
	return a.state.levels[a.level]
}

// lookup returns the staged value of a declared field. code 0 accepts any
// field type; TypeObject accepts object and array fields.
func (a *GetArg) lookup(name string, code byte) (any, bool, error) {
	if err := a.checkActive(); err != nil {
		return nil, false, err
	}
	lv := a.current()
	f, ok := lv.local.field(name)
	if !ok {
		return nil, false, invalidClass(lv.local.Name, "no field %s", name)
	}
	switch {
	case code == 0:
	case code == TypeObject:
		if f.IsPrimitive() {
			return nil, false, invalidClass(lv.local.Name, "field %s is primitive", name)
		}
	case f.Type != code:
		return nil, false, invalidClass(lv.local.Name, "field %s is %c, not %c", name, f.Type, code)
	}
	v, ok := lv.values[name]
	return v, ok, nil
}

// resolve turns a staged reference into the value a factory may keep.
func (a *GetArg) resolve(name string, v any) (any, error) {
	switch v := v.(type) {
	case pendingRef:
		return nil, errors.Wrapf(ErrInvalidObject,
			"%s.%s refers to an object still under construction; use Defer", a.current().local.Name, name)
	case *ClassNotFoundFault:
		return nil, v.Err()
	}
	return v, nil
}

func getPrim[T any](a *GetArg, name string, code byte, def T) (T, error) {
	v, ok, err := a.lookup(name, code)
	if err != nil || !ok {
		return def, err
	}
	return v.(T), nil
}

func (a *GetArg) GetBool(name string, def bool) (bool, error) {
	return getPrim(a, name, TypeBoolean, def)
}

func (a *GetArg) GetByte(name string, def int8) (int8, error) {
	return getPrim(a, name, TypeByte, def)
}

func (a *GetArg) GetChar(name string, def uint16) (uint16, error) {
	return getPrim(a, name, TypeChar, def)
}

func (a *GetArg) GetShort(name string, def int16) (int16, error) {
	return getPrim(a, name, TypeShort, def)
}

func (a *GetArg) GetInt(name string, def int32) (int32, error) {
	return getPrim(a, name, TypeInt, def)
}

func (a *GetArg) GetLong(name string, def int64) (int64, error) {
	return getPrim(a, name, TypeLong, def)
}

func (a *GetArg) GetFloat(name string, def float32) (float32, error) {
	return getPrim(a, name, TypeFloat, def)
}

func (a *GetArg) GetDouble(name string, def float64) (float64, error) {
	return getPrim(a, name, TypeDouble, def)
}

// GetObject returns a reference field, or def when the stream did not
// carry it.
func (a *GetArg) GetObject(name string, def any) (any, error) {
	v, ok, err := a.lookup(name, TypeObject)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	return a.resolve(name, v)
}

// GetTyped is GetObject with a check that a non-nil value is assignable to
// t.
func (a *GetArg) GetTyped(name string, def any, t reflect.Type) (any, error) {
	v, ok, err := a.lookup(name, TypeObject)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	if v, err = a.resolve(name, v); err != nil || v == nil {
		return nil, err
	}
	if !reflect.TypeOf(v).AssignableTo(t) {
		return nil, InvalidObjectf("%s.%s: %T is not assignable to %s", a.current().local.Name, name, v, t)
	}
	return v, nil
}

// Get returns any field as T. A null reference yields T's zero value.
func Get[T any](a *GetArg, name string, def T) (T, error) {
	var zero T
	v, ok, err := a.lookup(name, 0)
	if err != nil {
		return zero, err
	}
	if !ok {
		return def, nil
	}
	if v, err = a.resolve(name, v); err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, InvalidObjectf("%s.%s: %T is not %T", a.current().local.Name, name, v, zero)
	}
	return t, nil
}

// Defaulted reports whether the stream did not carry the field.
func (a *GetArg) Defaulted(name string) (bool, error) {
	_, ok, err := a.lookup(name, 0)
	return !ok, err
}

// Validate checks several fields at once: each named field must hold a
// value assignable to the matching type (nil skips the type check) and,
// where nonNull is set, must be present and not null. A reference to an
// object still under construction counts as present; its type is checked
// when it is assigned through Defer.
func (a *GetArg) Validate(names []string, types []reflect.Type, nonNull []bool) error {
	if len(types) != len(names) || len(nonNull) != len(names) {
		return errors.Newf("validate: %d names, %d types, %d flags", len(names), len(types), len(nonNull))
	}
	className := a.current().local.Name
	for i, name := range names {
		v, ok, err := a.lookup(name, 0)
		if err != nil {
			return err
		}
		if !ok {
			if nonNull[i] {
				return InvalidObjectf("%s.%s is required but was defaulted", className, name)
			}
			continue
		}
		switch v := v.(type) {
		case pendingRef:
			continue
		case *ClassNotFoundFault:
			return v.Err()
		}
		if v == nil {
			if nonNull[i] {
				return InvalidObjectf("%s.%s is null", className, name)
			}
			continue
		}
		if types[i] != nil && !reflect.TypeOf(v).AssignableTo(types[i]) {
			return InvalidObjectf("%s.%s: %T is not assignable to %s", className, name, v, types[i])
		}
	}
	return nil
}

// Super returns the view of the superclass level.
func (a *GetArg) Super() (*GetArg, error) {
	if err := a.checkActive(); err != nil {
		return nil, err
	}
	if a.level == 0 {
		return nil, errors.Newf("%s has no superclass level", a.current().local.Name)
	}
	return &GetArg{state: a.state, level: a.level - 1}, nil
}

// ClassName returns the name of the class level this view reads.
func (a *GetArg) ClassName() (string, error) {
	if err := a.checkActive(); err != nil {
		return "", err
	}
	return a.current().local.Name, nil
}

// ReadResult returns what the level's ReadInput returned, or nil.
func (a *GetArg) ReadResult() (any, error) {
	if err := a.checkActive(); err != nil {
		return nil, err
	}
	return a.current().result, nil
}

// Defer arranges for assign to receive the value of a reference field once
// it is fully constructed. If it already is, assign runs at once. A null
// or defaulted field never calls assign. If the referent fails to
// construct, or turns out to be of an unknown class, assign never runs;
// in the latter case the object being built is replaced by the
// referent's *ClassNotFoundFault.
func (a *GetArg) Defer(name string, assign func(any) error) error {
	v, ok, err := a.lookup(name, TypeObject)
	if err != nil || !ok || v == nil {
		return err
	}
	switch v := v.(type) {
	case pendingRef:
		return a.state.dec.handles.await(v.handle, a.state.handle, assign)
	case *ClassNotFoundFault:
		return v.Err()
	}
	return assign(v)
}

// Defer is GetArg.Defer with the value checked against T.
func Defer[T any](a *GetArg, name string, assign func(T)) error {
	return a.Defer(name, func(v any) error {
		t, ok := v.(T)
		if !ok {
			var zero T
			return InvalidObjectf("%s: %T is not %T", name, v, zero)
		}
		assign(t)
		return nil
	})
}

// RegisterValidation schedules fn to run once the whole top-level graph
// has been read. Callbacks run highest priority first.
func (a *GetArg) RegisterValidation(fn func() error, priority int) error {
	if err := a.checkActive(); err != nil {
		return err
	}
	dec := a.state.dec
	dec.validations = append(dec.validations, validation{fn: fn, priority: priority})
	return nil
}
