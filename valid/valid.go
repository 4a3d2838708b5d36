// Package valid holds the helpers a validating factory uses to turn staged
// field values into the invariants of the object it builds: null checks,
// type checks and copies of untrusted containers.
package valid

import (
	"fmt"
	"reflect"

	"github.com/samber/lo"

	javaio "github.com/lujjjh/go-javaio/v2"
)

// NotNull returns v, or an invalid-object error naming what was null.
func NotNull[T any](v T, what string) (T, error) {
	if lo.IsNil(v) {
		return v, javaio.InvalidObjectf("%s is null", what)
	}
	return v, nil
}

// As checks that v is a T. A nil v yields T's zero value.
func As[T any](v any, what string) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, javaio.InvalidObjectf("%s: %T is not %T", what, v, zero)
	}
	return t, nil
}

// CopySlice copies the elements of a decoded sequence into a fresh []T,
// checking every element. It accepts an *javaio.Array, a *SuspectList or
// any []T or []any.
func CopySlice[T any](v any) ([]T, error) {
	var elems []any
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []T:
		return append([]T(nil), v...), nil
	case []any:
		elems = v
	case *javaio.Array:
		elems = v.Elems
	case *SuspectList:
		elems = v.elems
	default:
		var zero []T
		return nil, javaio.InvalidObjectf("%T is not a sequence of %T", v, zero)
	}
	return copyElems[T](elems)
}

// CopyArray copies an object array into a []T.
func CopyArray[T any](a *javaio.Array) ([]T, error) {
	if a == nil {
		return nil, nil
	}
	return copyElems[T](a.Elems)
}

func copyElems[T any](elems []any) ([]T, error) {
	out := make([]T, 0, len(elems))
	for i, e := range elems {
		t, err := As[T](e, fmt.Sprintf("element %d", i))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// CopyMap copies a suspect map into a Go map. Keys are hashed by the Go
// runtime; duplicate keys are an invalid object.
func CopyMap[K comparable, V any](m *SuspectMap) (map[K]V, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[K]V, m.Len())
	for i := 0; i < m.Len(); i++ {
		k, v := m.Entry(i)
		key, err := As[K](k, "map key")
		if err != nil {
			return nil, err
		}
		if err := checkComparable(key, "map key"); err != nil {
			return nil, err
		}
		value, err := As[V](v, "map value")
		if err != nil {
			return nil, err
		}
		if _, ok := out[key]; ok {
			return nil, javaio.InvalidObjectf("duplicate map key %v", key)
		}
		out[key] = value
	}
	return out, nil
}

// CopySet copies a suspect set into a Go set. Duplicate elements are an
// invalid object.
func CopySet[T comparable](s *SuspectSet) (map[T]struct{}, error) {
	if s == nil {
		return nil, nil
	}
	elems, err := copyElems[T](s.elems)
	if err != nil {
		return nil, err
	}
	for i, e := range elems {
		if err := checkComparable(e, fmt.Sprintf("element %d", i)); err != nil {
			return nil, err
		}
	}
	out := lo.SliceToMap(elems, func(e T) (T, struct{}) { return e, struct{}{} })
	if len(out) != len(elems) {
		return nil, javaio.InvalidObjectf("set has %d duplicate elements", len(elems)-len(out))
	}
	return out, nil
}

// checkComparable rejects a value that would panic as a Go map key, such
// as a decoded primitive array stored in an interface.
func checkComparable(v any, what string) error {
	if v == nil || reflect.ValueOf(v).Comparable() {
		return nil
	}
	return javaio.InvalidObjectf("%s of type %T cannot be a map key", what, v)
}
