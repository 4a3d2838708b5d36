package javaio

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
)

// Array is an object array whose JVM class is carried explicitly, for
// example "[Ljava.lang.String;". Decoded object arrays are always *Array;
// primitive arrays decode to Go slices.
type Array struct {
	ClassName string
	Elems     []any
}

// NewObjectArray builds an array of the given component class.
func NewObjectArray(componentClass string, elems ...any) *Array {
	name := "[L" + componentClass + ";"
	if strings.HasPrefix(componentClass, "[") {
		name = "[" + componentClass
	}
	return &Array{ClassName: name, Elems: elems}
}

func (array *Array) Len() int {
	return len(array.Elems)
}

func (array *Array) Index(i int) any {
	return array.Elems[i]
}

// ComponentClassName returns the class of the array's elements.
func (array *Array) ComponentClassName() string {
	name := array.ClassName[1:]
	if strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";") {
		return name[1 : len(name)-1]
	}
	return name
}

// ArrayClassName returns the JVM class name a Go slice is written under.
func ArrayClassName(x any) (string, error) {
	if array, ok := x.(*Array); ok {
		return array.ClassName, nil
	}
	name, ok := sliceClassName(reflect.TypeOf(x))
	if !ok {
		return "", errors.Wrapf(ErrNotSerializable, "%T is not an array", x)
	}
	return name, nil
}

func sliceClassName(t reflect.Type) (string, bool) {
	if t == nil || (t.Kind() != reflect.Slice && t.Kind() != reflect.Array) {
		return "", false
	}
	elem := t.Elem()
	if code, ok := primitiveCode(elem); ok {
		return "[" + string(code), true
	}
	switch elem.Kind() {
	case reflect.Interface:
		if elem.NumMethod() == 0 {
			return "[L" + objectClassName + ";", true
		}
	case reflect.String:
		return "[L" + stringClassName + ";", true
	case reflect.Slice, reflect.Array:
		if name, ok := sliceClassName(elem); ok {
			return "[" + name, true
		}
	}
	return "", false
}

func primitiveCode(t reflect.Type) (byte, bool) {
	switch t.Kind() {
	case reflect.Bool:
		return TypeBoolean, true
	case reflect.Int8, reflect.Uint8:
		return TypeByte, true
	case reflect.Uint16:
		return TypeChar, true
	case reflect.Int16:
		return TypeShort, true
	case reflect.Int32:
		return TypeInt, true
	case reflect.Int64:
		return TypeLong, true
	case reflect.Float32:
		return TypeFloat, true
	case reflect.Float64:
		return TypeDouble, true
	}
	return 0, false
}

// arraySerialVersionUID computes the default serialVersionUID of an array
// class: the SHA-1 of its name and modifiers, first eight bytes little
// endian.
func arraySerialVersionUID(name string) int64 {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(name)))
	buf.WriteString(name)
	_ = binary.Write(&buf, binary.BigEndian, int32(1|16|1024)) // Modifier.PUBLIC | Modifier.FINAL | Modifier.ABSTRACT
	hashBytes := sha1.Sum(buf.Bytes())
	return int64(binary.LittleEndian.Uint64(hashBytes[:8]))
}
