package javaio

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Field is one named, typed slot of a class's serial form. The serial form
// is whatever the class nominates; it need not mirror the Go struct.
type Field struct {
	Name string
	Type byte
	// Signature is the JVM type signature of object and array fields,
	// e.g. "Ljava/lang/String;" or "[I". Empty for primitives.
	Signature string
}

func BoolField(name string) Field   { return Field{Name: name, Type: TypeBoolean} }
func ByteField(name string) Field   { return Field{Name: name, Type: TypeByte} }
func CharField(name string) Field   { return Field{Name: name, Type: TypeChar} }
func ShortField(name string) Field  { return Field{Name: name, Type: TypeShort} }
func IntField(name string) Field    { return Field{Name: name, Type: TypeInt} }
func LongField(name string) Field   { return Field{Name: name, Type: TypeLong} }
func FloatField(name string) Field  { return Field{Name: name, Type: TypeFloat} }
func DoubleField(name string) Field { return Field{Name: name, Type: TypeDouble} }

// ObjectField declares a reference field of the given class,
// e.g. ObjectField("name", "java.lang.String").
func ObjectField(name, className string) Field {
	return Field{Name: name, Type: TypeObject, Signature: classSignature(className)}
}

// ArrayField declares an array field by signature, e.g. ArrayField("data", "[I").
func ArrayField(name, signature string) Field {
	return Field{Name: name, Type: TypeArray, Signature: signature}
}

func (f Field) IsPrimitive() bool {
	return f.Type != TypeObject && f.Type != TypeArray
}

// ClassName returns the class named by an object or array field's signature.
func (f Field) ClassName() string {
	switch f.Type {
	case TypeObject:
		return strings.ReplaceAll(f.Signature[1:len(f.Signature)-1], "/", ".")
	case TypeArray:
		return strings.ReplaceAll(f.Signature, "/", ".")
	}
	return ""
}

func (f Field) signature() string {
	if f.IsPrimitive() {
		return string(f.Type)
	}
	return f.Signature
}

func (f Field) validate() error {
	if f.Name == "" {
		return errors.New("empty field name")
	}
	switch f.Type {
	case TypeBoolean, TypeByte, TypeChar, TypeShort, TypeInt, TypeLong, TypeFloat, TypeDouble:
		if f.Signature != "" && f.Signature != string(f.Type) {
			return errors.Newf("field %s: primitive with signature %q", f.Name, f.Signature)
		}
		return nil
	case TypeObject, TypeArray:
		if !validSignature(f.Signature) || f.Signature[0] != f.Type {
			return errors.Newf("field %s: invalid signature %q", f.Name, f.Signature)
		}
		return nil
	}
	return errors.Newf("field %s: invalid type code %q", f.Name, f.Type)
}

func classSignature(className string) string {
	if strings.HasPrefix(className, "[") {
		return strings.ReplaceAll(className, ".", "/")
	}
	return "L" + strings.ReplaceAll(className, ".", "/") + ";"
}

func validSignature(sig string) bool {
	i := 0
	for i < len(sig) && sig[i] == '[' {
		i++
	}
	if i >= len(sig) {
		return false
	}
	switch sig[i] {
	case TypeBoolean, TypeByte, TypeChar, TypeShort, TypeInt, TypeLong, TypeFloat, TypeDouble:
		return i > 0 && i == len(sig)-1
	case TypeObject:
		return len(sig)-i > 2 && sig[len(sig)-1] == ';' && !strings.ContainsAny(sig[i+1:len(sig)-1], ";[")
	}
	return false
}

func primSize(code byte) int {
	switch code {
	case TypeBoolean, TypeByte:
		return 1
	case TypeChar, TypeShort:
		return 2
	case TypeInt, TypeFloat:
		return 4
	case TypeLong, TypeDouble:
		return 8
	}
	return 0
}

// sortFields orders a serial form for the wire: primitives grouped by
// width (bytes/booleans, chars/shorts, ints/floats, longs/doubles), then
// object and array references, each group ordered by name.
func sortFields(fields []Field) []Field {
	sorted := append([]Field(nil), fields...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IsPrimitive() != b.IsPrimitive() {
			return a.IsPrimitive()
		}
		if sa, sb := primSize(a.Type), primSize(b.Type); sa != sb {
			return sa < sb
		}
		return a.Name < b.Name
	})
	return sorted
}

// FieldDesc is a Field bound to its position in the primitive data block.
type FieldDesc struct {
	Field
	// Offset is the byte offset into the primitive data for primitives and
	// the index into the reference block for objects and arrays.
	Offset int
}

// layoutFields computes offsets and rejects primitives after references.
func layoutFields(fields []Field) (descs []FieldDesc, primDataSize, numObjFields int, err error) {
	descs = make([]FieldDesc, len(fields))
	for i, f := range fields {
		descs[i].Field = f
		if f.IsPrimitive() {
			if numObjFields > 0 {
				return nil, 0, 0, streamCorrupted("illegal field order: primitive %s after references", f.Name)
			}
			descs[i].Offset = primDataSize
			primDataSize += primSize(f.Type)
			continue
		}
		descs[i].Offset = numObjFields
		numObjFields++
	}
	return descs, primDataSize, numObjFields, nil
}
