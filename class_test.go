package javaio

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(derivedClass))
	require.NoError(t, reg.Register(derivedClass))

	cls, ok := reg.ClassByName("test.Base")
	require.True(t, ok)
	assert.Same(t, baseClass, cls)

	cls, ok = reg.ClassOf(&derived{})
	require.True(t, ok)
	assert.Same(t, derivedClass, cls)

	_, ok = reg.ClassOf(nil)
	assert.False(t, ok)
	assert.Contains(t, reg.Classes(), "test.Derived")
	assert.Contains(t, reg.Classes(), enumClassName)

	assert.Error(t, reg.Register(&Class{Name: "test.Base"}))
	assert.Error(t, reg.Register(&Class{Name: "test.Other", Type: reflect.TypeOf((*derived)(nil))}))
}

func TestClass_Validate(t *testing.T) {
	for name, cls := range map[string]*Class{
		"no name":         {},
		"duplicate field": {Name: "a.B", Fields: []Field{IntField("x"), LongField("x")}},
		"bad signature":   {Name: "a.B", Fields: []Field{{Name: "x", Type: TypeObject, Signature: "Lfoo"}}},
		"bad type code":   {Name: "a.B", Fields: []Field{{Name: "x", Type: 'Q'}}},
		"externalizable with fields": {
			Name:           "a.B",
			Externalizable: true,
			Fields:         []Field{IntField("x")},
			WriteExternal:  func(any, ObjectOutput) error { return nil },
		},
		"externalizable without hooks": {Name: "a.B", Externalizable: true},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, NewRegistry().Register(cls))
		})
	}
}

func TestDescribe(t *testing.T) {
	reg := newTestRegistry(t, derivedClass, stampedClass, extClass)

	desc, err := reg.Describe(derivedClass)
	require.NoError(t, err)
	assert.Equal(t, "test.Derived", desc.Name)
	assert.Equal(t, ScSerializable, desc.Flags)
	require.NotNil(t, desc.Super)
	assert.Equal(t, "test.Base", desc.Super.Name)
	assert.Same(t, derivedClass, desc.Class())

	desc, err = reg.Lookup(reflect.TypeOf((*stamped)(nil)))
	require.NoError(t, err)
	assert.Equal(t, ScSerializable|ScWriteMethod, desc.Flags)

	desc, err = reg.Describe(extClass)
	require.NoError(t, err)
	assert.Equal(t, ScExternalizable|ScBlockData, desc.Flags)

	_, err = reg.Lookup(reflect.TypeOf(0))
	assert.ErrorIs(t, err, ErrNotSerializable)
}

func TestSortFields(t *testing.T) {
	fields := sortFields([]Field{
		ObjectField("b", "java.lang.String"),
		LongField("l"),
		ByteField("z"),
		IntField("i"),
		ArrayField("a", "[I"),
		BoolField("f"),
		CharField("c"),
	})
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"f", "z", "c", "i", "l", "a", "b"}, names)

	descs, primSize, numObj, err := layoutFields(fields)
	require.NoError(t, err)
	assert.Equal(t, 1+1+2+4+8, primSize)
	assert.Equal(t, 2, numObj)
	assert.Equal(t, 8, descs[4].Offset)
	assert.Equal(t, 1, descs[6].Offset)
}

func TestField_ClassName(t *testing.T) {
	assert.Equal(t, "java.lang.String", ObjectField("s", "java.lang.String").ClassName())
	assert.Equal(t, "[Ljava.lang.String;", ArrayField("a", "[Ljava/lang/String;").ClassName())
	assert.Equal(t, "", IntField("i").ClassName())
}
