package javaio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArray_ClassName(t *testing.T) {
	for _, tc := range []struct {
		v    any
		name string
	}{
		{[][]int32{}, "[[I"},
		{[]byte{}, "[B"},
		{[]bool{}, "[Z"},
		{[]uint16{}, "[C"},
		{[]string{}, "[Ljava.lang.String;"},
		{[]any{}, "[Ljava.lang.Object;"},
		{NewObjectArray("test.Node"), "[Ltest.Node;"},
		{NewObjectArray("[I"), "[[I"},
	} {
		name, err := ArrayClassName(tc.v)
		require.NoError(t, err)
		assert.Equal(t, tc.name, name)
	}

	_, err := ArrayClassName(42)
	assert.ErrorIs(t, err, ErrNotSerializable)
}

func TestArray_SerialVersionUID(t *testing.T) {
	assert.Equal(t, int64(1727100010502261052), arraySerialVersionUID("[[I"))
	assert.Equal(t, int64(-5984413125824719648), arraySerialVersionUID("[B"))
	assert.Equal(t, int64(5600894804908749477), arraySerialVersionUID("[I"))
	assert.Equal(t, int64(-8012369246846506644), arraySerialVersionUID("[Ljava.lang.Object;"))
	assert.Equal(t, int64(-5921575005990323385), arraySerialVersionUID("[Ljava.lang.String;"))
}

func TestArray_ComponentClassName(t *testing.T) {
	assert.Equal(t, "test.Node", NewObjectArray("test.Node").ComponentClassName())
	assert.Equal(t, "[I", NewObjectArray("[I").ComponentClassName())
}

func TestArray_RoundTrip(t *testing.T) {
	reg := NewRegistry()
	for _, v := range []any{
		[]int32{1, 2, 3},
		[]byte("hi"),
		[]bool{true, false},
		[]uint16{'a', 0xFFFF},
		[]int64{-1},
		[]float64{1.5},
	} {
		got := roundTrip(t, reg, v)
		assert.Equal(t, v, got)
	}

	got := roundTrip(t, reg, []string{"a", "b", "a"})
	require.IsType(t, &Array{}, got)
	array := got.(*Array)
	assert.Equal(t, "[Ljava.lang.String;", array.ClassName)
	assert.Equal(t, []any{"a", "b", "a"}, array.Elems)
}

func TestArray_Limits(t *testing.T) {
	data := encode(t, NewRegistry(), []int32{1, 2, 3})
	dec, err := NewDecoder(bytes.NewReader(data), WithMaxArrayLength(2))
	require.NoError(t, err)
	_, err = dec.ReadObject()
	assert.ErrorIs(t, err, ErrLimitExceeded)
}
