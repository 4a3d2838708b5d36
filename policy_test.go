package javaio

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_AllowClasses(t *testing.T) {
	reg := newTestRegistry(t, nodeClass, EnumClass("test.Color", red, green))
	data := encode(t, reg, &node{value: 1}, []int32{1}, []any{green})

	dec := newTestDecoder(t, reg, data, WithPolicy(AllowClasses("test.Node", "test.Color", "java.lang.Object")))
	for i := 0; i < 3; i++ {
		_, err := dec.ReadObject()
		require.NoError(t, err)
	}

	dec = newTestDecoder(t, reg, data, WithPolicy(AllowClasses("test.Color")))
	_, err := dec.ReadObject()
	assert.True(t, errors.Is(err, ErrPolicyDenied), "%+v", err)
	assert.Contains(t, err.Error(), "test.Node")
}

func TestPolicy_DenyClasses(t *testing.T) {
	reg := newTestRegistry(t, nodeClass)
	data := encode(t, reg, NewObjectArray("test.Node", &node{value: 1}))

	dec := newTestDecoder(t, reg, data, WithPolicy(DenyClasses("test.Node")))
	_, err := dec.ReadObject()
	assert.True(t, errors.Is(err, ErrPolicyDenied), "%+v", err)
}

func TestPolicy_ErrorsAreMarked(t *testing.T) {
	reg := newTestRegistry(t, nodeClass)
	data := encode(t, reg, &node{value: 1})
	errNope := errors.New("nope")

	dec := newTestDecoder(t, reg, data, WithPolicy(PolicyFunc(func(*ClassDesc, Operation) error {
		return errNope
	})))
	_, err := dec.ReadObject()
	assert.True(t, errors.Is(err, ErrPolicyDenied), "%+v", err)
	assert.True(t, errors.Is(err, errNope))
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "class", OpClass.String())
	assert.Equal(t, "stateless-class", OpStatelessClass.String())
	assert.Equal(t, "enum", OpEnum.String())
	assert.Equal(t, "array", OpArray.String())
	assert.Equal(t, "proxy", OpProxy.String())
}
