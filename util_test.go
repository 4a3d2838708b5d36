package javaio

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type node struct {
	value int32
	next  *node
}

var nodeClass = &Class{
	Name:             "test.Node",
	SerialVersionUID: 1,
	Fields:           []Field{IntField("value"), ObjectField("next", "test.Node")},
	Type:             reflect.TypeOf((*node)(nil)),
	Serialize: func(obj any, args *PutArg) error {
		n := obj.(*node)
		if err := args.PutInt("value", n.value); err != nil {
			return err
		}
		if err := args.PutObject("next", n.next); err != nil {
			return err
		}
		return args.WriteArgs()
	},
	New: func(args *GetArg) (any, error) {
		value, err := args.GetInt("value", 0)
		if err != nil {
			return nil, err
		}
		n := &node{value: value}
		return n, Defer(args, "next", func(next *node) {
			n.next = next
		})
	},
}

func newTestRegistry(t *testing.T, classes ...*Class) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(classes...))
	return reg
}

func encode(t *testing.T, reg *Registry, objects ...any) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, WithRegistry(reg), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	for _, obj := range objects {
		require.NoError(t, enc.WriteObject(obj))
	}
	require.NoError(t, enc.Flush())
	return buf.Bytes()
}

func newTestDecoder(t *testing.T, reg *Registry, data []byte, opts ...Option) *Decoder {
	t.Helper()
	opts = append([]Option{WithRegistry(reg), WithLogger(zaptest.NewLogger(t))}, opts...)
	dec, err := NewDecoder(bytes.NewReader(data), opts...)
	require.NoError(t, err)
	return dec
}

func roundTrip(t *testing.T, reg *Registry, obj any) any {
	t.Helper()
	dec := newTestDecoder(t, reg, encode(t, reg, obj))
	got, err := dec.ReadObject()
	require.NoError(t, err)
	return got
}

// stream assembles raw stream bytes after the header. Strings are written
// with a two-byte length; integers keep their width.
func stream(parts ...any) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, StreamMagic)
	_ = binary.Write(&buf, binary.BigEndian, StreamVersion)
	for _, p := range parts {
		switch p := p.(type) {
		case string:
			_ = binary.Write(&buf, binary.BigEndian, uint16(len(p)))
			buf.WriteString(p)
		case []byte:
			buf.Write(p)
		default:
			_ = binary.Write(&buf, binary.BigEndian, p)
		}
	}
	return buf.Bytes()
}
