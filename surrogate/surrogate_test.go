package surrogate

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	javaio "github.com/lujjjh/go-javaio/v2"
	"github.com/lujjjh/go-javaio/v2/valid"
)

// key counts the hashing and equality calls made on it.
type key struct {
	id    int32
	calls *int
}

func (k *key) HashCode() int32 {
	*k.calls++
	return k.id % 2
}

func (k *key) Equals(other any) bool {
	*k.calls++
	o, ok := other.(*key)
	return ok && o.id == k.id
}

func keyClass(calls *int) *javaio.Class {
	return &javaio.Class{
		Name:             "test.Key",
		SerialVersionUID: 1,
		Fields:           []javaio.Field{javaio.IntField("id")},
		Type:             reflect.TypeOf((*key)(nil)),
		Serialize: func(obj any, args *javaio.PutArg) error {
			if err := args.PutInt("id", obj.(*key).id); err != nil {
				return err
			}
			return args.WriteArgs()
		},
		New: func(args *javaio.GetArg) (any, error) {
			id, err := args.GetInt("id", 0)
			if err != nil {
				return nil, err
			}
			return &key{id: id, calls: calls}, nil
		},
	}
}

func roundTrip(t *testing.T, reg *javaio.Registry, objects ...any) []any {
	t.Helper()
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, reg, javaio.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	for _, obj := range objects {
		require.NoError(t, enc.WriteObject(obj))
	}
	require.NoError(t, enc.Flush())

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()), reg, javaio.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	got := make([]any, 0, len(objects))
	for range objects {
		v, err := dec.ReadObject()
		require.NoError(t, err)
		got = append(got, v)
	}
	return got
}

type port int32

func TestBoxed(t *testing.T) {
	values := []any{true, int8(-1), int16(2), uint16('x'), int32(3), int64(4), float32(1.5), float64(2.5)}
	got := roundTrip(t, javaio.NewRegistry(), values...)
	assert.Equal(t, values, got)

	got = roundTrip(t, javaio.NewRegistry(), int(7), uint8(200), port(8080), uint32(9))
	assert.Equal(t, []any{int64(7), int8(-56), int32(8080), int64(9)}, got)
}

func TestBoxed_WireLayout(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, javaio.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, enc.WriteObject(int32(1)))
	require.NoError(t, enc.Flush())

	data := buf.Bytes()
	// TC_OBJECT TC_CLASSDESC "java.lang.Integer"
	assert.Equal(t, []byte{javaio.TcObject, javaio.TcClassdesc, 0x00, 0x11}, data[4:8])
	assert.Equal(t, "java.lang.Integer", string(data[8:25]))
	// the object's data is the last four bytes
	assert.Equal(t, []byte{0, 0, 0, 1}, data[len(data)-4:])
}

func TestPlatformTypes(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 6e6, time.UTC)
	u, err := url.Parse("https://example.com/a?b=c")
	require.NoError(t, err)
	id := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")

	got := roundTrip(t, javaio.NewRegistry(), when, &when, u, *u, id, &id, File{Path: "/tmp/x"}, &File{Path: "/tmp/y"})
	require.IsType(t, time.Time{}, got[0])
	assert.True(t, when.Equal(got[0].(time.Time)))
	assert.True(t, when.Equal(got[1].(time.Time)))
	assert.Equal(t, u.String(), got[2].(*url.URL).String())
	assert.Equal(t, u.String(), got[3].(*url.URL).String())
	assert.Equal(t, id, got[4])
	assert.Equal(t, id, got[5])
	assert.Equal(t, File{Path: "/tmp/x"}, got[6])
	assert.Equal(t, File{Path: "/tmp/y"}, got[7])
}

func TestMapAndSet(t *testing.T) {
	got := roundTrip(t, javaio.NewRegistry(),
		map[string]int32{"a": 1, "b": 2},
		map[string]struct{}{"x": {}, "y": {}},
	)

	require.IsType(t, &valid.SuspectMap{}, got[0])
	m, err := valid.CopyMap[string, int32](got[0].(*valid.SuspectMap))
	require.NoError(t, err)
	assert.Equal(t, map[string]int32{"a": 1, "b": 2}, m)

	require.IsType(t, &valid.SuspectSet{}, got[1])
	s, err := valid.CopySet[string](got[1].(*valid.SuspectSet))
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"x": {}, "y": {}}, s)
}

func TestUntrustedMapNeverHashed(t *testing.T) {
	var calls int
	reg := javaio.NewRegistry()
	require.NoError(t, reg.Register(keyClass(&calls)))

	in := map[*key]string{
		{id: 1, calls: &calls}: "one",
		{id: 2, calls: &calls}: "two",
		{id: 3, calls: &calls}: "three",
	}
	set := map[*key]struct{}{{id: 4, calls: &calls}: {}, {id: 5, calls: &calls}: {}}
	got := roundTrip(t, reg, in, set)
	assert.Zero(t, calls)

	m := got[0].(*valid.SuspectMap)
	assert.Equal(t, 3, m.Len())
	assert.Zero(t, calls)

	hm, err := valid.CopyHashMap[*key, string](m, 4)
	require.NoError(t, err)
	assert.Positive(t, calls)
	v, ok := hm.Get(&key{id: 2, calls: &calls})
	require.True(t, ok)
	assert.Equal(t, "two", v)

	_, err = valid.CopyHashMap[*key, string](m, 1)
	assert.ErrorIs(t, err, valid.ErrHashCollisions)

	hs, err := valid.CopyHashSet[*key](got[1].(*valid.SuspectSet), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, hs.Len())
}

func TestTypedSlice(t *testing.T) {
	var calls int
	reg := javaio.NewRegistry()
	require.NoError(t, reg.Register(keyClass(&calls)))

	k := &key{id: 1, calls: &calls}
	got := roundTrip(t, reg, []*key{k, k})
	require.IsType(t, &javaio.Array{}, got[0])
	array := got[0].(*javaio.Array)
	assert.Equal(t, "[Ltest.Key;", array.ClassName)
	keys, err := valid.CopyArray[*key](array)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, int32(1), keys[0].id)
	assert.Same(t, keys[0], keys[1])
}

func TestThrowable(t *testing.T) {
	err := fmt.Errorf("outer: %w", io.EOF)
	got := roundTrip(t, javaio.NewRegistry(), err)
	require.IsType(t, &Throwable{}, got[0])
	th := got[0].(*Throwable)
	assert.Equal(t, ThrowableOf(err), th)
	assert.Equal(t, "outer: EOF", th.Message)
	require.NotNil(t, th.Cause)
	assert.Equal(t, "EOF", th.Cause.Message)
	assert.Nil(t, th.Cause.Cause)
}

func TestLegacyCollections(t *testing.T) {
	m, err := valid.NewSuspectMap([]any{"k"}, []any{int32(1)})
	require.NoError(t, err)
	list := valid.NewSuspectList([]any{"a", int64(2)})
	set := valid.NewSuspectSet([]any{"s"})

	got := roundTrip(t, javaio.NewRegistry(), m, list, set)

	gotMap := got[0].(*valid.SuspectMap)
	require.Equal(t, 1, gotMap.Len())
	k, v := gotMap.Entry(0)
	assert.Equal(t, "k", k)
	assert.Equal(t, int32(1), v)

	gotList := got[1].(*valid.SuspectList)
	elems, err := valid.CopySlice[any](gotList)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", int64(2)}, elems)

	gotSet := got[2].(*valid.SuspectSet)
	require.Equal(t, 1, gotSet.Len())
	assert.Equal(t, "s", gotSet.Elem(0))
}

func TestLegacyHashMapWireLayout(t *testing.T) {
	m, err := valid.NewSuspectMap([]any{"k"}, []any{"v"})
	require.NoError(t, err)
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, javaio.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, enc.WriteObject(m))
	require.NoError(t, enc.Flush())

	data := buf.Bytes()
	assert.True(t, bytes.Contains(data, []byte("java.util.HashMap")))
	// flags SC_SERIALIZABLE|SC_WRITE_METHOD, two fields
	i := bytes.Index(data, []byte("java.util.HashMap")) + len("java.util.HashMap") + 8
	assert.Equal(t, []byte{0x03, 0x00, 0x02}, data[i:i+3])
	// custom data: 16 buckets, 1 entry
	assert.True(t, bytes.Contains(data, []byte{javaio.TcBlockdata, 8, 0, 0, 0, 16, 0, 0, 0, 1}))
	assert.Equal(t, javaio.TcEndblockdata, data[len(data)-1])
}

func TestFacade(t *testing.T) {
	reg := javaio.NewRegistry()
	require.NoError(t, Register(reg))
	f := NewFacade(reg)

	for _, tc := range []struct {
		in   any
		want any
	}{
		{int32(1), int32(1)},
		{"s", "s"},
		{[]int32{1}, []int32{1}},
		{int(3), int64(3)},
		{port(80), int32(80)},
		{map[string]int32{"a": 1}, &MapSerializer{Keys: []any{"a"}, Values: []any{int32(1)}}},
		{map[int32]struct{}{7: {}}, &SetSerializer{Elems: []any{int32(7)}}},
		{[]error{io.EOF}, javaio.NewObjectArray("java.lang.Object", io.EOF)},
		{io.EOF, &Throwable{TypeName: "*errors.errorString", Message: "EOF"}},
	} {
		got, err := f.ReplaceObject(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%T", tc.in)
	}

	type opaque struct{ x int }
	got, err := f.ReplaceObject(opaque{x: 1})
	require.NoError(t, err)
	assert.Equal(t, opaque{x: 1}, got)
}

func TestRegisterTwice(t *testing.T) {
	reg := javaio.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
	cls, ok := reg.ClassByName("java.lang.Integer")
	require.True(t, ok)
	assert.Equal(t, int64(1360826667806852920), cls.SerialVersionUID)
	require.NotNil(t, cls.Super)
	assert.Equal(t, "java.lang.Number", cls.Super.Name)
}

func TestPolicyWithSurrogates(t *testing.T) {
	reg := javaio.NewRegistry()
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, reg)
	require.NoError(t, err)
	require.NoError(t, enc.WriteObject(map[string]int32{"a": 1}))
	require.NoError(t, enc.Flush())

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()), reg, javaio.WithPolicy(javaio.DenyClasses("java.lang.Integer")))
	require.NoError(t, err)
	_, err = dec.ReadObject()
	assert.True(t, errors.Is(err, javaio.ErrPolicyDenied), "%+v", err)
}
