package surrogate

import (
	"math"
	"reflect"

	javaio "github.com/lujjjh/go-javaio/v2"
	"github.com/lujjjh/go-javaio/v2/valid"
)

const (
	defaultLoadFactor = 0.75
	// maxPrealloc caps what an element count read from the stream may
	// allocate up front.
	maxPrealloc = 1024
)

// tableSize returns the bucket count java.util.HashMap would use for n
// entries.
func tableSize(n int) int32 {
	want := int(float64(n)/defaultLoadFactor) + 1
	size := int32(16)
	for int(size) < want && size < 1<<30 {
		size <<= 1
	}
	return size
}

func readCount(in javaio.ObjectInput, what string) (int, error) {
	n, err := in.ReadInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, javaio.InvalidObjectf("negative %s: %d", what, n)
	}
	return int(n), nil
}

func readObjects(in javaio.ObjectInput, n int) ([]any, error) {
	objs := make([]any, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		obj, err := in.ReadObject()
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func checkLoadFactor(f float32) error {
	if f <= 0 || math.IsNaN(float64(f)) {
		return javaio.InvalidObjectf("illegal load factor: %v", f)
	}
	return nil
}

// hashMapClass reads java.util.HashMap into a *valid.SuspectMap and writes
// a *valid.SuspectMap back in the same layout.
var hashMapClass = &javaio.Class{
	Name:             "java.util.HashMap",
	SerialVersionUID: 362498820763181265,
	Fields: []javaio.Field{
		javaio.FloatField("loadFactor"),
		javaio.IntField("threshold"),
	},
	Type:        reflect.TypeOf((*valid.SuspectMap)(nil)),
	WriteMethod: true,
	Serialize: func(obj any, args *javaio.PutArg) error {
		m := obj.(*valid.SuspectMap)
		buckets := tableSize(m.Len())
		if err := args.PutFloat("loadFactor", defaultLoadFactor); err != nil {
			return err
		}
		if err := args.PutInt("threshold", int32(float64(buckets)*defaultLoadFactor)); err != nil {
			return err
		}
		if err := args.WriteArgs(); err != nil {
			return err
		}
		out, err := args.Output()
		if err != nil {
			return err
		}
		if err := out.WriteInt(buckets); err != nil {
			return err
		}
		if err := out.WriteInt(int32(m.Len())); err != nil {
			return err
		}
		for i := 0; i < m.Len(); i++ {
			k, v := m.Entry(i)
			if err := out.WriteObject(k); err != nil {
				return err
			}
			if err := out.WriteObject(v); err != nil {
				return err
			}
		}
		return nil
	},
	ReadInput: func(in javaio.ObjectInput) (any, error) {
		if _, err := in.ReadInt(); err != nil {
			return nil, err
		}
		n, err := readCount(in, "map size")
		if err != nil {
			return nil, err
		}
		entries, err := readObjects(in, 2*n)
		if err != nil {
			return nil, err
		}
		keys := make([]any, n)
		values := make([]any, n)
		for i := 0; i < n; i++ {
			keys[i], values[i] = entries[2*i], entries[2*i+1]
		}
		return valid.NewSuspectMap(keys, values)
	},
	New: func(args *javaio.GetArg) (any, error) {
		loadFactor, err := args.GetFloat("loadFactor", defaultLoadFactor)
		if err != nil {
			return nil, err
		}
		if err := checkLoadFactor(loadFactor); err != nil {
			return nil, err
		}
		return resultAs[*valid.SuspectMap](args, "java.util.HashMap")
	},
}

// arrayListClass reads java.util.ArrayList into a *valid.SuspectList.
var arrayListClass = &javaio.Class{
	Name:             "java.util.ArrayList",
	SerialVersionUID: 8683452581122892189,
	Fields:           []javaio.Field{javaio.IntField("size")},
	Type:             reflect.TypeOf((*valid.SuspectList)(nil)),
	WriteMethod:      true,
	Serialize: func(obj any, args *javaio.PutArg) error {
		l := obj.(*valid.SuspectList)
		if err := args.PutInt("size", int32(l.Len())); err != nil {
			return err
		}
		if err := args.WriteArgs(); err != nil {
			return err
		}
		out, err := args.Output()
		if err != nil {
			return err
		}
		if err := out.WriteInt(int32(l.Len())); err != nil {
			return err
		}
		for i := 0; i < l.Len(); i++ {
			if err := out.WriteObject(l.Elem(i)); err != nil {
				return err
			}
		}
		return nil
	},
	ReadInput: func(in javaio.ObjectInput) (any, error) {
		n, err := readCount(in, "list capacity")
		if err != nil {
			return nil, err
		}
		elems, err := readObjects(in, n)
		if err != nil {
			return nil, err
		}
		return valid.NewSuspectList(elems), nil
	},
	New: func(args *javaio.GetArg) (any, error) {
		l, err := resultAs[*valid.SuspectList](args, "java.util.ArrayList")
		if err != nil {
			return nil, err
		}
		size, err := args.GetInt("size", int32(l.Len()))
		if err != nil {
			return nil, err
		}
		if int(size) != l.Len() {
			return nil, javaio.InvalidObjectf("java.util.ArrayList: size %d, %d elements", size, l.Len())
		}
		return l, nil
	},
}

// hashSetClass reads java.util.HashSet into a *valid.SuspectSet.
var hashSetClass = &javaio.Class{
	Name:             "java.util.HashSet",
	SerialVersionUID: -5024744406713321676,
	Type:             reflect.TypeOf((*valid.SuspectSet)(nil)),
	WriteMethod:      true,
	Serialize: func(obj any, args *javaio.PutArg) error {
		s := obj.(*valid.SuspectSet)
		out, err := args.Output()
		if err != nil {
			return err
		}
		if err := out.WriteInt(tableSize(s.Len())); err != nil {
			return err
		}
		if err := out.WriteFloat(defaultLoadFactor); err != nil {
			return err
		}
		if err := out.WriteInt(int32(s.Len())); err != nil {
			return err
		}
		for i := 0; i < s.Len(); i++ {
			if err := out.WriteObject(s.Elem(i)); err != nil {
				return err
			}
		}
		return nil
	},
	ReadInput: func(in javaio.ObjectInput) (any, error) {
		if _, err := readCount(in, "set capacity"); err != nil {
			return nil, err
		}
		loadFactor, err := in.ReadFloat()
		if err != nil {
			return nil, err
		}
		if err := checkLoadFactor(loadFactor); err != nil {
			return nil, err
		}
		n, err := readCount(in, "set size")
		if err != nil {
			return nil, err
		}
		elems, err := readObjects(in, n)
		if err != nil {
			return nil, err
		}
		return valid.NewSuspectSet(elems), nil
	},
	New: func(args *javaio.GetArg) (any, error) {
		return resultAs[*valid.SuspectSet](args, "java.util.HashSet")
	},
}

func resultAs[T any](args *javaio.GetArg, className string) (T, error) {
	var zero T
	v, err := args.ReadResult()
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, javaio.InvalidObjectf("%s: custom data missing", className)
	}
	return t, nil
}
