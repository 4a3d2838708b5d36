package surrogate

import (
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"

	javaio "github.com/lujjjh/go-javaio/v2"
	"github.com/lujjjh/go-javaio/v2/valid"
)

const objectArrayClass = "[Ljava.lang.Object;"

// MapSerializer is the record a Go map is written as. It reads back as a
// *valid.SuspectMap.
type MapSerializer struct {
	Keys   []any
	Values []any
}

// SetSerializer is the record a Go set (map[T]struct{}) is written as. It
// reads back as a *valid.SuspectSet.
type SetSerializer struct {
	Elems []any
}

// Throwable is the record a Go error is written as, and what it reads
// back as.
type Throwable struct {
	TypeName string
	Message  string
	Cause    *Throwable
}

func (t *Throwable) Error() string {
	if t.Cause == nil {
		return t.Message
	}
	return t.Message + ": " + t.Cause.Error()
}

func (t *Throwable) Unwrap() error {
	if t.Cause == nil {
		return nil
	}
	return t.Cause
}

// ThrowableOf records err and its chain of causes.
func ThrowableOf(err error) *Throwable {
	if err == nil {
		return nil
	}
	if t, ok := err.(*Throwable); ok {
		return t
	}
	t := &Throwable{TypeName: fmt.Sprintf("%T", err), Message: err.Error()}
	if cause := errors.UnwrapOnce(err); cause != nil {
		t.Cause = ThrowableOf(cause)
	}
	return t
}

var mapSerializerClass = &javaio.Class{
	Name:             "javaio.surrogate.MapSerializer",
	SerialVersionUID: 1,
	Fields: []javaio.Field{
		javaio.ArrayField("keys", "[Ljava/lang/Object;"),
		javaio.ArrayField("values", "[Ljava/lang/Object;"),
	},
	Type: reflect.TypeOf((*MapSerializer)(nil)),
	Serialize: func(obj any, args *javaio.PutArg) error {
		m := obj.(*MapSerializer)
		if err := args.PutObject("keys", &javaio.Array{ClassName: objectArrayClass, Elems: m.Keys}); err != nil {
			return err
		}
		if err := args.PutObject("values", &javaio.Array{ClassName: objectArrayClass, Elems: m.Values}); err != nil {
			return err
		}
		return args.WriteArgs()
	},
	New: func(args *javaio.GetArg) (any, error) {
		arrayType := reflect.TypeOf((*javaio.Array)(nil))
		if err := args.Validate([]string{"keys", "values"}, []reflect.Type{arrayType, arrayType}, []bool{true, true}); err != nil {
			return nil, err
		}
		keys, err := javaio.Get[*javaio.Array](args, "keys", nil)
		if err != nil {
			return nil, err
		}
		values, err := javaio.Get[*javaio.Array](args, "values", nil)
		if err != nil {
			return nil, err
		}
		// The entry slices are shared so that slots naming objects still
		// under construction are seen once they are filled.
		return valid.NewSuspectMap(keys.Elems, values.Elems)
	},
}

var setSerializerClass = &javaio.Class{
	Name:             "javaio.surrogate.SetSerializer",
	SerialVersionUID: 1,
	Fields:           []javaio.Field{javaio.ArrayField("elements", "[Ljava/lang/Object;")},
	Type:             reflect.TypeOf((*SetSerializer)(nil)),
	Serialize: func(obj any, args *javaio.PutArg) error {
		s := obj.(*SetSerializer)
		if err := args.PutObject("elements", &javaio.Array{ClassName: objectArrayClass, Elems: s.Elems}); err != nil {
			return err
		}
		return args.WriteArgs()
	},
	New: func(args *javaio.GetArg) (any, error) {
		elems, err := javaio.Get[*javaio.Array](args, "elements", nil)
		if err != nil {
			return nil, err
		}
		if elems == nil {
			return nil, javaio.InvalidObjectf("set without elements")
		}
		return valid.NewSuspectSet(elems.Elems), nil
	},
}

var throwableClass = &javaio.Class{
	Name:             "javaio.surrogate.ThrowableSerializer",
	SerialVersionUID: 1,
	Fields: []javaio.Field{
		javaio.ObjectField("cause", "javaio.surrogate.ThrowableSerializer"),
		javaio.ObjectField("message", "java.lang.String"),
		javaio.ObjectField("typeName", "java.lang.String"),
	},
	Type: reflect.TypeOf((*Throwable)(nil)),
	Serialize: func(obj any, args *javaio.PutArg) error {
		t := obj.(*Throwable)
		var cause any
		if t.Cause != nil {
			cause = t.Cause
		}
		if err := args.PutObject("cause", cause); err != nil {
			return err
		}
		if err := args.PutObject("message", t.Message); err != nil {
			return err
		}
		if err := args.PutObject("typeName", t.TypeName); err != nil {
			return err
		}
		return args.WriteArgs()
	},
	New: func(args *javaio.GetArg) (any, error) {
		message, err := javaio.Get(args, "message", "")
		if err != nil {
			return nil, err
		}
		typeName, err := javaio.Get(args, "typeName", "")
		if err != nil {
			return nil, err
		}
		t := &Throwable{TypeName: typeName, Message: message}
		return t, javaio.Defer(args, "cause", func(cause *Throwable) {
			t.Cause = cause
		})
	},
}
