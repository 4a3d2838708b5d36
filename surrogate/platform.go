package surrogate

import (
	"encoding/binary"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	javaio "github.com/lujjjh/go-javaio/v2"
)

var stringType = reflect.TypeOf("")

// File is a file system path, written as java.io.File.
type File struct {
	Path string
}

func (f File) String() string {
	return f.Path
}

// dateClass writes a time.Time as java.util.Date: milliseconds since the
// epoch in the custom data, no fields.
var dateClass = &javaio.Class{
	Name:             "java.util.Date",
	SerialVersionUID: 7523967970034938905,
	Type:             reflect.TypeOf(time.Time{}),
	WriteMethod:      true,
	Serialize: func(obj any, args *javaio.PutArg) error {
		out, err := args.Output()
		if err != nil {
			return err
		}
		return out.WriteLong(obj.(time.Time).UnixMilli())
	},
	ReadInput: func(in javaio.ObjectInput) (any, error) {
		ms, err := in.ReadLong()
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	},
	New: func(args *javaio.GetArg) (any, error) {
		v, err := args.ReadResult()
		if err != nil {
			return nil, err
		}
		t, ok := v.(time.Time)
		if !ok {
			return nil, javaio.InvalidObjectf("java.util.Date without time")
		}
		return t, nil
	},
}

var uriClass = &javaio.Class{
	Name:             "java.net.URI",
	SerialVersionUID: -6052424284110960213,
	Fields:           []javaio.Field{javaio.ObjectField("string", "java.lang.String")},
	Type:             reflect.TypeOf((*url.URL)(nil)),
	WriteMethod:      true,
	Serialize: func(obj any, args *javaio.PutArg) error {
		if err := args.PutObject("string", obj.(*url.URL).String()); err != nil {
			return err
		}
		return args.WriteArgs()
	},
	New: func(args *javaio.GetArg) (any, error) {
		if err := args.Validate([]string{"string"}, []reflect.Type{stringType}, []bool{true}); err != nil {
			return nil, err
		}
		s, err := javaio.Get(args, "string", "")
		if err != nil {
			return nil, err
		}
		u, err := url.Parse(s)
		if err != nil {
			return nil, javaio.InvalidObjectf("java.net.URI: %v", err)
		}
		return u, nil
	},
}

var uuidClass = &javaio.Class{
	Name:             "java.util.UUID",
	SerialVersionUID: -4856846361193249489,
	Fields: []javaio.Field{
		javaio.LongField("leastSigBits"),
		javaio.LongField("mostSigBits"),
	},
	Type: reflect.TypeOf(uuid.UUID{}),
	Serialize: func(obj any, args *javaio.PutArg) error {
		u := obj.(uuid.UUID)
		if err := args.PutLong("mostSigBits", int64(binary.BigEndian.Uint64(u[:8]))); err != nil {
			return err
		}
		if err := args.PutLong("leastSigBits", int64(binary.BigEndian.Uint64(u[8:]))); err != nil {
			return err
		}
		return args.WriteArgs()
	},
	New: func(args *javaio.GetArg) (any, error) {
		msb, err := args.GetLong("mostSigBits", 0)
		if err != nil {
			return nil, err
		}
		lsb, err := args.GetLong("leastSigBits", 0)
		if err != nil {
			return nil, err
		}
		var u uuid.UUID
		binary.BigEndian.PutUint64(u[:8], uint64(msb))
		binary.BigEndian.PutUint64(u[8:], uint64(lsb))
		return u, nil
	},
}

// fileClass writes the path field followed by the writer's separator
// character. Paths read with another separator are converted to slashes.
var fileClass = &javaio.Class{
	Name:             "java.io.File",
	SerialVersionUID: 301077366599181567,
	Fields:           []javaio.Field{javaio.ObjectField("path", "java.lang.String")},
	Type:             reflect.TypeOf(File{}),
	WriteMethod:      true,
	Serialize: func(obj any, args *javaio.PutArg) error {
		if err := args.PutObject("path", obj.(File).Path); err != nil {
			return err
		}
		out, err := args.Output()
		if err != nil {
			return err
		}
		return out.WriteChar('/')
	},
	ReadInput: func(in javaio.ObjectInput) (any, error) {
		c, err := in.ReadChar()
		if err != nil {
			return nil, err
		}
		return c, nil
	},
	New: func(args *javaio.GetArg) (any, error) {
		if err := args.Validate([]string{"path"}, []reflect.Type{stringType}, []bool{true}); err != nil {
			return nil, err
		}
		path, err := javaio.Get(args, "path", "")
		if err != nil {
			return nil, err
		}
		sep, err := args.ReadResult()
		if err != nil {
			return nil, err
		}
		if c, ok := sep.(uint16); ok && c != '/' {
			path = strings.ReplaceAll(path, string(rune(c)), "/")
		}
		return File{Path: path}, nil
	},
}
