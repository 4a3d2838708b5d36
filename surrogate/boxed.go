package surrogate

import (
	"reflect"

	javaio "github.com/lujjjh/go-javaio/v2"
)

var numberClass = &javaio.Class{
	Name:             "java.lang.Number",
	SerialVersionUID: -8742448824652078965,
}

// boxed builds the class of a java.lang wrapper type, written for Go
// values of type T.
func boxed[T any](name string, suid int64, super *javaio.Class, field javaio.Field,
	put func(*javaio.PutArg, string, T) error,
	get func(*javaio.GetArg, string, T) (T, error),
) *javaio.Class {
	var zero T
	return &javaio.Class{
		Name:             name,
		SerialVersionUID: suid,
		Super:            super,
		Fields:           []javaio.Field{field},
		Type:             reflect.TypeOf(zero),
		Serialize: func(obj any, args *javaio.PutArg) error {
			if err := put(args, field.Name, obj.(T)); err != nil {
				return err
			}
			return args.WriteArgs()
		},
		New: func(args *javaio.GetArg) (any, error) {
			v, err := get(args, field.Name, zero)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

var (
	booleanClass   = boxed("java.lang.Boolean", -3665804199014368530, nil, javaio.BoolField("value"), (*javaio.PutArg).PutBool, (*javaio.GetArg).GetBool)
	characterClass = boxed("java.lang.Character", 3786198910865385080, nil, javaio.CharField("value"), (*javaio.PutArg).PutChar, (*javaio.GetArg).GetChar)
	byteClass      = boxed("java.lang.Byte", -7183698231559129828, numberClass, javaio.ByteField("value"), (*javaio.PutArg).PutByte, (*javaio.GetArg).GetByte)
	shortClass     = boxed("java.lang.Short", 7515723908773894738, numberClass, javaio.ShortField("value"), (*javaio.PutArg).PutShort, (*javaio.GetArg).GetShort)
	integerClass   = boxed("java.lang.Integer", 1360826667806852920, numberClass, javaio.IntField("value"), (*javaio.PutArg).PutInt, (*javaio.GetArg).GetInt)
	longClass      = boxed("java.lang.Long", 4290774380558885855, numberClass, javaio.LongField("value"), (*javaio.PutArg).PutLong, (*javaio.GetArg).GetLong)
	floatClass     = boxed("java.lang.Float", -2671257302660747028, numberClass, javaio.FloatField("value"), (*javaio.PutArg).PutFloat, (*javaio.GetArg).GetFloat)
	doubleClass    = boxed("java.lang.Double", -9172774392245257468, numberClass, javaio.DoubleField("value"), (*javaio.PutArg).PutDouble, (*javaio.GetArg).GetDouble)
)
