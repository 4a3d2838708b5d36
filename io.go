package javaio

import (
	"io"
)

// ObjectOutput is the custom-data sink handed to write hooks. Primitive
// values are framed as block data; objects are written inline.
type ObjectOutput interface {
	io.Writer
	WriteBool(v bool) error
	WriteByte(v byte) error
	WriteShort(v int16) error
	WriteChar(v uint16) error
	WriteInt(v int32) error
	WriteLong(v int64) error
	WriteFloat(v float32) error
	WriteDouble(v float64) error
	WriteUTF(s string) error
	WriteObject(obj any) error
}

// ObjectInput is the custom-data source handed to read hooks. Reads past
// the end of a class's custom data return io.EOF. ReadObject returns
// ErrOptionalData while primitive data is pending and at the end of the
// custom data, which stays unread.
type ObjectInput interface {
	io.Reader
	ReadBool() (bool, error)
	ReadByte() (byte, error)
	ReadShort() (int16, error)
	ReadChar() (uint16, error)
	ReadInt() (int32, error)
	ReadLong() (int64, error)
	ReadFloat() (float32, error)
	ReadDouble() (float64, error)
	ReadUTF() (string, error)
	ReadFully(p []byte) error
	ReadObject() (any, error)
}

var (
	_ ObjectOutput = (*Encoder)(nil)
	_ ObjectInput  = (*Decoder)(nil)
)
