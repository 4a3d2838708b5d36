package javaio

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// PutArg stages the serial field values of one class level while an object
// is written. Staged values reach the stream only through WriteArgs; a
// level that stages values and never commits them fails the whole write.
//
// A PutArg is valid only during the Serialize call it was passed to.
type PutArg struct {
	enc     *Encoder
	desc    *ClassDesc
	values  map[string]any
	dirty   bool
	written bool
	active  bool
}

func newPutArg(enc *Encoder, desc *ClassDesc) *PutArg {
	return &PutArg{
		enc:    enc,
		desc:   desc,
		values: make(map[string]any, len(desc.Fields)),
		active: true,
	}
}

func (p *PutArg) checkActive() error {
	if !p.active {
		return errors.Wrapf(ErrNotActive, "%s: PutArg used outside Serialize", p.desc.Name)
	}
	return nil
}

func (p *PutArg) put(name string, code byte, v any) error {
	if err := p.checkActive(); err != nil {
		return err
	}
	if p.written {
		return errors.Wrapf(ErrFieldsNotWritten, "%s: put %s after fields were written", p.desc.Name, name)
	}
	f, ok := p.desc.Field(name)
	if !ok {
		return invalidClass(p.desc.Name, "no field %s", name)
	}
	if f.IsPrimitive() || code != TypeObject {
		if f.Type != code {
			return invalidClass(p.desc.Name, "field %s is %c, not %c", name, f.Type, code)
		}
	}
	p.values[name] = v
	p.dirty = true
	return nil
}

func (p *PutArg) PutBool(name string, v bool) error     { return p.put(name, TypeBoolean, v) }
func (p *PutArg) PutByte(name string, v int8) error     { return p.put(name, TypeByte, v) }
func (p *PutArg) PutChar(name string, v uint16) error   { return p.put(name, TypeChar, v) }
func (p *PutArg) PutShort(name string, v int16) error   { return p.put(name, TypeShort, v) }
func (p *PutArg) PutInt(name string, v int32) error     { return p.put(name, TypeInt, v) }
func (p *PutArg) PutLong(name string, v int64) error    { return p.put(name, TypeLong, v) }
func (p *PutArg) PutFloat(name string, v float32) error { return p.put(name, TypeFloat, v) }
func (p *PutArg) PutDouble(name string, v float64) error {
	return p.put(name, TypeDouble, v)
}

// PutObject stages a reference field. Object and array fields both accept
// any value; the value is written with the same dispatch as WriteObject.
func (p *PutArg) PutObject(name string, v any) error {
	return p.put(name, TypeObject, v)
}

// WriteArgs commits the staged values in descriptor order. Fields that were
// never staged are written with their zero value.
func (p *PutArg) WriteArgs() error {
	if err := p.checkActive(); err != nil {
		return err
	}
	if p.written {
		return errors.Newf("%s: fields already written", p.desc.Name)
	}
	p.written = true
	p.dirty = false
	return p.enc.writeFields(p.desc, p.values)
}

// Output returns the sink for the level's custom data. It requires a class
// with WriteMethod and may only be used once the fields are written; when
// nothing was staged the zero values are written first.
func (p *PutArg) Output() (ObjectOutput, error) {
	if err := p.checkActive(); err != nil {
		return nil, err
	}
	if !p.desc.HasWriteMethod() {
		return nil, invalidClass(p.desc.Name, "custom data requires WriteMethod")
	}
	if p.dirty {
		return nil, errors.Wrapf(ErrFieldsNotWritten, "%s: custom data before WriteArgs", p.desc.Name)
	}
	if !p.written {
		if err := p.WriteArgs(); err != nil {
			return nil, err
		}
	}
	return p.enc, nil
}

// finish closes the level after Serialize returned.
func (p *PutArg) finish() error {
	defer func() { p.active = false }()
	if p.dirty {
		return errors.Wrapf(ErrFieldsNotWritten, "%s", p.desc.Name)
	}
	if !p.written {
		return p.WriteArgs()
	}
	return nil
}

// writeFields writes one level's primitive data followed by its references.
func (enc *Encoder) writeFields(desc *ClassDesc, values map[string]any) error {
	oldMode := enc.blockDataMode
	if err := enc.blockDataModeOffAndFlush(); err != nil {
		return err
	}
	defer func() {
		if oldMode {
			enc.blockDataModeOn()
		}
	}()
	prim := make([]byte, desc.primDataSize)
	for _, f := range desc.Fields {
		if !f.IsPrimitive() {
			continue
		}
		if v, ok := values[f.Name]; ok {
			putPrimitive(prim[f.Offset:], v)
		}
	}
	if _, err := enc.Write(prim); err != nil {
		return err
	}
	for _, f := range desc.Fields {
		if f.IsPrimitive() {
			continue
		}
		if err := enc.writeObject(values[f.Name]); err != nil {
			return errors.Wrapf(err, "%s.%s", desc.Name, f.Name)
		}
	}
	return nil
}

func putPrimitive(b []byte, v any) {
	switch v := v.(type) {
	case bool:
		if v {
			b[0] = 1
		}
	case int8:
		b[0] = byte(v)
	case uint16:
		binary.BigEndian.PutUint16(b, v)
	case int16:
		binary.BigEndian.PutUint16(b, uint16(v))
	case int32:
		binary.BigEndian.PutUint32(b, uint32(v))
	case int64:
		binary.BigEndian.PutUint64(b, uint64(v))
	case float32:
		binary.BigEndian.PutUint32(b, math.Float32bits(v))
	case float64:
		binary.BigEndian.PutUint64(b, math.Float64bits(v))
	}
}

func getPrimitive(code byte, b []byte) any {
	switch code {
	case TypeBoolean:
		return b[0] != 0
	case TypeByte:
		return int8(b[0])
	case TypeChar:
		return binary.BigEndian.Uint16(b)
	case TypeShort:
		return int16(binary.BigEndian.Uint16(b))
	case TypeInt:
		return int32(binary.BigEndian.Uint32(b))
	case TypeLong:
		return int64(binary.BigEndian.Uint64(b))
	case TypeFloat:
		return math.Float32frombits(binary.BigEndian.Uint32(b))
	case TypeDouble:
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	}
	return nil
}
