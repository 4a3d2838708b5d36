package javaio

import (
	"encoding/binary"
	"io"
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Encoder writes object graphs in the Java object serialization stream
// format. Objects are written through their registered Class: the class
// stages its serial form into a PutArg instead of having its fields copied
// reflectively.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	w       io.Writer
	opts    options
	logger  *zap.Logger
	handles *writeHandles

	blockDataMode      bool
	blockDataBuffer    [maxBlockSize]byte
	blockDataBufferPos int

	depth int
	// broken is the cause of the last failed top-level write.
	broken error
}

// NewEncoder writes the stream header to w and returns an Encoder in
// block-data mode.
func NewEncoder(w io.Writer, opts ...Option) (*Encoder, error) {
	o := buildOptions(opts)
	enc := &Encoder{
		w:       w,
		opts:    o,
		logger:  o.logger,
		handles: newWriteHandles(),
	}
	if err := enc.writeHeader(); err != nil {
		return nil, err
	}
	enc.blockDataModeOn()
	return enc, nil
}

// Registry returns the classes the encoder writes with.
func (enc *Encoder) Registry() *Registry {
	return enc.opts.registry
}

func (enc *Encoder) Write(p []byte) (int, error) {
	if !enc.blockDataMode {
		return enc.w.Write(p)
	}
	n := len(p)
	for len(p) > 0 {
		if enc.blockDataBufferPos >= len(enc.blockDataBuffer) {
			if err := enc.flush(); err != nil {
				return n - len(p), err
			}
		}
		wLen := copy(enc.blockDataBuffer[enc.blockDataBufferPos:], p)
		enc.blockDataBufferPos += wLen
		p = p[wLen:]
	}
	return n, nil
}

func (enc *Encoder) blockDataModeOn() {
	enc.blockDataMode = true
}

func (enc *Encoder) blockDataModeOffAndFlush() error {
	if err := enc.flush(); err != nil {
		return err
	}
	enc.blockDataMode = false
	return nil
}

func (enc *Encoder) flush() error {
	if !enc.blockDataMode {
		return nil
	}
	if enc.blockDataBufferPos == 0 {
		return nil
	}
	if err := enc.writeBlockHeader(enc.blockDataBufferPos); err != nil {
		return err
	}
	_, err := enc.w.Write(enc.blockDataBuffer[:enc.blockDataBufferPos])
	if err != nil {
		return err
	}
	enc.blockDataBufferPos = 0
	return nil
}

func (enc *Encoder) writeBlockHeader(i int) error {
	if i <= 0xFF {
		_, err := enc.w.Write([]byte{TcBlockdata, byte(i)})
		return err
	}
	if _, err := enc.w.Write([]byte{TcBlockdatalong}); err != nil {
		return err
	}
	return binary.Write(enc.w, binary.BigEndian, int32(i))
}

func (enc *Encoder) writeBinary(values ...any) error {
	for _, value := range values {
		if err := binary.Write(enc, binary.BigEndian, value); err != nil {
			return err
		}
	}
	return nil
}

func (enc *Encoder) writeHeader() error {
	return enc.writeBinary(StreamMagic, StreamVersion)
}

func (enc *Encoder) usable() error {
	if enc.broken != nil && enc.depth == 0 {
		return errors.Wrapf(ErrStreamBroken, "previous write failed: %v", enc.broken)
	}
	return nil
}

func (enc *Encoder) writePrimitive(v any) error {
	if err := enc.usable(); err != nil {
		return err
	}
	return enc.writeBinary(v)
}

func (enc *Encoder) WriteBool(v bool) error      { return enc.writePrimitive(v) }
func (enc *Encoder) WriteByte(v byte) error      { return enc.writePrimitive(v) }
func (enc *Encoder) WriteShort(v int16) error    { return enc.writePrimitive(v) }
func (enc *Encoder) WriteChar(v uint16) error    { return enc.writePrimitive(v) }
func (enc *Encoder) WriteInt(v int32) error      { return enc.writePrimitive(v) }
func (enc *Encoder) WriteLong(v int64) error     { return enc.writePrimitive(v) }
func (enc *Encoder) WriteFloat(v float32) error  { return enc.writePrimitive(v) }
func (enc *Encoder) WriteDouble(v float64) error { return enc.writePrimitive(v) }

// WriteUTF writes s in modified UTF-8 with a two-byte length prefix.
func (enc *Encoder) WriteUTF(s string) error {
	if err := enc.usable(); err != nil {
		return err
	}
	return enc.writeUTF(s)
}

func (enc *Encoder) writeUTF(s string) error {
	p := encodeModifiedUTF8(s)
	if len(p) > maxShortUTFLen {
		return limitExceeded("UTF length", int64(len(p)), maxShortUTFLen)
	}
	return enc.writeBinary(uint16(len(p)), p)
}

func (enc *Encoder) writeLongUTF(p []byte) error {
	return enc.writeBinary(int64(len(p)), p)
}

// WriteObject writes object and everything reachable from it.
//
// When a top-level write fails the encoder writes TC_EXCEPTION followed by
// a WriteFailure record, with the handle table cleared before and after,
// and refuses further writes until Reset. If the record cannot be written
// either, both errors are returned.
func (enc *Encoder) WriteObject(object any) error {
	if enc.depth > 0 {
		return enc.writeObject(object)
	}
	if err := enc.usable(); err != nil {
		return err
	}
	if err := enc.writeObject(object); err != nil {
		enc.opts.metrics.fault("write", err)
		return enc.writeFatal(err)
	}
	return nil
}

func (enc *Encoder) writeFatal(cause error) error {
	enc.logger.Debug("write failed, writing exception marker", zap.Error(cause))
	enc.broken = cause
	enc.handles.clear()
	oldMode := enc.blockDataMode
	err := enc.blockDataModeOffAndFlush()
	if err == nil {
		err = enc.writeBinary(TcException)
	}
	if err == nil {
		err = enc.writeObject(&WriteFailure{Kind: faultKind(cause), Message: cause.Error()})
	}
	enc.handles.clear()
	if oldMode {
		enc.blockDataModeOn()
	}
	if err != nil {
		enc.logger.Debug("failure record not written", zap.Error(err))
		return combine(cause, errors.Wrap(err, "writing failure record"))
	}
	return cause
}

// Reset discards the handle table and writes TC_RESET so that a reader
// discards its own. It also clears a previous write failure.
func (enc *Encoder) Reset() error {
	if enc.depth != 0 {
		return errors.New("reset during an active write")
	}
	if err := enc.blockDataModeOffAndFlush(); err != nil {
		return err
	}
	if err := enc.writeBinary(TcReset); err != nil {
		return err
	}
	enc.handles.clear()
	enc.broken = nil
	enc.blockDataModeOn()
	enc.opts.metrics.reset()
	enc.logger.Debug("stream reset")
	return nil
}

// Flush writes buffered block data and flushes the underlying writer if it
// has a Flush method.
func (enc *Encoder) Flush() error {
	if err := enc.flush(); err != nil {
		return err
	}
	if f, ok := enc.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes the encoder and closes the underlying writer if it is an
// io.Closer.
func (enc *Encoder) Close() error {
	if err := enc.Flush(); err != nil {
		return err
	}
	if c, ok := enc.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (enc *Encoder) writeObject(object any) error {
	if enc.depth >= enc.opts.maxDepth {
		return limitExceeded("depth", int64(enc.depth+1), int64(enc.opts.maxDepth))
	}
	oldMode := enc.blockDataMode
	if err := enc.blockDataModeOffAndFlush(); err != nil {
		return err
	}
	enc.depth++
	defer func() {
		enc.depth--
		if oldMode {
			enc.blockDataModeOn()
		}
	}()
	return enc.writeObject0(object)
}

func (enc *Encoder) writeRefOr(object any, f func() error) error {
	if handle := enc.handles.findHandle(object); handle != -1 {
		return enc.writeBinary(TcReference, handle)
	}
	return f()
}

func (enc *Encoder) writeObject0(object any) error {
	if isNil(object) {
		return enc.writeBinary(TcNull)
	}
	if rep, ok := enc.handles.lookupSubstitute(object); ok {
		if isNil(rep) {
			return enc.writeBinary(TcNull)
		}
		object = rep
	}
	return enc.writeRefOr(object, func() error {
		switch v := object.(type) {
		case *Class:
			return enc.writeClass(v)
		case *ClassDesc:
			return enc.writeClassDesc(v)
		}
		rep, err := enc.replace(object)
		if err != nil {
			return err
		}
		if sameIdentity(object, rep) {
			return enc.writeValue(object)
		}
		enc.handles.substitute(object, rep)
		if isNil(rep) {
			return enc.writeBinary(TcNull)
		}
		return enc.writeRefOr(rep, func() error {
			return enc.writeValue(rep)
		})
	})
}

// replace runs the class-level WriteReplace and then the stream Replacer,
// each once.
func (enc *Encoder) replace(object any) (any, error) {
	if cls, ok := enc.opts.registry.ClassOf(object); ok && cls.WriteReplace != nil {
		rep, err := cls.WriteReplace(object)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: WriteReplace", cls.Name)
		}
		object = rep
	}
	if enc.opts.replacer != nil && !isNil(object) {
		rep, err := enc.opts.replacer.ReplaceObject(object)
		if err != nil {
			return nil, errors.Wrapf(err, "replacing %T", object)
		}
		object = rep
	}
	return object, nil
}

func (enc *Encoder) writeValue(object any) error {
	switch v := object.(type) {
	case string:
		return enc.writeString(v)
	case *Array:
		if len(v.ClassName) == 2 {
			return errors.Wrapf(ErrNotSerializable, "*Array of primitive class %s", v.ClassName)
		}
		return enc.writeArray(v, v.ClassName)
	}
	if name, ok := sliceClassName(reflect.TypeOf(object)); ok {
		return enc.writeArray(object, name)
	}
	cls, ok := enc.opts.registry.ClassOf(object)
	if ok && cls.enum {
		return enc.writeEnum(cls, object)
	}
	if p, ok := object.(*Proxy); ok {
		return enc.writeProxy(p)
	}
	if !ok {
		return notSerializable(object)
	}
	return enc.writeOrdinaryObject(cls, object)
}

func (enc *Encoder) writeString(s string) error {
	p := encodeModifiedUTF8(s)
	if len(p) <= maxShortUTFLen {
		if err := enc.writeBinary(TcString); err != nil {
			return err
		}
		enc.handles.newHandle(s)
		return enc.writeBinary(uint16(len(p)), p)
	}
	if err := enc.writeBinary(TcLongstring); err != nil {
		return err
	}
	enc.handles.newHandle(s)
	return enc.writeLongUTF(p)
}

// writeTypeString writes a field signature, back-referencing it when the
// same signature was written before.
func (enc *Encoder) writeTypeString(sig string) error {
	return enc.writeRefOr(sig, func() error {
		return enc.writeString(sig)
	})
}

func (enc *Encoder) writeClass(cls *Class) error {
	desc, err := enc.opts.registry.Describe(cls)
	if err != nil {
		return err
	}
	if err := enc.writeBinary(TcClass); err != nil {
		return err
	}
	if err := enc.writeClassDesc(desc); err != nil {
		return err
	}
	enc.handles.newHandle(cls)
	return nil
}

func (enc *Encoder) writeClassDesc(desc *ClassDesc) error {
	if desc == nil {
		return enc.writeBinary(TcNull)
	}
	return enc.writeRefOr(desc, func() error {
		if desc.Proxy {
			return enc.writeProxyDesc(desc)
		}
		return enc.writeNonProxyDesc(desc)
	})
}

func (enc *Encoder) writeNonProxyDesc(desc *ClassDesc) error {
	if err := enc.writeBinary(TcClassdesc); err != nil {
		return err
	}
	enc.handles.newHandle(desc)
	if err := enc.writeUTF(desc.Name); err != nil {
		return err
	}
	if err := enc.writeBinary(desc.SerialVersionUID, desc.Flags, int16(len(desc.Fields))); err != nil {
		return err
	}
	for _, f := range desc.Fields {
		if err := enc.writeBinary(f.Type); err != nil {
			return err
		}
		if err := enc.writeUTF(f.Name); err != nil {
			return err
		}
		if !f.IsPrimitive() {
			if err := enc.writeTypeString(f.Signature); err != nil {
				return err
			}
		}
	}
	if err := enc.writeBinary(TcEndblockdata); err != nil {
		return err
	}
	return enc.writeClassDesc(desc.Super)
}

func (enc *Encoder) writeProxyDesc(desc *ClassDesc) error {
	if err := enc.writeBinary(TcProxyclassdesc); err != nil {
		return err
	}
	enc.handles.newHandle(desc)
	if err := enc.writeBinary(int32(len(desc.Interfaces))); err != nil {
		return err
	}
	for _, name := range desc.Interfaces {
		if err := enc.writeUTF(name); err != nil {
			return err
		}
	}
	if err := enc.writeBinary(TcEndblockdata); err != nil {
		return err
	}
	return enc.writeClassDesc(desc.Super)
}

// writeArray writes a Go slice or array, or an *Array, under class name.
func (enc *Encoder) writeArray(array any, name string) error {
	desc, err := enc.opts.registry.descs.describeArray(name)
	if err != nil {
		return err
	}
	if err := enc.writeBinary(TcArray); err != nil {
		return err
	}
	if err := enc.writeClassDesc(desc); err != nil {
		return err
	}
	enc.handles.newHandle(array)
	if a, ok := array.(*Array); ok {
		if err := enc.writeBinary(int32(len(a.Elems))); err != nil {
			return err
		}
		for _, elem := range a.Elems {
			if err := enc.writeObject(elem); err != nil {
				return err
			}
		}
		return nil
	}
	v := reflect.ValueOf(array)
	if err := enc.writeBinary(int32(v.Len())); err != nil {
		return err
	}
	if _, ok := primitiveCode(v.Type().Elem()); ok {
		return enc.writeBinary(array)
	}
	for i := 0; i < v.Len(); i++ {
		if err := enc.writeObject(v.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func (enc *Encoder) writeEnum(cls *Class, object any) error {
	desc, err := enc.opts.registry.Describe(cls)
	if err != nil {
		return err
	}
	name, err := cls.enumName(object)
	if err != nil {
		return err
	}
	if err := enc.writeBinary(TcEnum); err != nil {
		return err
	}
	if err := enc.writeClassDesc(desc); err != nil {
		return err
	}
	enc.handles.newHandle(object)
	return enc.writeString(name)
}

func (enc *Encoder) writeProxy(p *Proxy) error {
	desc, err := enc.opts.registry.descs.describeProxy(enc.opts.registry, p.Interfaces)
	if err != nil {
		return err
	}
	if err := enc.writeBinary(TcObject); err != nil {
		return err
	}
	if err := enc.writeClassDesc(desc); err != nil {
		return err
	}
	enc.handles.newHandle(p)
	return enc.writeSerialData(p, desc)
}

func (enc *Encoder) writeOrdinaryObject(cls *Class, object any) error {
	desc, err := enc.opts.registry.Describe(cls)
	if err != nil {
		return err
	}
	if err := enc.writeBinary(TcObject); err != nil {
		return err
	}
	if err := enc.writeClassDesc(desc); err != nil {
		return err
	}
	enc.handles.newHandle(object)
	if desc.IsExternalizable() {
		return enc.writeExternalData(cls, object)
	}
	return enc.writeSerialData(object, desc)
}

func (enc *Encoder) writeExternalData(cls *Class, object any) error {
	if cls.WriteExternal == nil {
		return errors.Wrapf(ErrNotSerializable, "%s has no WriteExternal", cls.Name)
	}
	enc.blockDataModeOn()
	if err := cls.WriteExternal(object, enc); err != nil {
		return errors.Wrapf(err, "%s: WriteExternal", cls.Name)
	}
	if err := enc.blockDataModeOffAndFlush(); err != nil {
		return err
	}
	enc.opts.metrics.object("write")
	return enc.writeBinary(TcEndblockdata)
}

// writeSerialData writes one class level after another, root first.
func (enc *Encoder) writeSerialData(object any, desc *ClassDesc) error {
	for _, d := range desc.chain() {
		cls := d.class
		if cls == nil {
			if len(d.Fields) > 0 || d.HasWriteMethod() {
				return invalidClass(d.Name, "no local class to write with")
			}
			continue
		}
		if d.HasWriteMethod() {
			enc.blockDataModeOn()
		}
		args := newPutArg(enc, d)
		var err error
		if cls.Serialize != nil {
			err = cls.Serialize(object, args)
		}
		if err != nil {
			args.active = false
			return errors.Wrapf(err, "%s", d.Name)
		}
		if err := args.finish(); err != nil {
			return err
		}
		if d.HasWriteMethod() {
			if err := enc.blockDataModeOffAndFlush(); err != nil {
				return err
			}
			if err := enc.writeBinary(TcEndblockdata); err != nil {
				return err
			}
		}
	}
	enc.opts.metrics.object("write")
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func sameIdentity(a, b any) bool {
	ka, ok := identityKey(a)
	if !ok {
		return false
	}
	kb, ok := identityKey(b)
	return ok && ka == kb
}
