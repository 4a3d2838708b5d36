package javaio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Decoder reads object graphs from a Java object serialization stream.
//
// Objects are never materialized before their data is complete: every
// field of every class level is read and staged first, then handed to the
// class's New function through a GetArg. A back-reference to an object that
// is still being constructed is staged as pending and can only be observed
// through GetArg.Defer, which fires once that object has been built.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	r       *bufio.Reader
	opts    options
	logger  *zap.Logger
	handles readHandles

	blockDataMode bool
	unread        int

	depth       int
	validations []validation
	// broken is the cause of the last failed top-level read.
	broken error
	// unbound is set when that read failed on the descriptor of the
	// top-level object; the object's data is still unread.
	unbound *ClassDesc
}

// maxPrealloc caps what a length read from the stream may allocate before
// the data behind it has arrived.
const maxPrealloc = 1 << 12

type validation struct {
	fn       func() error
	priority int
}

// NewDecoder reads and checks the stream header.
func NewDecoder(r io.Reader, opts ...Option) (*Decoder, error) {
	o := buildOptions(opts)
	dec := &Decoder{
		r:      bufio.NewReader(r),
		opts:   o,
		logger: o.logger,
	}
	if err := dec.readHeader(); err != nil {
		return nil, err
	}
	dec.blockDataMode = true
	return dec, nil
}

// Registry returns the classes the decoder resolves against.
func (dec *Decoder) Registry() *Registry {
	return dec.opts.registry
}

func (dec *Decoder) readBinary(dsts ...any) error {
	for _, dst := range dsts {
		if err := binary.Read(dec, binary.BigEndian, dst); err != nil {
			return err
		}
	}
	return nil
}

func (dec *Decoder) readHeader() error {
	var (
		magic   uint16
		version int16
	)
	if err := dec.readBinary(&magic, &version); err != nil {
		return err
	}
	if magic != StreamMagic {
		return streamCorrupted("invalid stream header: %04X", magic)
	}
	if version != StreamVersion {
		return streamCorrupted("unsupported stream version: %d", version)
	}
	return nil
}

func (dec *Decoder) usable() error {
	if dec.broken != nil && dec.depth == 0 {
		return errors.Wrapf(ErrStreamBroken, "previous read failed: %v", dec.broken)
	}
	return nil
}

func readPrimitive[T any](dec *Decoder) (T, error) {
	var v T
	if err := dec.usable(); err != nil {
		return v, err
	}
	err := dec.readBinary(&v)
	return v, err
}

func (dec *Decoder) ReadBool() (bool, error)      { return readPrimitive[bool](dec) }
func (dec *Decoder) ReadByte() (byte, error)      { return readPrimitive[byte](dec) }
func (dec *Decoder) ReadShort() (int16, error)    { return readPrimitive[int16](dec) }
func (dec *Decoder) ReadChar() (uint16, error)    { return readPrimitive[uint16](dec) }
func (dec *Decoder) ReadInt() (int32, error)      { return readPrimitive[int32](dec) }
func (dec *Decoder) ReadLong() (int64, error)     { return readPrimitive[int64](dec) }
func (dec *Decoder) ReadFloat() (float32, error)  { return readPrimitive[float32](dec) }
func (dec *Decoder) ReadDouble() (float64, error) { return readPrimitive[float64](dec) }

// ReadUTF reads a string written by Encoder.WriteUTF.
func (dec *Decoder) ReadUTF() (string, error) {
	if err := dec.usable(); err != nil {
		return "", err
	}
	return dec.readUTF()
}

func (dec *Decoder) readUTF() (string, error) {
	var l uint16
	if err := dec.readBinary(&l); err != nil {
		return "", err
	}
	p := make([]byte, l)
	if _, err := io.ReadFull(dec, p); err != nil {
		return "", unexpectedEOF(err)
	}
	return decodeModifiedUTF8(p)
}

// ReadObject reads the next object. Inside a ReadInput or ReadExternal
// hook it reads the next object of the custom data.
//
// After a failed read the decoder refuses to read on until Recover, except
// when the failure was an ErrWriteAborted marker or primitive data pending
// in front of the object.
func (dec *Decoder) ReadObject() (any, error) {
	if dec.depth > 0 {
		return dec.readNested()
	}
	if err := dec.usable(); err != nil {
		return nil, err
	}
	obj, err := dec.readTop()
	if err != nil {
		dec.validations = nil
		if err != io.EOF {
			dec.opts.metrics.fault("read", err)
		}
		return nil, err
	}
	return obj, nil
}

func (dec *Decoder) readTop() (any, error) {
	n, err := dec.refill()
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, errors.Wrapf(ErrOptionalData, "%d bytes of primitive data pending", n)
	}
	if _, err := dec.r.Peek(1); err != nil {
		return nil, err
	}
	obj, err := dec.readObject()
	if err != nil {
		err = unexpectedEOF(err)
		if !errors.Is(err, ErrWriteAborted) {
			dec.broken = err
			dec.logger.Debug("read failed, stream broken until recovered", zap.Error(err))
		}
		return nil, err
	}
	if fault, ok := obj.(*ClassNotFoundFault); ok {
		return nil, fault.Err()
	}
	if err := dec.runValidations(); err != nil {
		return nil, err
	}
	return obj, nil
}

func (dec *Decoder) readNested() (any, error) {
	obj, err := dec.readObject()
	if err != nil {
		return nil, err
	}
	switch v := obj.(type) {
	case pendingRef:
		return nil, errors.Wrapf(ErrInvalidObject,
			"custom data refers to handle %08X, which is still under construction", int32(v.handle)+baseWireHandle)
	case *ClassNotFoundFault:
		return nil, v.Err()
	}
	return obj, nil
}

func (dec *Decoder) runValidations() error {
	vs := dec.validations
	dec.validations = nil
	sort.SliceStable(vs, func(i, j int) bool {
		return vs[i].priority > vs[j].priority
	})
	for _, v := range vs {
		if err := v.fn(); err != nil {
			return invalidObject("validation", err)
		}
	}
	return nil
}

// Recover discards input up to and including the next TC_RESET and clears
// the decoder's state, so that reading resumes where the writer reset the
// stream.
//
// When the failed read stopped at the class descriptor of a top-level
// object, that object and the elements after it are skipped by parsing
// them. Otherwise, or when parsing fails, Recover falls back to scanning
// for the next TC_RESET byte, which may also match a data byte.
func (dec *Decoder) Recover() error {
	if dec.depth > 0 {
		return errors.New("recover during an active read")
	}
	desc := dec.unbound
	dec.unbound = nil
	dec.validations = nil
	dec.blockDataMode = false
	dec.unread = 0
	var err error
	if desc != nil {
		err = dec.skipToReset(desc)
		if err != nil {
			dec.logger.Debug("cannot skip to reset, scanning", zap.Error(err))
		}
	}
	if desc == nil || err != nil {
		skipped, err := dec.scanToReset()
		if err != nil {
			return err
		}
		dec.logger.Debug("scanned to stream reset", zap.Int("skipped", skipped))
	}
	dec.handles.clear()
	dec.validations = nil
	dec.broken = nil
	dec.unbound = nil
	dec.blockDataMode = true
	dec.opts.metrics.reset()
	dec.logger.Debug("recovered at stream reset")
	return nil
}

// skipToReset skips the data of the object described by desc and then
// whole elements until it has consumed a TC_RESET.
func (dec *Decoder) skipToReset(desc *ClassDesc) error {
	handle := dec.handles.assign(nil, handlePending)
	dec.handles.fail(handle, errors.Wrapf(ErrStreamBroken, "%s skipped by Recover", desc.Name))
	if err := dec.skipObjectData(desc); err != nil {
		return err
	}
	for {
		dec.blockDataMode = false
		b, err := dec.r.Peek(1)
		if err != nil {
			return unexpectedEOF(err)
		}
		switch b[0] {
		case TcReset:
			_, err := dec.r.ReadByte()
			return err
		case TcBlockdata, TcBlockdatalong:
			return streamCorrupted("block data before reset")
		}
		if _, err := dec.readObject0(false); err != nil {
			return err
		}
	}
}

func (dec *Decoder) scanToReset() (int, error) {
	skipped := 0
	for {
		b, err := dec.r.ReadByte()
		if err != nil {
			return skipped, err
		}
		if b == TcReset {
			return skipped, nil
		}
		skipped++
	}
}

func (dec *Decoder) handleReset() error {
	if dec.depth > 0 {
		return streamCorrupted("unexpected reset; recursion depth: %d", dec.depth)
	}
	dec.handles.clear()
	dec.opts.metrics.reset()
	dec.logger.Debug("stream reset")
	return nil
}

// readObject reads an object in non-block mode, failing with
// ErrOptionalData when block data stands in the way.
func (dec *Decoder) readObject() (any, error) {
	oldMode := dec.blockDataMode
	if oldMode {
		n, err := dec.refill()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, errors.Wrapf(ErrOptionalData, "%d bytes of primitive data pending", n)
		}
		dec.blockDataMode = false
		defer func() {
			dec.blockDataMode = true
		}()
	}
	return dec.readObject0(oldMode)
}

func (dec *Decoder) readObject0(oldMode bool) (any, error) {
	for {
		b, err := dec.r.Peek(1)
		if err != nil {
			return nil, err
		}
		if b[0] != TcReset {
			break
		}
		if _, err := dec.r.ReadByte(); err != nil {
			return nil, err
		}
		if err := dec.handleReset(); err != nil {
			return nil, err
		}
	}
	if dec.depth >= dec.opts.maxDepth {
		return nil, limitExceeded("depth", int64(dec.depth+1), int64(dec.opts.maxDepth))
	}
	dec.depth++
	defer func() { dec.depth-- }()

	// Block data tags stay in the stream, so that the end of custom data
	// can still be found by whoever reads or skips it next.
	peek, err := dec.r.Peek(1)
	if err != nil {
		return nil, err
	}
	switch peek[0] {
	case TcBlockdata, TcBlockdatalong:
		if oldMode {
			return nil, errors.Wrap(ErrOptionalData, "block data in front of an object")
		}
		return nil, streamCorrupted("unexpected block data")
	case TcEndblockdata:
		if oldMode {
			return nil, errors.Wrap(ErrOptionalData, "end of custom data")
		}
		return nil, streamCorrupted("unexpected end of block data")
	}

	tc, err := dec.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tc {
	case TcNull:
		return nil, nil
	case TcReference:
		return dec.readHandle()
	case TcClass:
		return dec.readClass()
	case TcClassdesc, TcProxyclassdesc:
		if err := dec.r.UnreadByte(); err != nil {
			return nil, err
		}
		return dec.readClassDesc()
	case TcString, TcLongstring:
		return dec.readString(tc)
	case TcArray:
		return dec.readArray()
	case TcEnum:
		return dec.readEnum()
	case TcObject:
		return dec.readOrdinaryObject()
	case TcException:
		return nil, dec.readException()
	default:
		return nil, streamCorrupted("invalid type code: %02X", tc)
	}
}

func (dec *Decoder) readHandle() (any, error) {
	var wire int32
	if err := dec.readBinary(&wire); err != nil {
		return nil, err
	}
	handle, err := dec.handles.lookup(wire)
	if err != nil {
		return nil, err
	}
	return dec.handles.value(handle)
}

func (dec *Decoder) readString(tc byte) (string, error) {
	var n int64
	if tc == TcString {
		var l uint16
		if err := dec.readBinary(&l); err != nil {
			return "", err
		}
		n = int64(l)
	} else {
		if err := dec.readBinary(&n); err != nil {
			return "", err
		}
		if n < 0 {
			return "", streamCorrupted("negative string length: %d", n)
		}
	}
	if n > dec.opts.maxStringLength {
		return "", limitExceeded("string length", n, dec.opts.maxStringLength)
	}
	var buf bytes.Buffer
	buf.Grow(int(min(n, maxPrealloc)))
	if _, err := io.CopyN(&buf, dec.r, n); err != nil {
		return "", unexpectedEOF(err)
	}
	s, err := decodeModifiedUTF8(buf.Bytes())
	if err != nil {
		return "", err
	}
	dec.handles.assign(s, handleReady)
	return s, nil
}

// readTypeString reads a field signature: a new string or a reference to
// one.
func (dec *Decoder) readTypeString() (string, error) {
	tc, err := dec.r.ReadByte()
	if err != nil {
		return "", err
	}
	switch tc {
	case TcReference:
		v, err := dec.readHandle()
		if err != nil {
			return "", err
		}
		s, ok := v.(string)
		if !ok {
			return "", streamCorrupted("field signature reference is %T, not a string", v)
		}
		return s, nil
	case TcString, TcLongstring:
		return dec.readString(tc)
	}
	return "", streamCorrupted("invalid field signature type code: %02X", tc)
}

func (dec *Decoder) readClass() (any, error) {
	desc, err := dec.readClassDesc()
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, streamCorrupted("class without descriptor")
	}
	var v any = desc
	switch {
	case desc.fault != nil:
		v = desc.fault
	case desc.class != nil:
		v = desc.class
	}
	dec.handles.assign(v, handleReady)
	return v, nil
}

func (dec *Decoder) readEnum() (any, error) {
	desc, err := dec.readClassDesc()
	if err != nil {
		return nil, err
	}
	if desc == nil || !desc.IsEnum() {
		return nil, streamCorrupted("enum constant without enum class descriptor")
	}
	handle := dec.handles.assign(nil, handlePending)
	tc, err := dec.r.ReadByte()
	if err != nil {
		return nil, err
	}
	if tc != TcString && tc != TcLongstring {
		return nil, streamCorrupted("enum constant name type code: %02X", tc)
	}
	name, err := dec.readString(tc)
	if err != nil {
		return nil, err
	}
	if desc.fault != nil {
		return dec.handles.finish(handle, desc.fault)
	}
	if desc.class == nil || desc.class.enumValue == nil {
		err := invalidClass(desc.Name, "not an enum type")
		dec.handles.fail(handle, err)
		return nil, err
	}
	v, err := desc.class.enumValue(name)
	if err != nil {
		dec.handles.fail(handle, err)
		return nil, err
	}
	dec.opts.metrics.object("read")
	return dec.handles.finish(handle, v)
}

func (dec *Decoder) readArray() (any, error) {
	desc, err := dec.readClassDesc()
	if err != nil {
		return nil, err
	}
	if desc == nil || !desc.IsArray() {
		return nil, streamCorrupted("array without array class descriptor")
	}
	var n int32
	if err := dec.readBinary(&n); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, streamCorrupted("negative array length: %d", n)
	}
	if int(n) > dec.opts.maxArrayLength {
		return nil, limitExceeded("array length", int64(n), int64(dec.opts.maxArrayLength))
	}
	if len(desc.Name) == 2 {
		array, err := dec.readPrimitiveArray(desc.Name[1], int(n))
		if err != nil {
			return nil, err
		}
		dec.handles.assign(array, handleReady)
		return array, nil
	}
	array := &Array{ClassName: desc.Name, Elems: make([]any, 0, min(int(n), maxPrealloc))}
	handle := dec.handles.assign(array, handleReady)
	var fault *ClassNotFoundFault
	for i := 0; i < int(n); i++ {
		array.Elems = append(array.Elems, nil)
		v, err := dec.readObject()
		if err != nil {
			return nil, err
		}
		switch v := v.(type) {
		case pendingRef:
			err := dec.handles.await(v.handle, handle, func(elem any) error {
				array.Elems[i] = elem
				return nil
			})
			if err != nil {
				return nil, err
			}
		case *ClassNotFoundFault:
			if fault == nil {
				fault = v
			}
		default:
			array.Elems[i] = v
		}
	}
	if fault != nil {
		return dec.handles.finish(handle, fault)
	}
	return array, nil
}

// readPrimitiveArray reads n elements of the primitive type code into the
// Go slice that type decodes to.
func (dec *Decoder) readPrimitiveArray(code byte, n int) (any, error) {
	switch code {
	case TypeBoolean:
		return readChunked[bool](dec, n)
	case TypeByte:
		return readChunked[byte](dec, n)
	case TypeChar:
		return readChunked[uint16](dec, n)
	case TypeShort:
		return readChunked[int16](dec, n)
	case TypeInt:
		return readChunked[int32](dec, n)
	case TypeLong:
		return readChunked[int64](dec, n)
	case TypeFloat:
		return readChunked[float32](dec, n)
	case TypeDouble:
		return readChunked[float64](dec, n)
	}
	return nil, streamCorrupted("invalid primitive array type code: %c", code)
}

// readChunked grows the slice as data arrives, so that a length read from
// the stream cannot allocate more than the stream actually holds.
func readChunked[T any](dec *Decoder, n int) ([]T, error) {
	out := make([]T, 0, min(n, maxPrealloc))
	for len(out) < n {
		chunk := make([]T, min(n-len(out), maxPrealloc))
		if err := binary.Read(dec.r, binary.BigEndian, chunk); err != nil {
			return nil, unexpectedEOF(err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (dec *Decoder) readOrdinaryObject() (any, error) {
	desc, err := dec.readClassDesc()
	if err != nil {
		if desc != nil && dec.depth == 1 {
			dec.unbound = desc
		}
		return nil, err
	}
	if desc == nil {
		return nil, streamCorrupted("object without class descriptor")
	}
	if desc.IsArray() || desc.IsEnum() {
		return nil, streamCorrupted("%s is not an ordinary class", desc.Name)
	}
	handle := dec.handles.assign(nil, handlePending)
	obj, err := dec.readObjectData(desc, handle)
	if err != nil {
		dec.handles.fail(handle, err)
		return nil, err
	}
	return dec.handles.finish(handle, obj)
}

// readException reads the failure record that follows TC_EXCEPTION. The
// handle table is cleared before and after, as the writer did.
func (dec *Decoder) readException() error {
	dec.handles.clear()
	detail, err := dec.readObject0(false)
	dec.handles.clear()
	if err != nil {
		return combine(&WriteAbortedError{}, errors.Wrap(err, "reading failure record"))
	}
	return &WriteAbortedError{Detail: detail}
}
