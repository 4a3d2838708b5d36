package javaio

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const maxProxyInterfaces = 65535

// readClassDesc reads a descriptor or a reference to one. A descriptor
// that was read completely but could not be bound to its local class is
// returned together with the error.
func (dec *Decoder) readClassDesc() (*ClassDesc, error) {
	tc, err := dec.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tc {
	case TcNull:
		return nil, nil
	case TcReference:
		v, err := dec.readHandle()
		if err != nil {
			return nil, err
		}
		desc, ok := v.(*ClassDesc)
		if !ok {
			return nil, streamCorrupted("reference to %T where a class descriptor was expected", v)
		}
		return desc, nil
	case TcProxyclassdesc:
		return dec.readProxyDesc()
	case TcClassdesc:
		return dec.readNonProxyDesc()
	}
	return nil, streamCorrupted("invalid class descriptor type code: %02X", tc)
}

func (dec *Decoder) readNonProxyDesc() (*ClassDesc, error) {
	desc := &ClassDesc{}
	dec.handles.assign(desc, handleReady)
	name, err := dec.readUTF()
	if err != nil {
		return nil, err
	}
	desc.Name = name
	var numFields int16
	if err := dec.readBinary(&desc.SerialVersionUID, &desc.Flags, &numFields); err != nil {
		return nil, err
	}
	if numFields < 0 {
		return nil, streamCorrupted("%s: negative field count %d", name, numFields)
	}
	fields := make([]Field, numFields)
	for i := range fields {
		f := &fields[i]
		if err := dec.readBinary(&f.Type); err != nil {
			return nil, err
		}
		if f.Name, err = dec.readUTF(); err != nil {
			return nil, err
		}
		if f.Type == TypeObject || f.Type == TypeArray {
			if f.Signature, err = dec.readTypeString(); err != nil {
				return nil, err
			}
		}
		if err := f.validate(); err != nil {
			return nil, streamCorrupted("%s: %v", name, err)
		}
	}
	if desc.Fields, desc.primDataSize, desc.numObjFields, err = layoutFields(fields); err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	if err := desc.checkFlags(); err != nil {
		return nil, err
	}
	if err := dec.skipAnnotation(); err != nil {
		return nil, err
	}
	super, err := dec.readClassDesc()
	if err != nil {
		if super != nil {
			desc.Super = super
			return desc, err
		}
		return nil, err
	}
	desc.Super = super
	if err := dec.resolve(desc); err != nil {
		return desc, err
	}
	return desc, nil
}

func (dec *Decoder) readProxyDesc() (*ClassDesc, error) {
	desc := &ClassDesc{Proxy: true, Flags: ScSerializable}
	dec.handles.assign(desc, handleReady)
	var n int32
	if err := dec.readBinary(&n); err != nil {
		return nil, err
	}
	if n < 0 || n > maxProxyInterfaces {
		return nil, streamCorrupted("proxy interface count: %d", n)
	}
	desc.Interfaces = make([]string, n)
	for i := range desc.Interfaces {
		name, err := dec.readUTF()
		if err != nil {
			return nil, err
		}
		desc.Interfaces[i] = name
	}
	if err := dec.skipAnnotation(); err != nil {
		return nil, err
	}
	var err error
	if desc.Super, err = dec.readClassDesc(); err != nil {
		return nil, err
	}
	if desc.Super == nil || desc.Super.Name != proxyClassName || desc.Super.class == nil {
		return nil, invalidClass(proxyClassName, "proxy descriptor without a %s superclass", proxyClassName)
	}
	if err := dec.check(desc, OpProxy); err != nil {
		return nil, err
	}
	return desc, nil
}

// skipAnnotation discards class annotation data, which this package never
// writes.
func (dec *Decoder) skipAnnotation() error {
	dec.blockDataMode = true
	return dec.skipCustomData()
}

// resolve binds a stream descriptor to the registered class of the same
// name and runs the policy. An unknown name is not an error here: the
// descriptor records a fault and instances are skipped.
func (dec *Decoder) resolve(desc *ClassDesc) error {
	if desc.IsArray() {
		return dec.check(desc, OpArray)
	}
	cls, ok := dec.opts.registry.ClassByName(desc.Name)
	if !ok {
		desc.fault = &ClassNotFoundFault{ClassName: desc.Name}
		dec.logger.Debug("class not found", zap.String("class", desc.Name))
		return nil
	}
	if cls.enum != desc.IsEnum() {
		return invalidClass(desc.Name, "cannot bind enum descriptor to a non-enum class or the reverse")
	}
	if !desc.IsSerializable() && !desc.IsExternalizable() {
		return errors.Wrapf(ErrNotSerializable, "%s", desc.Name)
	}
	if cls.Externalizable != desc.IsExternalizable() {
		return invalidClass(desc.Name, "Serializable incompatible with Externalizable")
	}
	if !desc.IsEnum() && cls.SerialVersionUID != desc.SerialVersionUID {
		return invalidClass(desc.Name,
			"local class incompatible: stream classdesc serialVersionUID = %d, local class serialVersionUID = %d",
			desc.SerialVersionUID, cls.SerialVersionUID)
	}
	for _, f := range desc.Fields {
		lf, ok := cls.field(f.Name)
		if ok && (f.IsPrimitive() || lf.IsPrimitive()) && f.Type != lf.Type {
			return invalidClass(desc.Name, "incompatible types for field %s", f.Name)
		}
	}
	desc.class = cls
	op := OpClass
	switch {
	case desc.IsEnum():
		op = OpEnum
	case cls.stateless() && len(desc.Fields) == 0 && !desc.HasWriteMethod():
		desc.stateless = true
		op = OpStatelessClass
	}
	return dec.check(desc, op)
}

func (dec *Decoder) check(desc *ClassDesc, op Operation) error {
	err := dec.opts.policy.Check(desc, op)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrPolicyDenied) {
		err = errors.Mark(err, ErrPolicyDenied)
	}
	dec.logger.Debug("descriptor rejected by policy",
		zap.String("class", desc.Name), zap.Stringer("op", op), zap.Error(err))
	return err
}
