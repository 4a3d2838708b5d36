package javaio

import (
	"io"
)

// classDataSlot pairs a stream class level with the local class it is read
// into. A slot without desc has no data in the stream; a slot without
// local is read and discarded.
type classDataSlot struct {
	desc  *ClassDesc
	local *Class
}

// classDataLayout matches the stream's class levels against the local class
// chain by name, root first.
func classDataLayout(desc *ClassDesc, cls *Class) ([]classDataSlot, error) {
	var locals []*Class
	for k := cls; k != nil; k = k.Super {
		locals = append(locals, k)
	}
	var slots []classDataSlot
	start := 0
	seen := make(map[string]struct{})
	for d := desc; d != nil; d = d.Super {
		if !d.Proxy {
			if _, ok := seen[d.Name]; ok {
				return nil, invalidClass(d.Name, "circular reference in superclass chain")
			}
			seen[d.Name] = struct{}{}
		}
		match := -1
		for i := start; i < len(locals); i++ {
			if locals[i].Name == d.Name {
				match = i
				break
			}
		}
		if match < 0 {
			slots = append(slots, classDataSlot{desc: d})
			continue
		}
		for i := start; i < match; i++ {
			slots = append(slots, classDataSlot{local: locals[i]})
		}
		slots = append(slots, classDataSlot{desc: d, local: locals[match]})
		start = match + 1
	}
	for i := start; i < len(locals); i++ {
		slots = append(slots, classDataSlot{local: locals[i]})
	}
	for i, j := 0, len(slots)-1; i < j; i, j = i+1, j-1 {
		slots[i], slots[j] = slots[j], slots[i]
	}
	return slots, nil
}

// readObjectData reads and constructs the instance that follows a
// TC_OBJECT descriptor. Objects of unknown classes, and objects whose data
// refers to one, come back as a *ClassNotFoundFault after their data has
// been skipped.
func (dec *Decoder) readObjectData(desc *ClassDesc, handle int) (any, error) {
	cls := desc.class
	if desc.Proxy {
		cls = desc.Super.class
	}
	if desc.fault != nil || cls == nil {
		fault := desc.fault
		if fault == nil {
			fault = &ClassNotFoundFault{ClassName: desc.Name}
		}
		if err := dec.skipObjectData(desc); err != nil {
			return nil, err
		}
		return fault, nil
	}
	if desc.IsExternalizable() {
		return dec.readExternalData(desc, cls)
	}
	if statelessChain(desc) {
		levels := make([]*levelData, 0, 2)
		for _, k := range cls.chain() {
			levels = append(levels, &levelData{local: k})
		}
		return dec.construct(desc, cls, levels, handle)
	}
	levels, fault, err := dec.readSerialData(desc, cls)
	if err != nil {
		return nil, err
	}
	if fault != nil {
		return fault, nil
	}
	return dec.construct(desc, cls, levels, handle)
}

func statelessChain(desc *ClassDesc) bool {
	for d := desc; d != nil; d = d.Super {
		if !d.stateless {
			return false
		}
	}
	return true
}

// readSerialData stages the field values of every class level. Only levels
// with a local class are kept.
func (dec *Decoder) readSerialData(desc *ClassDesc, cls *Class) ([]*levelData, *ClassNotFoundFault, error) {
	slots, err := classDataLayout(desc, cls)
	if err != nil {
		return nil, nil, err
	}
	var (
		levels []*levelData
		fault  *ClassNotFoundFault
	)
	for _, slot := range slots {
		var lv *levelData
		if slot.local != nil {
			lv = &levelData{local: slot.local, stream: slot.desc, values: make(map[string]any)}
			levels = append(levels, lv)
		}
		if slot.desc == nil {
			continue
		}
		f, err := dec.readFields(slot.desc, lv)
		if err != nil {
			return nil, nil, err
		}
		if fault == nil {
			fault = f
		}
		if !slot.desc.HasWriteMethod() {
			continue
		}
		dec.blockDataMode = true
		if lv != nil && lv.local.ReadInput != nil {
			res, err := lv.local.ReadInput(dec)
			if err != nil {
				return nil, nil, invalidObject(lv.local.Name, err)
			}
			lv.result = res
		}
		if err := dec.skipCustomData(); err != nil {
			return nil, nil, err
		}
	}
	return levels, fault, nil
}

// readFields reads one level's primitive data and references, staging the
// values lv's class declares.
func (dec *Decoder) readFields(desc *ClassDesc, lv *levelData) (*ClassNotFoundFault, error) {
	prim := make([]byte, desc.primDataSize)
	if _, err := io.ReadFull(dec.r, prim); err != nil {
		return nil, unexpectedEOF(err)
	}
	var fault *ClassNotFoundFault
	for _, f := range desc.Fields {
		var v any
		if f.IsPrimitive() {
			v = getPrimitive(f.Type, prim[f.Offset:])
		} else {
			var err error
			if v, err = dec.readObject(); err != nil {
				return nil, err
			}
			if cnf, ok := v.(*ClassNotFoundFault); ok && fault == nil {
				fault = cnf
			}
		}
		if lv == nil {
			continue
		}
		if _, ok := lv.local.field(f.Name); ok {
			lv.values[f.Name] = v
		}
	}
	return fault, nil
}

// skipObjectData consumes the data of an object that will not be built.
func (dec *Decoder) skipObjectData(desc *ClassDesc) error {
	if desc.IsExternalizable() {
		if !desc.HasBlockData() {
			return invalidClass(desc.Name, "cannot skip externalizable data without block framing")
		}
		dec.blockDataMode = true
		return dec.skipCustomData()
	}
	for _, d := range desc.chain() {
		if _, err := dec.readFields(d, nil); err != nil {
			return err
		}
		if d.HasWriteMethod() {
			dec.blockDataMode = true
			if err := dec.skipCustomData(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (dec *Decoder) readExternalData(desc *ClassDesc, cls *Class) (any, error) {
	if !desc.HasBlockData() {
		return nil, invalidClass(desc.Name, "externalizable data without block framing is not supported")
	}
	if cls.ReadExternal == nil {
		return nil, invalidClass(desc.Name, "no ReadExternal")
	}
	dec.blockDataMode = true
	obj, err := cls.ReadExternal(dec)
	if err != nil {
		return nil, invalidObject(cls.Name, err)
	}
	if isNil(obj) {
		return nil, InvalidObjectf("%s: ReadExternal returned nil", cls.Name)
	}
	if err := dec.skipCustomData(); err != nil {
		return nil, err
	}
	dec.opts.metrics.object("read")
	return dec.resolveObject(cls, obj)
}

// construct runs every level's Check and then the class's New. The
// GetArg handed out dies when construct returns.
func (dec *Decoder) construct(desc *ClassDesc, cls *Class, levels []*levelData, handle int) (any, error) {
	if cls.New == nil {
		return nil, invalidClass(cls.Name, "no factory")
	}
	state := &argState{dec: dec, desc: desc, levels: levels, handle: handle, active: true}
	defer func() { state.active = false }()
	for i, lv := range levels {
		if lv.local.Check == nil {
			continue
		}
		if err := lv.local.Check(&GetArg{state: state, level: i}); err != nil {
			return nil, invalidObject(lv.local.Name, err)
		}
	}
	obj, err := cls.New(&GetArg{state: state, level: len(levels) - 1})
	if err != nil {
		return nil, invalidObject(cls.Name, err)
	}
	if isNil(obj) {
		return nil, InvalidObjectf("%s: factory returned nil", cls.Name)
	}
	dec.opts.metrics.object("read")
	return dec.resolveObject(cls, obj)
}

func (dec *Decoder) resolveObject(cls *Class, obj any) (any, error) {
	if cls.ReadResolve == nil {
		return obj, nil
	}
	rep, err := cls.ReadResolve(obj)
	if err != nil {
		return nil, invalidObject(cls.Name, err)
	}
	return rep, nil
}
