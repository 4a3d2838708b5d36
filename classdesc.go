package javaio

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
)

// ClassDesc is the wire-level description of a class level: its name,
// serialVersionUID, flags, serial fields and superclass descriptor.
//
// Local descriptors are built once per Class and cached. Descriptors read
// from a stream live as long as the stream's handle table.
type ClassDesc struct {
	Name             string
	SerialVersionUID int64
	Flags            byte
	Fields           []FieldDesc
	Super            *ClassDesc

	// Interfaces is set for dynamic proxy descriptors.
	Interfaces []string
	Proxy      bool

	class        *Class
	primDataSize int
	numObjFields int
	fault        *ClassNotFoundFault
	stateless    bool
}

// Class returns the local class the descriptor is bound to, if any.
func (d *ClassDesc) Class() *Class {
	return d.class
}

func (d *ClassDesc) IsEnum() bool           { return d.Flags&ScEnum != 0 }
func (d *ClassDesc) IsSerializable() bool   { return d.Flags&ScSerializable != 0 }
func (d *ClassDesc) IsExternalizable() bool { return d.Flags&ScExternalizable != 0 }
func (d *ClassDesc) HasWriteMethod() bool   { return d.Flags&ScWriteMethod != 0 }
func (d *ClassDesc) HasBlockData() bool     { return d.Flags&ScBlockData != 0 }
func (d *ClassDesc) IsArray() bool          { return strings.HasPrefix(d.Name, "[") }

// Field returns the descriptor of the named field at this level.
func (d *ClassDesc) Field(name string) (FieldDesc, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDesc{}, false
}

// chain lists d and its superclass descriptors from the root down.
func (d *ClassDesc) chain() []*ClassDesc {
	var descs []*ClassDesc
	for k := d; k != nil; k = k.Super {
		descs = append([]*ClassDesc{k}, descs...)
	}
	return descs
}

func (d *ClassDesc) checkFlags() error {
	switch {
	case d.IsSerializable() && d.IsExternalizable():
		return streamCorrupted("%s: serializable and externalizable flags conflict", d.Name)
	case d.IsEnum() && d.SerialVersionUID != 0:
		return streamCorrupted("%s: enum descriptor has non-zero serialVersionUID %d", d.Name, d.SerialVersionUID)
	case d.IsEnum() && len(d.Fields) > 0:
		return streamCorrupted("%s: enum descriptor has %d fields", d.Name, len(d.Fields))
	case d.IsExternalizable() && len(d.Fields) > 0:
		return streamCorrupted("%s: externalizable descriptor has fields", d.Name)
	}
	return nil
}

// DescCache is the shared, append-only cache of local class descriptors.
// Lookups never block; when two callers build the same descriptor the first
// store wins and the loser's copy is discarded.
type DescCache struct {
	m      sync.Map
	hits   atomic.Int64
	misses atomic.Int64
}

func NewDescCache() *DescCache {
	return &DescCache{}
}

// Stats returns the number of cache hits and misses so far.
func (c *DescCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *DescCache) load(key any, build func() (*ClassDesc, error)) (*ClassDesc, error) {
	if v, ok := c.m.Load(key); ok {
		c.hits.Inc()
		return v.(*ClassDesc), nil
	}
	c.misses.Inc()
	desc, err := build()
	if err != nil {
		return nil, err
	}
	actual, _ := c.m.LoadOrStore(key, desc)
	return actual.(*ClassDesc), nil
}

// Describe returns the descriptor of cls, building and caching it on first
// use together with its superclass descriptors.
func (c *DescCache) Describe(cls *Class) (*ClassDesc, error) {
	return c.load(cls, func() (*ClassDesc, error) {
		if err := cls.validate(); err != nil {
			return nil, err
		}
		desc := &ClassDesc{
			Name:             cls.Name,
			SerialVersionUID: cls.SerialVersionUID,
			class:            cls,
		}
		switch {
		case cls.enum:
			desc.Flags = ScSerializable | ScEnum
			desc.SerialVersionUID = 0
		case cls.Externalizable:
			desc.Flags = ScExternalizable | ScBlockData
		default:
			desc.Flags = ScSerializable
			if cls.WriteMethod {
				desc.Flags |= ScWriteMethod
			}
		}
		var err error
		desc.Fields, desc.primDataSize, desc.numObjFields, err = layoutFields(sortFields(cls.Fields))
		if err != nil {
			return nil, err
		}
		if cls.Super != nil {
			if desc.Super, err = c.Describe(cls.Super); err != nil {
				return nil, errors.Wrapf(err, "superclass of %s", cls.Name)
			}
		}
		desc.stateless = cls.stateless()
		return desc, nil
	})
}

type arrayKey string

// describeArray returns the descriptor of an array class such as "[I".
func (c *DescCache) describeArray(name string) (*ClassDesc, error) {
	return c.load(arrayKey(name), func() (*ClassDesc, error) {
		if !validSignature(strings.ReplaceAll(name, ".", "/")) || name[0] != '[' {
			return nil, errors.Wrapf(ErrNotSerializable, "invalid array class %s", name)
		}
		return &ClassDesc{
			Name:             name,
			SerialVersionUID: arraySerialVersionUID(name),
			Flags:            ScSerializable,
		}, nil
	})
}

type proxyKey string

// describeProxy returns the descriptor of a dynamic proxy class implementing
// the given interfaces.
func (c *DescCache) describeProxy(reg *Registry, interfaces []string) (*ClassDesc, error) {
	return c.load(proxyKey(strings.Join(interfaces, ",")), func() (*ClassDesc, error) {
		proxyClass, ok := reg.ClassByName(proxyClassName)
		if !ok {
			return nil, errors.Wrapf(ErrNotSerializable, "%s not registered", proxyClassName)
		}
		super, err := c.Describe(proxyClass)
		if err != nil {
			return nil, err
		}
		return &ClassDesc{
			Proxy:      true,
			Interfaces: append([]string(nil), interfaces...),
			Flags:      ScSerializable,
			Super:      super,
		}, nil
	})
}
