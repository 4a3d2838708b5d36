package javaio

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Class describes one class level of the validating protocol: the serial
// form it nominates, how an instance stages its fields and the factory that
// is the only way to construct one from a stream.
//
// Only the most-derived class of a chain needs Type and New. Intermediate
// levels contribute fields, Serialize and Check.
type Class struct {
	Name             string
	SerialVersionUID int64
	Super            *Class
	Fields           []Field

	// Type is the runtime type written under this class.
	Type reflect.Type

	// WriteMethod frames the level's data as custom write data: fields,
	// then optional block data written through PutArg.Output, then
	// TC_ENDBLOCKDATA.
	WriteMethod bool

	// Serialize stages obj's values for this level.
	Serialize func(obj any, args *PutArg) error
	// New builds the instance from staged values. It runs after every
	// field of every level has been read and checked.
	New func(args *GetArg) (any, error)
	// Check validates this level's staged values before New runs.
	Check func(args *GetArg) error
	// ReadInput consumes the level's optional data before construction;
	// the result is available through GetArg.ReadResult.
	ReadInput func(in ObjectInput) (any, error)

	WriteReplace func(obj any) (any, error)
	ReadResolve  func(obj any) (any, error)

	// Externalizable classes write an opaque block instead of fields.
	Externalizable bool
	WriteExternal  func(obj any, out ObjectOutput) error
	ReadExternal   func(in ObjectInput) (any, error)

	enum      bool
	enumName  func(obj any) (string, error)
	enumValue func(name string) (any, error)
}

func (c *Class) String() string {
	return c.Name
}

// IsEnum reports whether c was built by EnumClass.
func (c *Class) IsEnum() bool {
	return c.enum
}

func (c *Class) chain() []*Class {
	var classes []*Class
	for k := c; k != nil; k = k.Super {
		classes = append([]*Class{k}, classes...)
	}
	return classes
}

func (c *Class) validate() error {
	if c.Name == "" {
		return errors.New("class without name")
	}
	if c.Externalizable {
		if len(c.Fields) > 0 || c.WriteMethod {
			return errors.Newf("%s: externalizable and field based at once", c.Name)
		}
		if c.WriteExternal == nil && c.ReadExternal == nil {
			return errors.Newf("%s: externalizable without WriteExternal or ReadExternal", c.Name)
		}
	}
	if c.enum && (len(c.Fields) > 0 || c.SerialVersionUID != 0) {
		return errors.Newf("%s: enum with fields or serialVersionUID", c.Name)
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if err := f.validate(); err != nil {
			return errors.Wrap(err, c.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return errors.Newf("%s: duplicate field %s", c.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	for k := c.Super; k != nil; k = k.Super {
		if k == c {
			return errors.Newf("%s: circular superclass chain", c.Name)
		}
	}
	return nil
}

// stateless reports whether reading an instance needs no field staging:
// no level declares fields, custom write data or read hooks.
func (c *Class) stateless() bool {
	for k := c; k != nil; k = k.Super {
		if len(k.Fields) > 0 || k.WriteMethod || k.ReadInput != nil || k.Check != nil || k.Externalizable {
			return false
		}
	}
	return true
}

// EnumClass builds the class of an enumeration whose constants are the
// given values. Constants are written by their String form.
func EnumClass[T interface {
	comparable
	fmt.Stringer
}](name string, constants ...T) *Class {
	byName := lo.SliceToMap(constants, func(v T) (string, T) { return v.String(), v })
	var zero T
	return &Class{
		Name:  name,
		Super: enumBaseClass,
		Type:  reflect.TypeOf(zero),
		enum:  true,
		enumName: func(obj any) (string, error) {
			v, ok := obj.(T)
			if !ok {
				return "", errors.Newf("%T is not %s", obj, name)
			}
			if _, ok := byName[v.String()]; !ok {
				return "", errors.Newf("%s has no constant %s", name, v.String())
			}
			return v.String(), nil
		},
		enumValue: func(constant string) (any, error) {
			v, ok := byName[constant]
			if !ok {
				return nil, InvalidObjectf("%s has no constant %s", name, constant)
			}
			return v, nil
		},
	}
}

// Registry is the explicit set of classes a stream may carry, indexed by
// class name and runtime type. It is populated up front and read by every
// Encoder and Decoder built on it.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Class
	byType map[reflect.Type]*Class
	descs  *DescCache
}

type RegistryOption func(*Registry)

// WithDescCache shares a descriptor cache between registries.
func WithDescCache(cache *DescCache) RegistryOption {
	return func(r *Registry) {
		r.descs = cache
	}
}

// NewRegistry returns a registry holding the engine's built-in classes.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName: make(map[string]*Class),
		byType: make(map[reflect.Type]*Class),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.descs == nil {
		r.descs = NewDescCache()
	}
	lo.ForEach(builtinClasses(), func(c *Class, _ int) {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	})
	return r
}

// Register adds classes and their superclasses. A class name may only be
// registered once, and so may a runtime type.
func (r *Registry) Register(classes ...*Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range classes {
		for _, k := range c.chain() {
			if err := r.register(k); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) register(c *Class) error {
	if err := c.validate(); err != nil {
		return err
	}
	if prev, ok := r.byName[c.Name]; ok {
		if prev == c {
			return nil
		}
		return errors.Newf("class %s already registered", c.Name)
	}
	if c.Type != nil {
		if prev, ok := r.byType[c.Type]; ok {
			return errors.Newf("type %s already registered as %s", c.Type, prev.Name)
		}
		r.byType[c.Type] = c
	}
	r.byName[c.Name] = c
	return nil
}

// ClassByName returns the class registered under name.
func (r *Registry) ClassByName(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// ClassOf returns the class registered for v's runtime type.
func (r *Registry) ClassOf(v any) (*Class, bool) {
	if v == nil {
		return nil, false
	}
	return r.ClassByType(reflect.TypeOf(v))
}

func (r *Registry) ClassByType(t reflect.Type) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byType[t]
	return c, ok
}

// Lookup resolves a runtime type to its cached class descriptor.
func (r *Registry) Lookup(t reflect.Type) (*ClassDesc, error) {
	c, ok := r.ClassByType(t)
	if !ok {
		return nil, errors.Wrapf(ErrNotSerializable, "%s", t)
	}
	return r.descs.Describe(c)
}

// Describe returns the cached descriptor of c.
func (r *Registry) Describe(c *Class) (*ClassDesc, error) {
	return r.descs.Describe(c)
}

// Classes lists the registered class names.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.byName)
}

// field returns the declared serial field called name.
func (c *Class) field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
