package javaio

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Operation names what a Decoder is about to do with a resolved descriptor.
type Operation uint8

const (
	// OpClass constructs an instance from staged fields.
	OpClass Operation = iota
	// OpStatelessClass constructs an instance of a class with no serial
	// state, skipping field staging.
	OpStatelessClass
	OpEnum
	OpArray
	OpProxy
)

func (op Operation) String() string {
	switch op {
	case OpClass:
		return "class"
	case OpStatelessClass:
		return "stateless-class"
	case OpEnum:
		return "enum"
	case OpArray:
		return "array"
	case OpProxy:
		return "proxy"
	}
	return "unknown"
}

// Policy is consulted once per descriptor a Decoder resolves. A non-nil
// error aborts the read with ErrPolicyDenied.
type Policy interface {
	Check(desc *ClassDesc, op Operation) error
}

type PolicyFunc func(desc *ClassDesc, op Operation) error

func (f PolicyFunc) Check(desc *ClassDesc, op Operation) error {
	return f(desc, op)
}

// AllowAll accepts every registered class.
var AllowAll Policy = PolicyFunc(func(*ClassDesc, Operation) error { return nil })

// AllowClasses accepts only the named classes, arrays of them and of
// primitives, and proxies whose interfaces are all named.
func AllowClasses(names ...string) Policy {
	allowed := lo.SliceToMap(names, func(name string) (string, struct{}) { return name, struct{}{} })
	return PolicyFunc(func(desc *ClassDesc, op Operation) error {
		for _, name := range policySubjects(desc) {
			if _, ok := allowed[name]; !ok {
				return errors.Wrapf(ErrPolicyDenied, "%s not allowed (%s)", name, op)
			}
		}
		return nil
	})
}

// DenyClasses rejects the named classes wherever they appear.
func DenyClasses(names ...string) Policy {
	denied := lo.SliceToMap(names, func(name string) (string, struct{}) { return name, struct{}{} })
	return PolicyFunc(func(desc *ClassDesc, op Operation) error {
		for _, name := range policySubjects(desc) {
			if _, ok := denied[name]; ok {
				return errors.Wrapf(ErrPolicyDenied, "%s denied (%s)", name, op)
			}
		}
		return nil
	})
}

// policySubjects lists the class names a descriptor exposes: the component
// class of an array, the interfaces of a proxy, the name otherwise. The
// engine's own base classes expose nothing.
func policySubjects(desc *ClassDesc) []string {
	if desc.Proxy {
		return desc.Interfaces
	}
	switch desc.Name {
	case enumClassName, proxyClassName, writeFailureClassName:
		return nil
	}
	name := strings.TrimLeft(desc.Name, "[")
	if name == desc.Name {
		return []string{name}
	}
	if strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";") {
		return []string{name[1 : len(name)-1]}
	}
	return nil
}
