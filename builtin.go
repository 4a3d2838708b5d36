package javaio

import (
	"reflect"
)

// Proxy is a dynamic proxy instance: the interfaces it implements and its
// invocation handler.
type Proxy struct {
	Interfaces []string
	Handler    any
}

// WriteFailure is the record an Encoder writes after TC_EXCEPTION when a
// top-level write fails.
type WriteFailure struct {
	Kind    string
	Message string
}

const writeFailureClassName = "javaio.WriteFailure"

var enumBaseClass = &Class{
	Name: enumClassName,
	enum: true,
}

var proxyClass = &Class{
	Name:             proxyClassName,
	SerialVersionUID: proxySerialVersionUID,
	Fields:           []Field{ObjectField("h", "java.lang.reflect.InvocationHandler")},
	Type:             reflect.TypeOf((*Proxy)(nil)),
	Serialize: func(obj any, args *PutArg) error {
		if err := args.PutObject("h", obj.(*Proxy).Handler); err != nil {
			return err
		}
		return args.WriteArgs()
	},
	New: func(args *GetArg) (any, error) {
		p := &Proxy{}
		if desc := args.state.desc; desc != nil && desc.Proxy {
			p.Interfaces = append([]string(nil), desc.Interfaces...)
		}
		return p, args.Defer("h", func(h any) error {
			p.Handler = h
			return nil
		})
	},
}

var writeFailureClass = &Class{
	Name:             writeFailureClassName,
	SerialVersionUID: 1,
	Fields: []Field{
		ObjectField("kind", stringClassName),
		ObjectField("message", stringClassName),
	},
	Type: reflect.TypeOf((*WriteFailure)(nil)),
	Serialize: func(obj any, args *PutArg) error {
		f := obj.(*WriteFailure)
		if err := args.PutObject("kind", f.Kind); err != nil {
			return err
		}
		if err := args.PutObject("message", f.Message); err != nil {
			return err
		}
		return args.WriteArgs()
	},
	New: func(args *GetArg) (any, error) {
		kind, err := Get(args, "kind", "")
		if err != nil {
			return nil, err
		}
		message, err := Get(args, "message", "")
		if err != nil {
			return nil, err
		}
		return &WriteFailure{Kind: kind, Message: message}, nil
	},
}

func builtinClasses() []*Class {
	return []*Class{enumBaseClass, proxyClass, writeFailureClass}
}
