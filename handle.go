package javaio

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

type refElem struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// identityKey returns the key an object is tracked under in a handle table.
// Pointers, maps and slices are keyed by identity, strings by value; plain
// values have no identity and are never matched.
func identityKey(object any) (any, bool) {
	if s, ok := object.(string); ok {
		return s, true
	}
	v := reflect.ValueOf(object)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return nil, false
		}
		return refElem{typ: v.Type(), ptr: v.Pointer()}, true
	case reflect.Slice:
		if v.IsNil() {
			return nil, false
		}
		return refElem{typ: v.Type(), ptr: v.Pointer(), len: v.Len()}, true
	}
	return nil, false
}

// writeHandles assigns wire handles in emission order. Objects, arrays,
// strings and class descriptors share one counter.
type writeHandles struct {
	next    int32
	handles map[any]int32
	// subs maps an original object to the replacement written for it.
	subs map[any]any
}

func newWriteHandles() *writeHandles {
	return &writeHandles{
		handles: make(map[any]int32),
		subs:    make(map[any]any),
	}
}

func (t *writeHandles) newHandle(object any) int32 {
	handle := baseWireHandle + t.next
	t.next++
	if key, ok := identityKey(object); ok {
		t.handles[key] = handle
	}
	return handle
}

func (t *writeHandles) findHandle(object any) int32 {
	if key, ok := identityKey(object); ok {
		if handle, ok := t.handles[key]; ok {
			return handle
		}
	}
	return -1
}

func (t *writeHandles) substitute(orig, rep any) {
	if key, ok := identityKey(orig); ok {
		t.subs[key] = rep
	}
}

func (t *writeHandles) lookupSubstitute(object any) (any, bool) {
	if key, ok := identityKey(object); ok {
		rep, ok := t.subs[key]
		return rep, ok
	}
	return nil, false
}

func (t *writeHandles) clear() {
	t.next = 0
	clear(t.handles)
	clear(t.subs)
}

type handleState uint8

const (
	handlePending handleState = iota
	handleReady
	handleFailed
)

// pendingRef is staged in place of an object that is still being
// constructed further up the stack.
type pendingRef struct {
	handle int
}

type readEntry struct {
	object  any
	state   handleState
	err     error
	waiters []waiter
	// fault replaces the object once it finishes, because something it
	// waits for turned out to be of an unknown class.
	fault *ClassNotFoundFault
}

// waiter is an assignment into the object behind owner.
type waiter struct {
	owner  int
	assign func(any) error
}

// readHandles mirrors writeHandles on the reading side. An entry is
// pending until its object has been constructed and validated; only then
// is the object released to back-references and deferred assignments.
type readHandles struct {
	entries []readEntry
}

func (t *readHandles) assign(object any, state handleState) int {
	t.entries = append(t.entries, readEntry{object: object, state: state})
	return len(t.entries) - 1
}

func (t *readHandles) lookup(wire int32) (int, error) {
	handle := int(wire - baseWireHandle)
	if handle < 0 || handle >= len(t.entries) {
		return 0, streamCorrupted("invalid handle value: %08X", wire)
	}
	return handle, nil
}

// value returns what a back-reference to handle resolves to.
func (t *readHandles) value(handle int) (any, error) {
	e := &t.entries[handle]
	switch e.state {
	case handlePending:
		return pendingRef{handle: handle}, nil
	case handleFailed:
		return nil, errors.Wrapf(e.err, "back-reference to failed handle %08X", int32(handle)+baseWireHandle)
	}
	return e.object, nil
}

// await runs assign once handle holds a constructed object. owner is the
// handle of the object assign writes into.
func (t *readHandles) await(handle, owner int, assign func(any) error) error {
	if handle >= len(t.entries) {
		return streamCorrupted("handle %08X dropped by a reset", int32(handle)+baseWireHandle)
	}
	e := &t.entries[handle]
	switch e.state {
	case handleReady:
		return assign(e.object)
	case handleFailed:
		return e.err
	}
	e.waiters = append(e.waiters, waiter{owner: owner, assign: assign})
	return nil
}

// finish releases object to back-references and deferred assignments and
// returns what was published. A handle dropped by a reset in the meantime
// is ignored.
//
// An object of an unknown class is never assigned anywhere: the owners of
// its waiters are replaced by the same fault instead, so that reaching
// them later yields ErrClassNotFound.
func (t *readHandles) finish(handle int, object any) (any, error) {
	if handle >= len(t.entries) {
		return object, nil
	}
	e := &t.entries[handle]
	if e.fault != nil {
		object = e.fault
	}
	e.object = object
	e.state = handleReady
	waiters := e.waiters
	e.waiters = nil
	if fault, ok := object.(*ClassNotFoundFault); ok {
		for _, w := range waiters {
			t.taint(w.owner, fault)
		}
		return object, nil
	}
	var errs []error
	for _, w := range waiters {
		errs = append(errs, w.assign(object))
	}
	return object, combine(errs...)
}

func (t *readHandles) taint(handle int, fault *ClassNotFoundFault) {
	if handle < 0 || handle >= len(t.entries) {
		return
	}
	e := &t.entries[handle]
	switch e.state {
	case handlePending:
		if e.fault == nil {
			e.fault = fault
		}
	case handleReady:
		if _, ok := e.object.(*ClassNotFoundFault); ok {
			return
		}
		e.object = fault
	}
}

func (t *readHandles) fail(handle int, err error) {
	if handle >= len(t.entries) {
		return
	}
	e := &t.entries[handle]
	e.object = nil
	e.state = handleFailed
	e.err = err
	e.waiters = nil
}

func (t *readHandles) clear() {
	t.entries = t.entries[:0]
}
