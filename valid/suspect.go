package valid

import (
	javaio "github.com/lujjjh/go-javaio/v2"
)

// SuspectList is a decoded list whose elements have not been checked. It
// is read-only and never calls a method of an element.
type SuspectList struct {
	elems []any
}

// NewSuspectList wraps elems without copying them. Elements still being
// constructed when the list is built are filled in place once they are.
func NewSuspectList(elems []any) *SuspectList {
	return &SuspectList{elems: elems}
}

func (l *SuspectList) Len() int {
	return len(l.elems)
}

func (l *SuspectList) Elem(i int) any {
	return l.elems[i]
}

// SuspectSet is a decoded set whose elements have not been hashed or
// compared. Duplicates are only detected when it is copied.
type SuspectSet struct {
	elems []any
}

// NewSuspectSet wraps elems without copying them.
func NewSuspectSet(elems []any) *SuspectSet {
	return &SuspectSet{elems: elems}
}

func (s *SuspectSet) Len() int {
	return len(s.elems)
}

func (s *SuspectSet) Elem(i int) any {
	return s.elems[i]
}

// SuspectMap is a decoded map held as parallel key and value sequences.
// Keys are neither hashed nor compared until the map is copied.
type SuspectMap struct {
	keys   []any
	values []any
}

// NewSuspectMap wraps keys and values without copying them.
func NewSuspectMap(keys, values []any) (*SuspectMap, error) {
	if len(keys) != len(values) {
		return nil, javaio.InvalidObjectf("map with %d keys and %d values", len(keys), len(values))
	}
	return &SuspectMap{keys: keys, values: values}, nil
}

func (m *SuspectMap) Len() int {
	return len(m.keys)
}

// Entry returns the i-th key and value in stream order.
func (m *SuspectMap) Entry(i int) (key, value any) {
	return m.keys[i], m.values[i]
}
