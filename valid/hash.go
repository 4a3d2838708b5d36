package valid

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	javaio "github.com/lujjjh/go-javaio/v2"
)

// ErrHashCollisions reports a container whose elements collide in one hash
// bucket more often than the caller allows.
var ErrHashCollisions = errors.New("too many hash collisions")

// Hashable is implemented by values that define their own equality, the
// way a Java object overrides hashCode and equals.
type Hashable interface {
	HashCode() int32
	Equals(other any) bool
}

// HashSet is a set of Hashable elements bucketed by HashCode.
type HashSet[T Hashable] struct {
	buckets map[int32][]T
	n       int
}

func (s *HashSet[T]) Len() int {
	return s.n
}

func (s *HashSet[T]) Contains(v T) bool {
	_, ok := lo.Find(s.buckets[v.HashCode()], func(e T) bool { return e.Equals(v) })
	return ok
}

// Elems lists the elements in no particular order.
func (s *HashSet[T]) Elems() []T {
	return lo.Flatten(lo.Values(s.buckets))
}

// HashMap maps Hashable keys to values.
type HashMap[K Hashable, V any] struct {
	buckets map[int32][]hashEntry[K, V]
	n       int
}

type hashEntry[K Hashable, V any] struct {
	key   K
	value V
}

func (m *HashMap[K, V]) Len() int {
	return m.n
}

func (m *HashMap[K, V]) Get(key K) (V, bool) {
	e, ok := lo.Find(m.buckets[key.HashCode()], func(e hashEntry[K, V]) bool { return e.key.Equals(key) })
	return e.value, ok
}

// Keys lists the keys in no particular order.
func (m *HashMap[K, V]) Keys() []K {
	var keys []K
	for _, bucket := range m.buckets {
		for _, e := range bucket {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// CopyHashSet hashes and compares the elements of s, failing when two
// elements are equal or when more than maxCollisions distinct elements
// share a hash code. maxCollisions <= 0 means no bound.
func CopyHashSet[T Hashable](s *SuspectSet, maxCollisions int) (*HashSet[T], error) {
	out := &HashSet[T]{buckets: make(map[int32][]T)}
	if s == nil {
		return out, nil
	}
	elems, err := copyElems[T](s.elems)
	if err != nil {
		return nil, err
	}
	for i, e := range elems {
		if lo.IsNil(e) {
			return nil, javaio.InvalidObjectf("set element %d is null", i)
		}
		h := e.HashCode()
		bucket := out.buckets[h]
		if lo.ContainsBy(bucket, func(x T) bool { return x.Equals(e) }) {
			return nil, javaio.InvalidObjectf("duplicate set element %d", i)
		}
		if maxCollisions > 0 && len(bucket) >= maxCollisions {
			return nil, errors.Wrapf(ErrHashCollisions, "hash %d holds %d elements", h, len(bucket)+1)
		}
		out.buckets[h] = append(bucket, e)
		out.n++
	}
	return out, nil
}

// CopyHashMap is CopyHashSet for the keys of a map.
func CopyHashMap[K Hashable, V any](m *SuspectMap, maxCollisions int) (*HashMap[K, V], error) {
	out := &HashMap[K, V]{buckets: make(map[int32][]hashEntry[K, V])}
	if m == nil {
		return out, nil
	}
	for i := 0; i < m.Len(); i++ {
		k, v := m.Entry(i)
		key, err := As[K](k, "map key")
		if err != nil {
			return nil, err
		}
		if lo.IsNil(key) {
			return nil, javaio.InvalidObjectf("map key %d is null", i)
		}
		value, err := As[V](v, "map value")
		if err != nil {
			return nil, err
		}
		h := key.HashCode()
		bucket := out.buckets[h]
		if lo.ContainsBy(bucket, func(e hashEntry[K, V]) bool { return e.key.Equals(key) }) {
			return nil, javaio.InvalidObjectf("duplicate map key %d", i)
		}
		if maxCollisions > 0 && len(bucket) >= maxCollisions {
			return nil, errors.Wrapf(ErrHashCollisions, "hash %d holds %d keys", h, len(bucket)+1)
		}
		out.buckets[h] = append(bucket, hashEntry[K, V]{key: key, value: value})
		out.n++
	}
	return out, nil
}
