package object

import (
	"fmt"
	"math"
	"strings"
)

// bucketSlots is the fixed number of entries each bucket holds before
// chaining to an overflow bucket (N in the original hash table design).
const bucketSlots = 8

// tableEntry holds one key/value pair. Splitting the type tags from the
// payload (rather than one combined struct per slot) would save padding in
// a packed C layout; in Go the struct-of-slots layout below buys the same
// thing without unsafe tricks.
type tableEntry struct {
	hash    uint64
	keyType Type // NullObj means this slot is empty
	key     Object
	val     Object
}

// tableBucket is one level of a bucket chain: bucketSlots entries, compacted
// to the front (empty slots never appear before a used one), plus a pointer
// to an overflow bucket once all bucketSlots fill up.
type tableBucket struct {
	entries  [bucketSlots]tableEntry
	overflow *tableBucket
}

// Table is a custom open-addressed hash map keyed by hashable Objects:
// integers, floats, booleans and strings. It starts with 8 buckets and
// doubles whenever its load factor would exceed one half.
type Table struct {
	Header
	length  int
	buckets []*tableBucket
}

func NewTable() *Table {
	return &Table{buckets: makeBuckets(8)}
}

func makeBuckets(n int) []*tableBucket {
	buckets := make([]*tableBucket, n)
	for i := range buckets {
		buckets[i] = &tableBucket{}
	}
	return buckets
}

func (t *Table) Type() Type        { return TableObj }
func (t *Table) GCHeader() *Header { return &t.Header }
func (t *Table) Size() int         { return t.length * 32 }
func (t *Table) Len() int          { return t.length }

func (t *Table) Inspect() string {
	var pairs []string
	t.ForEach(func(k, v Object) {
		pairs = append(pairs, fmt.Sprintf("%s: %s", k.Inspect(), v.Inspect()))
	})
	return "{" + strings.Join(pairs, ", ") + "}"
}

// hashKey computes the hash of a key Object, or the "unusable as hash key"
// error if key's kind cannot be hashed.
func hashKey(key Object) (uint64, error) {
	switch k := key.(type) {
	case *Integer:
		return uint64(k.Value), nil
	case *Float:
		return math.Float64bits(k.Value), nil
	case *Boolean:
		if k.Value {
			return 1, nil
		}
		return 0, nil
	case *String:
		return fnv1a(k.Value), nil
	default:
		return 0, fmt.Errorf("unusable as hash key: %s", key.Type())
	}
}

func fnv1a(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// sameKey reports whether two keys of the same kind are the same table key.
// Floats compare by bit pattern, so a NaN key can be found again; every
// other kind uses Equal.
func sameKey(a, b Object) bool {
	if fa, ok := a.(*Float); ok {
		return math.Float64bits(fa.Value) == math.Float64bits(b.(*Float).Value)
	}
	return Equal(a, b)
}

func (t *Table) bucketIndex(hash uint64) int {
	return int(hash % uint64(len(t.buckets)))
}

// Get returns the value stored under key, or NullValue if key is absent.
func (t *Table) Get(key Object) (Object, error) {
	hash, err := hashKey(key)
	if err != nil {
		return nil, err
	}
	level := t.buckets[t.bucketIndex(hash)]
	for level != nil {
		for i := 0; i < bucketSlots; i++ {
			e := &level.entries[i]
			if e.keyType == NullObj {
				break
			}
			if e.hash == hash && e.keyType == key.Type() && sameKey(e.key, key) {
				return e.val, nil
			}
		}
		level = level.overflow
	}
	return NullValue, nil
}

// Set stores value under key and returns the previous value (NullValue if
// key was absent).
func (t *Table) Set(key, value Object) (Object, error) {
	hash, err := hashKey(key)
	if err != nil {
		return nil, err
	}
	if t.length >= (len(t.buckets)*bucketSlots)/2 {
		t.grow()
	}
	old, isNew := t.insert(key, value, hash)
	if isNew {
		t.length++
	}
	return old, nil
}

func (t *Table) insert(key, value Object, hash uint64) (old Object, isNew bool) {
	var free *tableEntry
	level := t.buckets[t.bucketIndex(hash)]
	for {
		for i := 0; i < bucketSlots; i++ {
			e := &level.entries[i]
			if e.keyType == NullObj {
				if free == nil {
					free = e
				}
				break
			}
			if e.hash == hash && e.keyType == key.Type() && sameKey(e.key, key) {
				old := e.val
				e.val = value
				return old, false
			}
		}
		if level.overflow == nil {
			break
		}
		level = level.overflow
	}
	if free == nil {
		level.overflow = &tableBucket{}
		free = &level.overflow.entries[0]
	}
	*free = tableEntry{hash: hash, keyType: key.Type(), key: key, val: value}
	return NullValue, true
}

// Remove deletes key, compacting its bucket level by swapping in the last
// used slot, and returns the removed value (NullValue if key was absent).
func (t *Table) Remove(key Object) (Object, error) {
	hash, err := hashKey(key)
	if err != nil {
		return nil, err
	}
	level := t.buckets[t.bucketIndex(hash)]
	for level != nil {
		for i := 0; i < bucketSlots; i++ {
			e := &level.entries[i]
			if e.keyType == NullObj {
				break
			}
			if e.hash == hash && e.keyType == key.Type() && sameKey(e.key, key) {
				old := e.val
				last := i
				for last+1 < bucketSlots && level.entries[last+1].keyType != NullObj {
					last++
				}
				level.entries[i] = level.entries[last]
				level.entries[last] = tableEntry{}
				t.length--
				return old, nil
			}
		}
		level = level.overflow
	}
	return NullValue, nil
}

func (t *Table) grow() {
	old := t.buckets
	t.buckets = makeBuckets(len(old) * 2)
	for _, b := range old {
		for level := b; level != nil; level = level.overflow {
			for i := 0; i < bucketSlots; i++ {
				e := level.entries[i]
				if e.keyType == NullObj {
					break
				}
				t.insert(e.key, e.val, e.hash)
			}
		}
	}
}

// ForEach visits every live entry; iteration order is unspecified but
// stable as long as the table is not mutated mid-iteration.
func (t *Table) ForEach(fn func(key, value Object)) {
	for _, b := range t.buckets {
		for level := b; level != nil; level = level.overflow {
			for i := 0; i < bucketSlots; i++ {
				e := level.entries[i]
				if e.keyType == NullObj {
					break
				}
				fn(e.key, e.val)
			}
		}
	}
}

// Copy returns a table holding a deep copy of every entry. The nested
// copies it makes are not registered with any GC tracker.
func (t *Table) Copy() *Table {
	cp := NewTable()
	t.ForEach(func(k, v Object) {
		cp.Set(k, deepCopy(func(h Heap) Heap { return h }, v))
	})
	return cp
}
