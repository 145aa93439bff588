package jsbind

import (
	"strconv"
	"unicode/utf16"

	"github.com/buke/jsbind/native"
)

type keyKind int

const (
	keyName keyKind = iota
	keyUTF16
	keyIndex
	keyValue
)

// PropertyKey names an object property: a string, a UTF-16 string, an array index or an
// arbitrary key value such as a symbol.
type PropertyKey struct {
	kind  keyKind
	name  string
	units []uint16
	index uint32
	value Value
}

// Key returns a property key for name.
func Key(name string) PropertyKey {
	return PropertyKey{kind: keyName, name: name}
}

// KeyUTF16 returns a property key for a name given as UTF-16 code units.
func KeyUTF16(name []uint16) PropertyKey {
	return PropertyKey{kind: keyUTF16, units: name}
}

// Index returns a property key for an array index.
func Index(i uint32) PropertyKey {
	return PropertyKey{kind: keyIndex, index: i}
}

// KeyValue returns a property key for a JS value, typically a symbol.
func KeyValue(v Value) PropertyKey {
	return PropertyKey{kind: keyValue, value: v}
}

// String returns a readable form of the key.
func (k PropertyKey) String() string {
	switch k.kind {
	case keyUTF16:
		return string(utf16.Decode(k.units))
	case keyIndex:
		return strconv.FormatUint(uint64(k.index), 10)
	case keyValue:
		return k.value.String()
	}
	return k.name
}

// handle materialises the key as an engine handle in scope cur.
func (k PropertyKey) handle(cur *Scope) (native.Handle, error) {
	n := cur.env.native
	var (
		h  native.Handle
		st native.Status
	)
	switch k.kind {
	case keyName:
		h, st = n.CreateString(k.name)
	case keyUTF16:
		h, st = n.CreateStringUTF16(k.units)
	case keyIndex:
		h, st = n.CreateString(strconv.FormatUint(uint64(k.index), 10))
	case keyValue:
		if k.value.scope != nil && k.value.scope.env != cur.env {
			return 0, ErrEnvironmentMismatch
		}
		return k.value.Handle()
	}
	if st != native.OK {
		return 0, &NativeError{Op: "create property key", Status: st}
	}
	return h, nil
}
