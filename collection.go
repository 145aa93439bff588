package jsbind

import (
	"github.com/pkg/errors"
)

var errIndexOutOfRange = errors.New("jsbind: index subscript out of range")

// Array adapts a JS array value to Go-style access.
type Array struct {
	arrayValue Value
}

// AsArray returns an Array view of v, which must be an array.
func AsArray(v Value) (Array, error) {
	if !v.IsArray() {
		return Array{}, errors.New("jsbind: value is not an array")
	}
	return Array{arrayValue: v}, nil
}

// Push adds elements at the end and returns the new length.
func (a Array) Push(elements ...Value) (int, error) {
	ret, err := a.arrayValue.CallMethod("push", elements...)
	if err != nil {
		return 0, err
	}
	n, err := ret.ToInt64()
	return int(n), err
}

// Pop removes and returns the last element; it is undefined for an empty array.
func (a Array) Pop() (Value, error) {
	return a.arrayValue.CallMethod("pop")
}

// Unshift adds elements at the beginning and returns the new length.
func (a Array) Unshift(elements ...Value) (int, error) {
	ret, err := a.arrayValue.CallMethod("unshift", elements...)
	if err != nil {
		return 0, err
	}
	n, err := ret.ToInt64()
	return int(n), err
}

// Shift removes and returns the first element.
func (a Array) Shift() (Value, error) {
	return a.arrayValue.CallMethod("shift")
}

// Get returns the element at index, which must be within the array.
func (a Array) Get(index int) (Value, error) {
	if err := a.checkIndex(index); err != nil {
		return Value{}, err
	}
	return a.arrayValue.GetIndex(uint32(index))
}

// Set replaces the element at index, which must be within the array.
func (a Array) Set(index int, value Value) error {
	if err := a.checkIndex(index); err != nil {
		return err
	}
	return a.arrayValue.SetIndex(uint32(index), value)
}

func (a Array) checkIndex(index int) error {
	if index < 0 {
		return errors.Wrapf(errIndexOutOfRange, "negative index %d", index)
	}
	n, err := a.Len()
	if err != nil {
		return err
	}
	if index >= n {
		return errors.Wrapf(errIndexOutOfRange, "index %d, length %d", index, n)
	}
	return nil
}

// Len returns the length of the array.
func (a Array) Len() (int, error) {
	return a.arrayValue.Len()
}

// Values returns every element in order.
func (a Array) Values() ([]Value, error) {
	n, err := a.Len()
	if err != nil {
		return nil, err
	}
	out := make([]Value, n)
	for i := range out {
		if out[i], err = a.arrayValue.GetIndex(uint32(i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ToValue returns the underlying array value.
func (a Array) ToValue() Value {
	return a.arrayValue
}
