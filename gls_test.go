package jsbind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoroutineLocal(t *testing.T) {
	var l goroutineLocal[*int]
	a, b := 1, 2

	l.set(&a)
	assert.Same(t, &a, l.get())

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Nil(t, l.get())
		l.set(&b)
		assert.Same(t, &b, l.get())
		l.set(nil)
	}()
	<-done

	assert.Same(t, &a, l.get())

	// setting the zero value removes the slot
	l.set(nil)
	assert.Nil(t, l.get())
	n := 0
	l.m.Range(func(_, _ interface{}) bool { n++; return true })
	assert.Equal(t, 0, n)
}
