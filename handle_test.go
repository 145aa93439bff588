package jsbind

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeContext_Basic(t *testing.T) {
	rc := NewRuntimeContext()
	require.NotNil(t, rc)

	// Test initial state
	assert.Equal(t, 0, rc.Count())

	// Test basic store/load/delete cycle
	id := rc.Store("test value")
	assert.Greater(t, id, uintptr(0))
	assert.Equal(t, 1, rc.Count())

	// Load
	value, ok := rc.Load(id)
	assert.True(t, ok)
	assert.Equal(t, "test value", value)

	// Delete
	assert.True(t, rc.Delete(id))
	assert.False(t, rc.Delete(id))
	assert.Equal(t, 0, rc.Count())

	// Load after delete should fail
	value, ok = rc.Load(id)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestRuntimeContext_MultipleValues(t *testing.T) {
	rc := NewRuntimeContext()

	testValues := []interface{}{
		"string",
		42,
		[]int{1, 2, 3},
		map[string]int{"key": 123},
		nil,
	}

	ids := make([]uintptr, len(testValues))
	for i, value := range testValues {
		ids[i] = rc.Store(value)
		assert.Greater(t, ids[i], uintptr(0))
	}
	assert.Equal(t, len(testValues), rc.Count())

	// tokens are never reused
	seen := make(map[uintptr]bool)
	for i, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
		v, ok := rc.Load(id)
		assert.True(t, ok)
		assert.Equal(t, testValues[i], v)
	}

	rc.Clear()
	assert.Equal(t, 0, rc.Count())
	_, ok := rc.Load(ids[0])
	assert.False(t, ok)

	// zero is never a valid token
	_, ok = rc.Load(0)
	assert.False(t, ok)
}

func TestRuntimeContext_Concurrent(t *testing.T) {
	rc := NewRuntimeContext()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := rc.Store(i)
				v, ok := rc.Load(id)
				assert.True(t, ok)
				assert.Equal(t, i, v)
				assert.True(t, rc.Delete(id))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, rc.Count())
}
