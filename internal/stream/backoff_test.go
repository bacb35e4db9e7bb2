package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectState_DoublesFromFloor(t *testing.T) {
	state := NewReconnectState(1*time.Second, 0)

	// Delay before attempt N+1 is floor * 2^N.
	assert.Equal(t, 1*time.Second, state.Next())
	assert.Equal(t, 2*time.Second, state.Next())
	assert.Equal(t, 4*time.Second, state.Next())
	assert.Equal(t, 8*time.Second, state.Next())
}

func TestReconnectState_ResetReturnsToFloor(t *testing.T) {
	state := NewReconnectState(1*time.Second, 0)

	state.Next()
	state.Next()
	state.Next()
	state.Reset()

	assert.Equal(t, 1*time.Second, state.Current())
	assert.Equal(t, 1*time.Second, state.Next())
}

func TestReconnectState_CeilingCapsDelay(t *testing.T) {
	state := NewReconnectState(1*time.Second, 5*time.Second)

	assert.Equal(t, 1*time.Second, state.Next())
	assert.Equal(t, 2*time.Second, state.Next())
	assert.Equal(t, 4*time.Second, state.Next())
	assert.Equal(t, 5*time.Second, state.Next())
	assert.Equal(t, 5*time.Second, state.Next())
}

func TestReconnectState_ZeroCeilingIsUncapped(t *testing.T) {
	state := NewReconnectState(1*time.Second, 0)

	for i := 0; i < 10; i++ {
		state.Next()
	}

	assert.Equal(t, 1024*time.Second, state.Current())
}
