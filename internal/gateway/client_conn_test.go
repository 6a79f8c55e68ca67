package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientConnTuning(t *testing.T) {
	c := newHertzClientConn(1024, 30*time.Second, 27*time.Second, 2*time.Second, 8)
	assert.Equal(t, 8, cap(c.writeChan))
	assert.Equal(t, 2*time.Second, c.writeWait)

	// Unset values fall back to the package defaults
	c = newHertzClientConn(1024, 30*time.Second, 27*time.Second, 0, 0)
	assert.Equal(t, 256, cap(c.writeChan))
	assert.Equal(t, WriteWait, c.writeWait)
}
