package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapturerLifecycle(t *testing.T) {
	c := NewCapturer(0)
	assert.False(t, c.Write([]byte("before")), "chunks outside a recording are dropped")

	c.Begin(true, "audio/ogg")
	assert.True(t, c.Write([]byte("ab")))
	assert.True(t, c.Write([]byte("cd")))
	blob, contentType := c.Finish()
	assert.Equal(t, []byte("abcd"), blob)
	assert.Equal(t, "audio/ogg", contentType)

	c.Begin(true, "audio/ogg")
	blob, _ = c.Finish()
	assert.Nil(t, blob, "reset between answers, not appended")
}

func TestCapturerWithoutMicrophone(t *testing.T) {
	c := NewCapturer(0)
	c.Begin(false, "")
	assert.False(t, c.Write([]byte("x")))
	blob, _ := c.Finish()
	assert.Nil(t, blob)
}

func TestCapturerLimit(t *testing.T) {
	c := NewCapturer(4)
	c.Begin(true, "audio/webm")
	assert.True(t, c.Write([]byte("abc")))
	assert.False(t, c.Write([]byte("de")))
	assert.Equal(t, 2, c.Dropped())

	blob, _ := c.Finish()
	assert.Equal(t, []byte("abc"), blob)
	blob, _ = c.Finish()
	assert.Nil(t, blob, "finish twice yields nothing")
}
