package gateway

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamBufferReleasesAfterFillGate(t *testing.T) {
	b := NewStreamBuffer(1024, 8)

	got := make(chan []byte, 1)
	go func() {
		chunk, _ := b.Read()
		got <- chunk
	}()

	// Below the gate: the reader must stay blocked.
	b.Write([]byte("abcd"))
	select {
	case <-got:
		t.Fatal("read returned before initial fill")
	case <-time.After(50 * time.Millisecond):
	}

	// Crossing the gate releases the first chunk.
	b.Write([]byte("efgh"))
	select {
	case chunk := <-got:
		assert.Equal(t, []byte("abcd"), chunk)
	case <-time.After(time.Second):
		t.Fatal("read did not return after initial fill")
	}
}

func TestStreamBufferCloseFlushesBelowGate(t *testing.T) {
	b := NewStreamBuffer(1024, 512)
	b.Write([]byte("tail"))
	b.Close(nil)

	chunk, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("tail"), chunk)

	chunk, err = b.Read()
	assert.Nil(t, chunk)
	assert.NoError(t, err)
}

func TestStreamBufferProducerError(t *testing.T) {
	b := NewStreamBuffer(1024, 4)
	b.Write([]byte("data"))
	bufErr := errors.New("upstream gone")
	b.Close(bufErr)

	chunk, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), chunk)

	chunk, err = b.Read()
	assert.Nil(t, chunk)
	assert.ErrorIs(t, err, bufErr)
}

func TestStreamBufferDropsWritesAfterClose(t *testing.T) {
	b := NewStreamBuffer(1024, 1)
	b.Close(nil)
	b.Write([]byte("late"))

	chunk, err := b.Read()
	assert.Nil(t, chunk)
	assert.NoError(t, err)
}

func TestStreamBufferCopiesChunks(t *testing.T) {
	b := NewStreamBuffer(1024, 1)
	src := []byte("original")
	b.Write(src)
	copy(src, "mutated!")

	chunk, err := b.Read()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(chunk, []byte("original")))
}

func TestStreamBufferBackpressure(t *testing.T) {
	b := NewStreamBuffer(8, 1)
	b.Write([]byte("12345678"))

	done := make(chan struct{})
	go func() {
		b.Write([]byte("overflow"))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("write returned while buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	// Draining makes room and unblocks the producer.
	_, err := b.Read()
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write did not unblock after drain")
	}
}
