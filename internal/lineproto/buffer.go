package lineproto

import "fmt"

// DefaultBufferSize is the record buffer capacity used by the delivery loop.
const DefaultBufferSize = 1024

// Sink receives encoded bytes. Flush is called once, when a record is
// finalized. *bufio.Writer satisfies Sink.
type Sink interface {
	Write(p []byte) (int, error)
	Flush() error
}

// Buffer is a fixed-capacity in-memory Sink. A write that does not fit is
// rejected whole and leaves the buffer unchanged.
type Buffer struct {
	buf []byte
}

// NewBuffer allocates a Buffer holding at most size bytes.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{buf: make([]byte, 0, size)}
}

// Write appends p, or fails with ErrBufferFull without writing anything.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(b.buf)+len(p) > cap(b.buf) {
		return 0, fmt.Errorf("%w: need %d bytes, %d free", ErrBufferFull, len(p), cap(b.buf)-len(b.buf))
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Flush is a no-op.
func (b *Buffer) Flush() error { return nil }

// Bytes returns the buffered bytes. The slice is only valid until the next
// Write or Reset.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return len(b.buf) }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return cap(b.buf) }

// Reset discards the buffered bytes, keeping the capacity.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }
