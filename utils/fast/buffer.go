// Package fast is the byte stream half of the cser codec. Reads are not bounds
// checked: a short buffer panics, and cser recovers that panic into
// ErrMalformedEncoding.
package fast

type Reader struct {
	buf    []byte
	offset int
}

type Writer struct {
	buf []byte
}

func NewReader(bb []byte) *Reader {
	return &Reader{
		buf:    bb,
		offset: 0,
	}
}

func NewWriter(bb []byte) *Writer {
	return &Writer{
		buf: bb,
	}
}

func (b *Writer) WriteByte(v byte) {
	b.buf = append(b.buf, v)
}

func (b *Writer) Write(v []byte) {
	b.buf = append(b.buf, v...)
}

// Read returns the next n bytes. The result aliases the underlying buffer.
func (b *Reader) Read(n int) []byte {
	res := b.buf[b.offset : b.offset+n]
	b.offset += n
	return res
}

func (b *Reader) ReadByte() byte {
	res := b.buf[b.offset]
	b.offset++
	return res
}

func (b *Reader) Position() int {
	return b.offset
}

func (b *Reader) Bytes() []byte {
	return b.buf
}

func (b *Writer) Bytes() []byte {
	return b.buf
}

func (b *Reader) Empty() bool {
	return len(b.buf) == b.offset
}
