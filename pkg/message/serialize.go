package message

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// Size returns the number of bytes the serialized response occupies
func (r *Response) Size() int {
	n := len(CRLF) + len(r.Body)
	for _, line := range r.Headers {
		n += len(line) + len(CRLF)
	}
	return n
}

// AppendTo appends the wire form of the response to dst: every header line
// followed by CRLF, a blank line, then the body verbatim.
func (r *Response) AppendTo(dst []byte) []byte {
	for _, line := range r.Headers {
		dst = append(dst, line...)
		dst = append(dst, CRLF...)
	}
	dst = append(dst, CRLF...)
	return append(dst, r.Body...)
}

// Bytes returns the wire form of the response in a new slice
func (r *Response) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, r.Size()))
}

// WriteTo writes the wire form of the response to w in a single write
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = r.AppendTo(buf.B)
	n, err := w.Write(buf.B)
	return int64(n), err
}
