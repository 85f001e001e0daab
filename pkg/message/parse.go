package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// CRLF terminates every header line
	CRLF = "\r\n"

	// DefaultReadSize is the chunk size of a single read from the connection
	DefaultReadSize = 2048
	// DefaultMaxHeaderBytes bounds the header section
	DefaultMaxHeaderBytes = 8 << 10
	// DefaultMaxBodyBytes bounds the declared body length
	DefaultMaxBodyBytes = 10 << 20
)

var headerTerminator = []byte("\r\n\r\n")

// Limits controls how ReadRequest consumes a connection
type Limits struct {
	// ReadSize is the buffer size of each read
	ReadSize int
	// MaxHeaderBytes is the largest header section accepted
	MaxHeaderBytes int
	// MaxBodyBytes is the largest Content-Length accepted
	MaxBodyBytes int
	// SingleRead parses whatever the first read returns and never reads
	// again.
	SingleRead bool
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{
		ReadSize:       DefaultReadSize,
		MaxHeaderBytes: DefaultMaxHeaderBytes,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.ReadSize <= 0 {
		l.ReadSize = d.ReadSize
	}
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = d.MaxHeaderBytes
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = d.MaxBodyBytes
	}
	return l
}

// Parse splits buf at the first blank line into header lines and body.
func Parse(buf []byte) (*Request, error) {
	idx := bytes.Index(buf, headerTerminator)
	if idx < 0 {
		return nil, fmt.Errorf("%w: header terminator not found", ErrMalformedRequest)
	}

	headers := strings.Split(string(buf[:idx]), CRLF)
	body := buf[idx+len(headerTerminator):]

	req := NewRequest(headers, body)
	if _, err := req.contentLength(); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrMalformedRequest, ErrInvalidContentLength, err)
	}
	return req, nil
}

// ReadRequest reads from r until the header section is complete and then
// until the declared body has arrived or the peer stops sending.
func ReadRequest(r io.Reader, limits Limits) (*Request, error) {
	limits = limits.withDefaults()

	if limits.SingleRead {
		chunk := make([]byte, limits.ReadSize)
		n, err := r.Read(chunk)
		if n == 0 && err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		return Parse(chunk[:n])
	}

	buf := make([]byte, 0, limits.ReadSize)
	chunk := make([]byte, limits.ReadSize)
	headerEnd := -1
	eof := false

	for headerEnd < 0 {
		if eof {
			return nil, fmt.Errorf("%w: connection closed before end of headers", ErrMalformedRequest)
		}
		n, err := r.Read(chunk)
		if n > 0 {
			// Rescan the tail of the previous read in case the terminator straddles reads
			from := len(buf) - (len(headerTerminator) - 1)
			if from < 0 {
				from = 0
			}
			buf = append(buf, chunk[:n]...)
			if idx := bytes.Index(buf[from:], headerTerminator); idx >= 0 {
				headerEnd = from + idx
			}
		}
		if headerEnd < 0 && len(buf) > limits.MaxHeaderBytes {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, ErrHeaderTooLarge)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
			}
			eof = true
		}
	}

	if headerEnd > limits.MaxHeaderBytes {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, ErrHeaderTooLarge)
	}

	req, err := Parse(buf)
	if err != nil {
		return nil, err
	}

	want := req.BodySize()
	if want > limits.MaxBodyBytes {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrBodyTooLarge, want, limits.MaxBodyBytes)
	}
	for !eof && len(req.Body) < want {
		n, err := r.Read(chunk)
		req.Body = append(req.Body, chunk[:n]...)
		if err != nil {
			// A short body is not fatal; the handlers bound what they use
			break
		}
	}
	return req, nil
}
