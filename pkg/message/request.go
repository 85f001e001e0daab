package message

import (
	"strconv"
	"strings"
)

// Header prefixes the pipeline looks for. Matching is literal and case
// sensitive.
const (
	PrefixContentLength  = "Content-Length: "
	PrefixUserAgent      = "User-Agent: "
	PrefixAcceptEncoding = "Accept-Encoding: "
)

// Request represents a parsed HTTP request
type Request struct {
	// Headers holds the header lines in wire order. The first element is the
	// request line.
	Headers []string
	// Body holds the raw bytes following the blank line.
	Body []byte
}

// NewRequest creates a request from header lines and a body
func NewRequest(headers []string, body []byte) *Request {
	return &Request{Headers: headers, Body: body}
}

// RequestLine returns the first header line, or "" for an empty request
func (r *Request) RequestLine() string {
	if len(r.Headers) == 0 {
		return ""
	}
	return r.Headers[0]
}

// Method returns the first token of the request line
func (r *Request) Method() string {
	return r.token(0)
}

// Path returns the second token of the request line. It is never decoded.
func (r *Request) Path() string {
	return r.token(1)
}

// Version returns the third token of the request line
func (r *Request) Version() string {
	return r.token(2)
}

func (r *Request) token(i int) string {
	fields := strings.Fields(r.RequestLine())
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}

// Header returns the remainder of the first header line starting with prefix.
// The request line is never considered.
func (r *Request) Header(prefix string) (string, bool) {
	for i := 1; i < len(r.Headers); i++ {
		if value, ok := strings.CutPrefix(r.Headers[i], prefix); ok {
			return value, true
		}
	}
	return "", false
}

// BodySize returns the declared Content-Length, or 0 when absent. Requests
// produced by Parse or ReadRequest always carry a valid value.
func (r *Request) BodySize() int {
	n, _ := r.contentLength()
	return n
}

func (r *Request) contentLength() (int, error) {
	value, ok := r.Header(PrefixContentLength)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(value, 10, 31)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
