package message

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Protocol is the version written in every status line
const Protocol = "HTTP/1.1"

// Content types set by the handlers
const (
	ContentTypeText   = "text/plain"
	ContentTypeBinary = "application/octet-stream"
)

// Header names the response builder manages
const (
	HeaderContentType     = "Content-Type"
	HeaderContentEncoding = "Content-Encoding"
	HeaderContentLength   = "Content-Length"
)

// Response represents an HTTP response under construction
type Response struct {
	// Headers holds the header lines in wire order. The first element is the
	// status line and is always present.
	Headers []string
	// Body holds the bytes written after the blank line.
	Body []byte
}

// NewResponse creates a response with the default 400 Bad Request status
func NewResponse() *Response {
	return &Response{Headers: []string{StatusLine(http.StatusBadRequest)}}
}

// StatusLine renders the status line for code
func StatusLine(code int) string {
	return fmt.Sprintf("%s %d %s", Protocol, code, http.StatusText(code))
}

// SetStatus replaces the status line
func (r *Response) SetStatus(code int) {
	if len(r.Headers) == 0 {
		r.Headers = []string{StatusLine(code)}
		return
	}
	r.Headers[0] = StatusLine(code)
}

// Status returns the numeric status code from the status line
func (r *Response) Status() int {
	if len(r.Headers) == 0 {
		return 0
	}
	fields := strings.Fields(r.Headers[0])
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// SetHeader sets name to value, replacing an existing line with the same name
// so the header appears at most once.
func (r *Response) SetHeader(name, value string) {
	line := name + ": " + value
	prefix := name + ": "
	for i := 1; i < len(r.Headers); i++ {
		if strings.HasPrefix(r.Headers[i], prefix) {
			r.Headers[i] = line
			return
		}
	}
	r.Headers = append(r.Headers, line)
}

// Header returns the value of the header called name
func (r *Response) Header(name string) (string, bool) {
	prefix := name + ": "
	for i := 1; i < len(r.Headers); i++ {
		if value, ok := strings.CutPrefix(r.Headers[i], prefix); ok {
			return value, true
		}
	}
	return "", false
}

// SetBody replaces the body and sets its content type
func (r *Response) SetBody(contentType string, body []byte) {
	r.SetHeader(HeaderContentType, contentType)
	r.Body = body
}

// SetContentLength appends Content-Length for the current body. It must run
// after any change to the body, compression included.
func (r *Response) SetContentLength() {
	prefix := HeaderContentLength + ": "
	for i := 1; i < len(r.Headers); i++ {
		if strings.HasPrefix(r.Headers[i], prefix) {
			r.Headers = append(r.Headers[:i], r.Headers[i+1:]...)
			break
		}
	}
	r.Headers = append(r.Headers, prefix+strconv.Itoa(len(r.Body)))
}
