package message

import "errors"

var (
	// ErrMalformedRequest indicates the header section is not terminated by a
	// blank line or cannot be interpreted. The connection must be abandoned
	// without a response.
	ErrMalformedRequest = errors.New("message: malformed request")

	// ErrInvalidContentLength indicates a Content-Length value that is not an
	// unsigned decimal integer. It is always wrapped together with
	// ErrMalformedRequest.
	ErrInvalidContentLength = errors.New("message: invalid Content-Length")

	// ErrHeaderTooLarge indicates the header section exceeded the read limit
	// before its terminator was seen.
	ErrHeaderTooLarge = errors.New("message: header section too large")

	// ErrBodyTooLarge indicates a declared Content-Length above the body limit
	ErrBodyTooLarge = errors.New("message: body too large")
)
