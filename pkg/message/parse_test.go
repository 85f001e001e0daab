package message

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

func TestParse(t *testing.T) {
	raw := "POST /files/a.txt HTTP/1.1\r\nHost: localhost:4221\r\nContent-Length: 5\r\n\r\nhello"

	req, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	expectedHeaders := []string{
		"POST /files/a.txt HTTP/1.1",
		"Host: localhost:4221",
		"Content-Length: 5",
	}
	if !reflect.DeepEqual(req.Headers, expectedHeaders) {
		t.Errorf("Expected headers %q, got %q", expectedHeaders, req.Headers)
	}
	if string(req.Body) != "hello" {
		t.Errorf("Expected body 'hello', got %q", req.Body)
	}
	if req.Method() != "POST" || req.Path() != "/files/a.txt" || req.Version() != "HTTP/1.1" {
		t.Errorf("Unexpected request line tokens: %q %q %q", req.Method(), req.Path(), req.Version())
	}
}

func TestParseSplitsAtFirstBlankLine(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n\r\nbody\r\n\r\nmore"

	req, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(req.Headers) != 1 {
		t.Errorf("Expected 1 header line, got %d", len(req.Headers))
	}
	if string(req.Body) != "body\r\n\r\nmore" {
		t.Errorf("Unexpected body %q", req.Body)
	}
}

func TestParseBinaryBody(t *testing.T) {
	body := []byte{0x00, 0xff, 0xfe, '\r', '\n'}
	raw := append([]byte("POST /files/b HTTP/1.1\r\nContent-Length: 5\r\n\r\n"), body...)

	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !bytes.Equal(req.Body, body) {
		t.Errorf("Expected body %v, got %v", body, req.Body)
	}
}

func TestParseMalformed(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		is   error
	}{
		{"no terminator", "GET / HTTP/1.1\r\nHost: x\r\n", ErrMalformedRequest},
		{"empty input", "", ErrMalformedRequest},
		{"bare LF terminator", "GET / HTTP/1.1\n\n", ErrMalformedRequest},
		{"non numeric length", "POST /files/a HTTP/1.1\r\nContent-Length: abc\r\n\r\n", ErrInvalidContentLength},
		{"negative length", "POST /files/a HTTP/1.1\r\nContent-Length: -1\r\n\r\n", ErrInvalidContentLength},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, tc.is) {
				t.Errorf("Expected %v, got %v", tc.is, err)
			}
			if !errors.Is(err, ErrMalformedRequest) {
				t.Errorf("Expected error to be a malformed request, got %v", err)
			}
		})
	}
}

func TestBodySize(t *testing.T) {
	testCases := []struct {
		name     string
		headers  []string
		expected int
	}{
		{"absent", []string{"POST /files/a HTTP/1.1", "Host: x"}, 0},
		{"zero", []string{"POST /files/a HTTP/1.1", "Content-Length: 0"}, 0},
		{"present", []string{"POST /files/a HTTP/1.1", "Content-Length: 42"}, 42},
		{"large", []string{"POST /files/a HTTP/1.1", "Content-Length: 1048576"}, 1048576},
		{"first wins", []string{"POST /files/a HTTP/1.1", "Content-Length: 3", "Content-Length: 9"}, 3},
		{"prefix is case sensitive", []string{"POST /files/a HTTP/1.1", "content-length: 7"}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := NewRequest(tc.headers, nil)
			if got := req.BodySize(); got != tc.expected {
				t.Errorf("Expected body size %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestRequestTokensNeverPanic(t *testing.T) {
	req := NewRequest([]string{""}, nil)
	if req.Method() != "" || req.Path() != "" || req.Version() != "" {
		t.Errorf("Expected empty tokens for empty request line")
	}

	req = NewRequest(nil, nil)
	if req.RequestLine() != "" || req.Path() != "" {
		t.Errorf("Expected empty tokens for request without headers")
	}

	req = NewRequest([]string{"GET"}, nil)
	if req.Method() != "GET" || req.Path() != "" {
		t.Errorf("Expected method only, got %q %q", req.Method(), req.Path())
	}
}

func TestHeaderSkipsRequestLine(t *testing.T) {
	req := NewRequest([]string{"User-Agent: fake-request-line", "Host: x"}, nil)
	if _, ok := req.Header(PrefixUserAgent); ok {
		t.Error("Request line must not be treated as a header")
	}
}

func TestReadRequestAssemblesLargeBody(t *testing.T) {
	body := strings.Repeat("0123456789", 1000)
	raw := "POST /files/big HTTP/1.1\r\nContent-Length: 10000\r\n\r\n" + body

	// One byte per read exercises both the header and the body loops
	req, err := ReadRequest(iotest.OneByteReader(strings.NewReader(raw)), Limits{ReadSize: 64})
	if err != nil {
		t.Fatalf("ReadRequest returned error: %v", err)
	}
	if string(req.Body) != body {
		t.Errorf("Expected body of %d bytes, got %d", len(body), len(req.Body))
	}
}

func TestReadRequestTerminatorAcrossReads(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	req, err := ReadRequest(iotest.HalfReader(strings.NewReader(raw)), Limits{ReadSize: 3})
	if err != nil {
		t.Fatalf("ReadRequest returned error: %v", err)
	}
	if req.Path() != "/" {
		t.Errorf("Expected path '/', got %q", req.Path())
	}
}

func TestReadRequestShortBody(t *testing.T) {
	raw := "POST /files/a HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"
	req, err := ReadRequest(strings.NewReader(raw), DefaultLimits())
	if err != nil {
		t.Fatalf("ReadRequest returned error: %v", err)
	}
	if string(req.Body) != "abc" {
		t.Errorf("Expected truncated body 'abc', got %q", req.Body)
	}
}

func TestReadRequestErrors(t *testing.T) {
	t.Run("closed before headers end", func(t *testing.T) {
		_, err := ReadRequest(strings.NewReader("GET / HTTP/1.1\r\n"), DefaultLimits())
		if !errors.Is(err, ErrMalformedRequest) {
			t.Errorf("Expected malformed request, got %v", err)
		}
	})

	t.Run("header too large", func(t *testing.T) {
		raw := "GET / HTTP/1.1\r\nX-Pad: " + strings.Repeat("a", 512)
		_, err := ReadRequest(strings.NewReader(raw), Limits{ReadSize: 16, MaxHeaderBytes: 128})
		if !errors.Is(err, ErrHeaderTooLarge) {
			t.Errorf("Expected header too large, got %v", err)
		}
		if !errors.Is(err, ErrMalformedRequest) {
			t.Errorf("Expected malformed request, got %v", err)
		}
	})

	t.Run("terminated header over the limit", func(t *testing.T) {
		// The terminator arrives in the read that crosses the limit
		raw := "GET / HTTP/1.1\r\nX-Pad: " + strings.Repeat("a", 9<<10) + "\r\n\r\n"
		_, err := ReadRequest(strings.NewReader(raw), DefaultLimits())
		if !errors.Is(err, ErrHeaderTooLarge) {
			t.Errorf("Expected header too large, got %v", err)
		}
	})

	t.Run("header at the limit", func(t *testing.T) {
		line := "GET / HTTP/1.1\r\nX-Pad: "
		raw := line + strings.Repeat("a", DefaultMaxHeaderBytes-len(line)) + "\r\n\r\n"
		if _, err := ReadRequest(strings.NewReader(raw), DefaultLimits()); err != nil {
			t.Errorf("Expected header of exactly the limit to be accepted, got %v", err)
		}
	})

	t.Run("body too large", func(t *testing.T) {
		raw := "POST /files/a HTTP/1.1\r\nContent-Length: 4096\r\n\r\n"
		_, err := ReadRequest(strings.NewReader(raw), Limits{MaxBodyBytes: 1024})
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("Expected body too large, got %v", err)
		}
	})

	t.Run("read failure", func(t *testing.T) {
		_, err := ReadRequest(iotest.ErrReader(io.ErrClosedPipe), DefaultLimits())
		if !errors.Is(err, ErrMalformedRequest) {
			t.Errorf("Expected malformed request, got %v", err)
		}
	})
}

func TestReadRequestSingleRead(t *testing.T) {
	raw := "POST /files/a HTTP/1.1\r\nContent-Length: 6\r\n\r\nabcdef"

	// The 47 byte read carries the header section and two body bytes
	req, err := ReadRequest(strings.NewReader(raw), Limits{SingleRead: true, ReadSize: 47})
	if err != nil {
		t.Fatalf("ReadRequest returned error: %v", err)
	}
	if string(req.Body) != "ab" {
		t.Errorf("Expected truncated body 'ab' in single read mode, got %q", req.Body)
	}
	if req.BodySize() != 6 {
		t.Errorf("Expected declared size 6, got %d", req.BodySize())
	}
}
