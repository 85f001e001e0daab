package message

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestNewResponseDefaultsToBadRequest(t *testing.T) {
	resp := NewResponse()
	if resp.Headers[0] != "HTTP/1.1 400 Bad Request" {
		t.Errorf("Expected default status line, got %q", resp.Headers[0])
	}
	if resp.Status() != 400 {
		t.Errorf("Expected status 400, got %d", resp.Status())
	}
	if len(resp.Body) != 0 {
		t.Errorf("Expected empty body, got %q", resp.Body)
	}
}

func TestStatusLine(t *testing.T) {
	testCases := map[int]string{
		200: "HTTP/1.1 200 OK",
		201: "HTTP/1.1 201 Created",
		400: "HTTP/1.1 400 Bad Request",
		404: "HTTP/1.1 404 Not Found",
	}
	for code, expected := range testCases {
		if got := StatusLine(code); got != expected {
			t.Errorf("StatusLine(%d): expected %q, got %q", code, expected, got)
		}
	}
}

func TestSetHeaderAtMostOnce(t *testing.T) {
	resp := NewResponse()
	resp.SetHeader(HeaderContentType, ContentTypeText)
	resp.SetHeader(HeaderContentType, ContentTypeBinary)
	resp.SetHeader(HeaderContentEncoding, "gzip")
	resp.SetHeader(HeaderContentEncoding, "gzip")

	expected := []string{
		"HTTP/1.1 400 Bad Request",
		"Content-Type: application/octet-stream",
		"Content-Encoding: gzip",
	}
	if !reflect.DeepEqual(resp.Headers, expected) {
		t.Errorf("Expected headers %q, got %q", expected, resp.Headers)
	}
}

func TestSetContentLengthCountsBytes(t *testing.T) {
	resp := NewResponse()
	resp.SetStatus(200)
	resp.SetBody(ContentTypeText, []byte("héllo"))
	resp.SetContentLength()

	value, ok := resp.Header(HeaderContentLength)
	if !ok {
		t.Fatal("Expected Content-Length header")
	}
	if value != "6" {
		t.Errorf("Expected byte length 6, got %s", value)
	}
	if resp.Headers[len(resp.Headers)-1] != "Content-Length: 6" {
		t.Errorf("Expected Content-Length to be the last header, got %q", resp.Headers)
	}

	// Recomputing keeps a single line
	resp.Body = []byte("hi")
	resp.SetContentLength()
	count := 0
	for _, line := range resp.Headers {
		if len(line) >= len("Content-Length") && line[:len("Content-Length")] == "Content-Length" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected exactly one Content-Length line, got %d", count)
	}
}

func TestSerialize(t *testing.T) {
	resp := &Response{
		Headers: []string{"HTTP/1.1 200 OK", "Content-Type: text/plain"},
		Body:    []byte("hi"),
	}
	expected := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhi"

	first := resp.Bytes()
	if string(first) != expected {
		t.Errorf("Expected %q, got %q", expected, first)
	}

	second := resp.Bytes()
	if !bytes.Equal(first, second) {
		t.Errorf("Serializing twice produced different output: %q vs %q", first, second)
	}
	if len(first) != resp.Size() {
		t.Errorf("Expected Size %d to match output length %d", resp.Size(), len(first))
	}
}

func TestSerializeStatusOnly(t *testing.T) {
	resp := NewResponse()
	resp.SetStatus(404)
	resp.SetContentLength()

	expected := "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"
	if got := string(resp.Bytes()); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestWriteTo(t *testing.T) {
	resp := &Response{
		Headers: []string{"HTTP/1.1 200 OK", "Content-Type: text/plain"},
		Body:    []byte{0x00, 0x01, 0x02},
	}
	headersBefore := append([]string(nil), resp.Headers...)

	var buf bytes.Buffer
	n, err := resp.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo returned error: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("Expected %d bytes reported, got %d", buf.Len(), n)
	}
	if !bytes.Equal(buf.Bytes(), resp.Bytes()) {
		t.Errorf("WriteTo output differs from Bytes")
	}
	if !reflect.DeepEqual(resp.Headers, headersBefore) {
		t.Errorf("Serialization mutated headers: %q", resp.Headers)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteToPropagatesError(t *testing.T) {
	resp := NewResponse()
	if _, err := resp.WriteTo(failingWriter{}); err == nil {
		t.Error("Expected write error to be returned")
	}
}
