// Package compress negotiates and applies response content encodings.
package compress

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/niels/tinyhttpd/pkg/message"
)

// EncodingGzip is the only encoding the server produces
const EncodingGzip = "gzip"

// Gzip compresses response bodies for clients that accept gzip
type Gzip struct {
	level    int
	disabled bool
	writers  sync.Pool
}

// Options configures a Gzip compressor
type Options struct {
	// Level is a klauspost/compress/gzip level; 0 selects gzip.DefaultCompression
	Level int
	// Disabled turns Apply into a no-op
	Disabled bool
}

// NewGzip creates a compressor. It fails for levels gzip does not support.
func NewGzip(options Options) (*Gzip, error) {
	level := options.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	// Validate once so pooled writers never fail to construct
	if _, err := gzip.NewWriterLevel(nil, level); err != nil {
		return nil, fmt.Errorf("invalid gzip level %d: %w", options.Level, err)
	}
	return &Gzip{level: level, disabled: options.Disabled}, nil
}

// Accepts reports whether the first Accept-Encoding header mentions gzip
func Accepts(req *message.Request) bool {
	value, ok := req.Header(message.PrefixAcceptEncoding)
	return ok && strings.Contains(value, EncodingGzip)
}

// Apply gzip-encodes resp.Body in place when it is non-empty and the client
// accepts gzip. It reports whether the body was replaced.
func (g *Gzip) Apply(req *message.Request, resp *message.Response) (bool, error) {
	if g.disabled || len(resp.Body) == 0 || !Accepts(req) {
		return false, nil
	}

	encoded, err := g.encode(resp.Body)
	if err != nil {
		return false, err
	}
	resp.Body = encoded
	resp.SetHeader(message.HeaderContentEncoding, EncodingGzip)
	return true, nil
}

func (g *Gzip) encode(body []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw, _ := g.writers.Get().(*gzip.Writer)
	if zw == nil {
		zw, _ = gzip.NewWriterLevel(&buf, g.level)
	} else {
		zw.Reset(&buf)
	}
	defer g.writers.Put(zw)

	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}
