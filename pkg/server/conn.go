package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/niels/tinyhttpd/pkg/accesslog"
	"github.com/niels/tinyhttpd/pkg/compress"
	"github.com/niels/tinyhttpd/pkg/logging"
	"github.com/niels/tinyhttpd/pkg/message"
	"github.com/niels/tinyhttpd/pkg/metrics"
	"github.com/niels/tinyhttpd/pkg/router"
	"github.com/rs/zerolog"
)

// ErrPanic indicates a handler panicked while serving a connection
var ErrPanic = errors.New("server: panic while serving connection")

// ConnHandler runs the request pipeline for a single connection
type ConnHandler struct {
	router      *router.Router
	compressor  *compress.Gzip
	limits      message.Limits
	readTimeout time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Collector
	recorder    accesslog.Recorder
}

// HandlerOptions configures a ConnHandler. Router and Compressor are
// required; everything else is optional.
type HandlerOptions struct {
	Router      *router.Router
	Compressor  *compress.Gzip
	Limits      message.Limits
	ReadTimeout time.Duration
	Logger      zerolog.Logger
	Metrics     *metrics.Collector
	Recorder    accesslog.Recorder
}

// NewConnHandler creates a connection handler
func NewConnHandler(options HandlerOptions) *ConnHandler {
	recorder := options.Recorder
	if recorder == nil {
		recorder = accesslog.Discard{}
	}
	return &ConnHandler{
		router:      options.Router,
		compressor:  options.Compressor,
		limits:      options.Limits,
		readTimeout: options.ReadTimeout,
		logger:      options.Logger,
		metrics:     options.Metrics,
		recorder:    recorder,
	}
}

// Result summarizes a served request
type Result struct {
	Method     string
	Path       string
	Route      router.Route
	Status     int
	Compressed bool
	Written    int64
}

// Serve reads one request from rw, routes it and writes one response. On
// error nothing has been written and the caller must drop the connection.
func (h *ConnHandler) Serve(rw io.ReadWriter) (Result, error) {
	var result Result

	req, err := message.ReadRequest(rw, h.limits)
	if err != nil {
		return result, err
	}
	result.Method = req.Method()
	result.Path = req.Path()

	resp := message.NewResponse()
	route, err := h.router.Route(req, resp)
	result.Route = route
	if err != nil {
		return result, err
	}

	compressed, err := h.compressor.Apply(req, resp)
	if err != nil {
		return result, fmt.Errorf("compress response: %w", err)
	}
	result.Compressed = compressed

	resp.SetContentLength()
	result.Status = resp.Status()

	n, err := resp.WriteTo(rw)
	result.Written = n
	if err != nil {
		return result, fmt.Errorf("write response: %w", err)
	}
	return result, nil
}

// ServeConn handles one accepted connection end to end and closes it. Errors
// and panics are confined to this connection.
func (h *ConnHandler) ServeConn(ctx context.Context, id uint64, conn net.Conn) (err error) {
	remote := remoteAddr(conn)
	logger := logging.WithConnection(h.logger, id, remote)
	start := time.Now()

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()
	defer conn.Close()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			logger.Error().Interface("panic", r).Msg("Recovered from panic")
			h.metrics.ConnectionError(errorKind(err))
			h.recorder.Abandoned(remote, err.Error())
		}
	}()

	if h.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
			logger.Debug().Err(err).Msg("Failed to set read deadline")
		}
	}

	// Unblock a pending read when the server shuts down
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	result, err := h.Serve(conn)
	elapsed := time.Since(start)
	if err != nil {
		kind := errorKind(err)
		logger.Warn().Err(err).Str("kind", kind).Str("path", result.Path).Msg("Abandoning connection")
		h.metrics.ConnectionError(kind)
		h.recorder.Abandoned(remote, err.Error())
		return err
	}

	encoding := ""
	if result.Compressed {
		encoding = compress.EncodingGzip
	}
	logger.Debug().
		Str("method", result.Method).
		Str("path", result.Path).
		Str("route", string(result.Route)).
		Int("status", result.Status).
		Int64("bytes", result.Written).
		Bool("gzip", result.Compressed).
		Dur("elapsed", elapsed).
		Msg("Served request")
	h.metrics.ResponseWritten(string(result.Route), result.Status, result.Written, result.Compressed, elapsed)
	h.recorder.Served(accesslog.Entry{
		Remote:   remote,
		Method:   result.Method,
		Path:     result.Path,
		Status:   result.Status,
		Bytes:    result.Written,
		Encoding: encoding,
		Duration: elapsed,
	})
	return nil
}

// errorKind maps pipeline errors onto metric labels
func errorKind(err error) string {
	switch {
	case errors.Is(err, message.ErrHeaderTooLarge):
		return "header_too_large"
	case errors.Is(err, message.ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, message.ErrMalformedRequest):
		return "malformed"
	case errors.Is(err, router.ErrIOFailure):
		return "io"
	case errors.Is(err, ErrPanic):
		return "panic"
	default:
		return "write"
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
