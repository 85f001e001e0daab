package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/niels/tinyhttpd/pkg/accesslog"
	"github.com/niels/tinyhttpd/pkg/compress"
	"github.com/niels/tinyhttpd/pkg/config"
	"github.com/niels/tinyhttpd/pkg/logging"
	"github.com/niels/tinyhttpd/pkg/message"
	"github.com/niels/tinyhttpd/pkg/metrics"
	"github.com/niels/tinyhttpd/pkg/retry"
	"github.com/niels/tinyhttpd/pkg/router"
	"github.com/rs/zerolog"
)

// Server accepts connections and hands each one to a ConnHandler in its own
// goroutine
type Server struct {
	config   *config.Config
	handler  *ConnHandler
	metrics  *metrics.Collector
	recorder accesslog.Recorder
	retry    retry.Options
	logger   zerolog.Logger
	nextID   atomic.Uint64

	mu        sync.Mutex
	listener  net.Listener
	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a server from the configuration. The collector and recorder may
// be nil.
func New(cfg *config.Config, collector *metrics.Collector, recorder accesslog.Recorder) (*Server, error) {
	compressor, err := compress.NewGzip(compress.Options{
		Level:    cfg.Compression.Level,
		Disabled: cfg.Compression.Disable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	if recorder == nil {
		recorder = accesslog.Discard{}
	}

	logger := logging.WithComponent("server")
	handler := NewConnHandler(HandlerOptions{
		Router: router.New(router.Options{
			Directory:        cfg.Server.Directory,
			AllowUnsafePaths: cfg.Server.AllowUnsafePaths,
		}),
		Compressor: compressor,
		Limits: message.Limits{
			ReadSize:       cfg.Server.ReadBufferSize,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			SingleRead:     cfg.Server.SingleRead,
		},
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Logger:      logger,
		Metrics:     collector,
		Recorder:    recorder,
	})

	return &Server{
		config:   cfg,
		handler:  handler,
		metrics:  collector,
		recorder: recorder,
		retry:    retry.FromConfig(cfg),
		logger:   logger,
		ready:    make(chan struct{}),
	}, nil
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", s.config.Server.Address, err)
	}
	return s.Serve(ctx, listener)
}

// Addr blocks until the server is listening and returns the bound address
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr(), nil
}

// Serve accepts connections on listener until ctx is cancelled or the
// listener fails permanently. It waits for in-flight connections before
// returning.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	// Closing the listener is what interrupts a blocked Accept
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	s.recorder.Start(listener.Addr().String())
	defer s.recorder.Finish()

	s.logger.Info().
		Str("address", listener.Addr().String()).
		Str("directory", s.config.Server.Directory).
		Int("max_connections", s.config.Server.MaxConnections).
		Msg("Accepting connections")

	// A nil semaphore means unbounded, one goroutine per connection
	var semaphore chan struct{}
	if s.config.Server.MaxConnections > 0 {
		semaphore = make(chan struct{}, s.config.Server.MaxConnections)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	opts := s.retry
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Accept failed, retrying")
	}

	for {
		// Acquire a slot before accepting so excess clients wait in the backlog
		if semaphore != nil {
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
		}

		conn, err := retry.Do(ctx, listener.Accept, opts)
		if err != nil {
			if semaphore != nil {
				<-semaphore
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info().Msg("Listener closed, waiting for connections to finish")
				return nil
			}
			if !retry.IsTemporaryNetError(err) {
				s.logger.Error().Err(err).Msg("Accept failed")
				return fmt.Errorf("accept: %w", err)
			}
			// Out of retries on a transient error: keep serving after the longest wait
			s.logger.Error().Err(err).Dur("delay", opts.MaxDelay).Msg("Accept keeps failing, still listening")
			if !sleep(ctx, opts.MaxDelay) {
				return nil
			}
			continue
		}

		id := s.nextID.Add(1)
		wg.Add(1)
		go func(conn net.Conn) {
			defer wg.Done()
			if semaphore != nil {
				defer func() { <-semaphore }()
			}
			s.handler.ServeConn(ctx, id, conn)
		}(conn)
	}
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
