package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Server owns the TCP listener and the accept loop; each accepted
// connection is handed to a fresh Worker.
type Server struct {
	cfg Config

	mu       sync.Mutex
	listener net.Listener
	started  bool

	metricsSrv *http.Server

	wg sync.WaitGroup
}

// New returns a Server ready for Start. Unset Config fields take the
// defaults listed in Config.
func New(cfg Config) *Server {
	cfg.setDefaults()
	return &Server{cfg: cfg}
}

// Start binds the listener and spawns the accept loop in the background.
// It returns once the listener is bound, reporting any bind error;
// Addr reports the actual bound address afterward (useful when Config.Port
// is 0 for an ephemeral port).
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.started = true
	s.mu.Unlock()

	s.cfg.Logger.Info("server listening", slog.String("addr", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.acceptLoop(gctx)
	})

	if s.cfg.MetricsAddr != "" && s.cfg.Metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:         s.cfg.MetricsAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		s.mu.Lock()
		s.metricsSrv = srv
		s.mu.Unlock()

		s.cfg.Logger.Info("metrics listening", slog.String("addr", s.cfg.MetricsAddr))
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: metrics listener: %w", err)
			}
			return nil
		})
	}

	go func() {
		if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.cfg.Logger.Error("accept loop exited", slog.String("error", err.Error()))
		}
	}()

	return nil
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.cfg.Logger.Error("accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newWorker(&s.cfg, conn).Serve(ctx)
		}()
	}
}

// Addr returns the listener's bound address. It is nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight connections to drain,
// up to Config.ShutdownTimeout, returning ErrShutdownTimeout if they do
// not drain in time.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	ln := s.listener
	metricsSrv := s.metricsSrv
	s.mu.Unlock()

	if err := ln.Close(); err != nil {
		s.cfg.Logger.Error("error closing listener", slog.String("error", err.Error()))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			s.cfg.Logger.Error("error shutting down metrics listener", slog.String("error", err.Error()))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timeout := s.cfg.ShutdownTimeout
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
