package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Manager owns one HTTP listener for the lifetime of the process. The
// proxy runs two of them, the API server and the metrics server, and
// shuts both down on the same signal.
type Manager struct {
	srv    *http.Server
	ln     net.Listener
	fail   chan error
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// Config bounds one listener. Name is only used in logs to tell the API
// and metrics listeners apart.
type Config struct {
	Name            string        `yaml:"name" json:"name"`
	Addr            string        `yaml:"addr" json:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" json:"max_header_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns the listener bounds used when a field is left unset.
func DefaultConfig() Config {
	return Config{
		Name:            "api",
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: 30 * time.Second,
	}
}

// NewManager wraps handler in an http.Server bounded by cfg. The server
// does not listen until Start.
func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if cfg.Name == "" {
		cfg.Name = "api"
	}
	return &Manager{
		srv: &http.Server{
			Addr:           cfg.Addr,
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		fail:   make(chan error, 1),
		cfg:    cfg,
		logger: logger.With(zap.String("listener", cfg.Name)),
	}
}

// Start binds the address and begins serving in the background. Starting
// twice, or after Shutdown, is an error.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("listener %s is closed", m.cfg.Name)
	}
	if m.ln != nil {
		return fmt.Errorf("listener %s already started", m.cfg.Name)
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.cfg.Addr, err)
	}
	m.ln = ln

	m.logger.Info("listening", zap.String("addr", m.cfg.Addr))

	go func() {
		if err := m.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.logger.Error("serve failed", zap.Error(err))
			select {
			case m.fail <- err:
			default:
			}
		}
	}()

	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
// Calling it again is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	m.logger.Info("draining")

	drainCtx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	if err := m.srv.Shutdown(drainCtx); err != nil {
		m.logger.Error("drain failed", zap.Error(err))
		return err
	}
	m.ln = nil

	m.logger.Info("stopped")
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM arrives or the serve loop
// fails, then shuts the listener down.
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-m.fail:
		if err != nil {
			m.logger.Error("listener exited unexpectedly", zap.Error(err))
		}
	}

	if err := m.Shutdown(context.Background()); err != nil {
		m.logger.Error("shutdown error", zap.Error(err))
	}
}

// Errors exposes asynchronous serve failures.
func (m *Manager) Errors() <-chan error {
	return m.fail
}

// Addr returns the configured listen address.
func (m *Manager) Addr() string {
	return m.cfg.Addr
}

// IsRunning reports whether the listener has not been shut down.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}
