package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simtap/simtap-go/pkg/log"
	"github.com/simtap/simtap-go/pkg/metrics"
	"github.com/simtap/simtap-go/pkg/monitor"
	"github.com/simtap/simtap-go/pkg/socketio"
)

// Session wires a Socket.IO client, a monitor, the protocol log and the
// metrics registry for one CLI invocation.
type Session struct {
	Monitor  *monitor.Monitor
	Registry *prometheus.Registry

	logger  *slog.Logger
	fileLog *log.FileLogger
	server  *http.Server
}

// NewSession builds a monitor from cfg. Nothing is dialed until
// Monitor.Connect.
func NewSession(cfg Config, logger *slog.Logger) (*Session, error) {
	s := &Session{logger: logger}

	var plog log.Logger = log.NewSlogAdapter(logger)
	if cfg.ProtocolLog != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("failed to create protocol log: %w", err)
		}
		s.fileLog = fl
		plog = log.NewMultiLogger(plog, fl)
		logger.Info("protocol logging enabled", "file", cfg.ProtocolLog)
	}

	s.Registry = prometheus.NewRegistry()
	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := socketio.New(socketio.Config{
		URL:            cfg.URL,
		Path:           cfg.Path,
		Logger:         logger,
		ProtocolLogger: plog,
	})
	s.Monitor = monitor.New(client, monitor.Config{
		APIKey:         cfg.APIKey,
		AuthTimeout:    cfg.AuthTimeout,
		Logger:         logger,
		ProtocolLogger: plog,
		Metrics:        metrics.New(s.Registry),
	})
	return s, nil
}

// ServeMetrics exposes the registry at /metrics on addr and returns the
// bound address. The server stops on Close.
func (s *Session) ServeMetrics(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
	s.logger.Info("serving metrics", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

// Close shuts down the monitor, the metrics server and the protocol log.
func (s *Session) Close() error {
	errs := []error{s.Monitor.Close()}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, s.server.Shutdown(ctx))
		cancel()
	}
	if s.fileLog != nil {
		errs = append(errs, s.fileLog.Close())
		s.logger.Info("protocol log closed", "file", s.fileLog.Path(), "events", s.fileLog.Written())
	}
	return errors.Join(errs...)
}
