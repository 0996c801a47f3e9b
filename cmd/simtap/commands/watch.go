package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/simtap/simtap-go/pkg/capture"
	"github.com/simtap/simtap-go/pkg/connection"
	"github.com/simtap/simtap-go/pkg/monitor"
)

// RunWatch connects, subscribes to simIDs and prints every packet to out
// until ctx is cancelled. With cfg.Reconnect the connection is re-established
// with backoff and the SIMs are resubscribed after every reconnect.
func RunWatch(ctx context.Context, cfg Config, simIDs []string, out io.Writer, logger *slog.Logger) error {
	if len(simIDs) == 0 {
		return monitor.ErrNoSimIDs
	}

	sess, err := NewSession(cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	if cfg.MetricsAddr != "" {
		if _, err := sess.ServeMetrics(cfg.MetricsAddr); err != nil {
			return err
		}
	}

	var pw *capture.PcapWriter
	if cfg.PcapFile != "" {
		f, err := os.Create(cfg.PcapFile)
		if err != nil {
			return fmt.Errorf("failed to create pcap file: %w", err)
		}
		defer f.Close()
		if pw, err = capture.NewPcapWriter(f); err != nil {
			return err
		}
		logger.Info("writing pcap", "file", cfg.PcapFile)
	}
	printer := NewPacketPrinter(out, pw)

	if cfg.Reconnect {
		err = watchReconnecting(ctx, sess.Monitor, simIDs, printer, logger)
	} else {
		err = watchOnce(ctx, sess.Monitor, simIDs, printer, logger)
	}
	logger.Info("watch finished", "packets", printer.Count())
	return err
}

func watchOnce(ctx context.Context, mon *monitor.Monitor, simIDs []string, printer *PacketPrinter, logger *slog.Logger) error {
	if err := mon.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	return stream(ctx, mon, simIDs, printer, logger)
}

func watchReconnecting(ctx context.Context, mon *monitor.Monitor, simIDs []string, printer *PacketPrinter, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)

	mgr := connection.NewManager(mon.Connect, connection.ManagerConfig{
		Backoff: connection.DefaultBackoffConfig(),
		Logger:  logger,
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	mgr.OnReconnecting(func(attempt int, delay time.Duration) {
		logger.Info("reconnecting", "attempt", attempt, "delay", delay)
	})
	mgr.OnConnected(func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := stream(ctx, mon, simIDs, printer, logger)
			switch {
			case err == nil:
			case errors.Is(err, monitor.ErrDisconnected), errors.Is(err, monitor.ErrNotConnected):
				mgr.NotifyConnectionLost(err.Error())
			default:
				select {
				case errCh <- err:
				default:
				}
			}
		}()
	})

	defer func() {
		cancel()
		mgr.Close()
		wg.Wait()
	}()

	if err := mgr.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	mgr.Start()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// stream subscribes to simIDs and prints packets until the subscription
// ends. A cancelled ctx ends the stream without error.
func stream(ctx context.Context, mon *monitor.Monitor, simIDs []string, printer *PacketPrinter, logger *slog.Logger) error {
	sub, err := mon.SubscribeMany(ctx, simIDs)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer sub.Close()

	logger.Info("watching", "subscription", sub.ID(), "sims", sub.SimIDs())

	for pkt, err := range sub.Packets(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := printer.Print(pkt); err != nil {
			return err
		}
	}
	return nil
}
