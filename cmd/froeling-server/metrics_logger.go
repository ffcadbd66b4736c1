package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-froeling-server/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"serial_tx", snap.SerialTx,
					"serial_rx", snap.SerialRx,
					"tcp_rx", snap.TCPRx,
					"tcp_tx", snap.TCPTx,
					"command_errors", snap.CommandErrors,
					"errors", snap.Errors,
					"clients", snap.Clients,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
