package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kstaniek/go-froeling-server/internal/client"
	"github.com/kstaniek/go-froeling-server/internal/metrics"
	"github.com/kstaniek/go-froeling-server/internal/proxy"
	"github.com/kstaniek/go-froeling-server/internal/serial"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("froeling-server %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	sp, err := serial.Open(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		l.Error("serial_open_error", "device", cfg.serialDev, "error", err)
		os.Exit(1)
	}
	defer func() { _ = sp.Close() }()
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud, "read_timeout", cfg.serialReadTO)

	ch := serial.NewChannel(sp, cfg.serialReadTO)
	cl := client.New(ch,
		client.WithChecksumValidation(cfg.validateCRC),
		client.WithLogger(l),
	)

	if cfg.queryState {
		if err := printState(ctx, cl); err != nil {
			l.Error("state_query_error", "error", err)
			os.Exit(1)
		}
	}
	if cfg.queryValues {
		if err := printValues(ctx, cl); err != nil {
			l.Error("values_query_error", "error", err)
			os.Exit(1)
		}
	}
	if cfg.listenAddr == "" {
		if !cfg.queryState && !cfg.queryValues {
			l.Warn("nothing_to_do", "hint", "pass -listen, -state or -values")
		}
		return
	}

	srv := proxy.NewServer(
		proxy.WithSender(cl),
		proxy.WithLogger(l),
		proxy.WithMaxClients(cfg.maxClients),
		proxy.WithReadDeadline(cfg.clientReadTO),
	)
	srv.SetListenAddr(cfg.listenAddr)
	go func() {
		if err := srv.Serve(ctx); err != nil {
			l.Error("tcp_server_error", "error", err)
			cancel()
		}
	}()

	// Start mDNS advertisement once the listener is ready.
	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		addr := srv.Addr()
		var portNum int
		if _, p, err := net.SplitHostPort(addr); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				portNum = pn
			}
		}
		if portNum == 0 { // fallback attempt if format unexpected
			lastColon := strings.LastIndex(addr, ":")
			if lastColon >= 0 {
				if pn, perr := strconv.Atoi(addr[lastColon+1:]); perr == nil {
					portNum = pn
				}
			}
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	// Ready when the listener is bound and context not cancelled.
	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
	case <-ctx.Done():
	}
	cancel()
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		l.Warn("shutdown_error", "error", err)
	}
	wg.Wait()
}
