package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pingpong/internal/api"
	"pingpong/internal/config"
	"pingpong/internal/output"
	"pingpong/internal/pingpong"
	"pingpong/internal/procmgr"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == config.ResponderCommand {
		os.Exit(runResponder(os.Args[2:]))
	}

	cfg := config.Parse()
	os.Exit(run(cfg))
}

func run(cfg config.Config) int {
	if cfg.MetricsPort > 0 {
		if err := output.StartMetricsServer(cfg.MetricsPort); err != nil {
			slog.Error("Failed to start metrics server", "error", err)
		} else {
			slog.Info("Metrics server started", "port", cfg.MetricsPort)
		}
	}

	dispatcher := output.NewDispatcher(output.Options{
		FileOutput:   cfg.FileOutput,
		MaxRecords:   cfg.MaxRecordsFileOutput,
		LokiEndpoint: cfg.LokiEndpoint,
	})
	defer dispatcher.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var (
		spawner pingpong.Spawner
		peers   api.PeerSource
	)
	switch cfg.Mode {
	case config.ModeGoroutine:
		spawner = pingpong.GoroutineSpawner{Session: cfg.Session, Observer: dispatcher}
	default:
		registry, err := procmgr.New("", 5*time.Second)
		if err != nil {
			slog.Error("Failed to set up process registry", "op", pingpong.OpSpawn, "error", err)
			return 1
		}
		registry.StartLivenessMonitor(ctx)
		peers = registry
		spawner = pingpong.ProcessSpawner{
			Registry: registry,
			Args:     func(addr string) []string { return config.ResponderArgs(cfg, addr) },
		}
	}

	if cfg.RESTPort > 0 {
		server := api.New(dispatcher, peers, cfg.RESTPort)
		if err := server.Start(); err != nil {
			slog.Error("Failed to start REST server", "error", err)
		} else {
			slog.Info("REST API server started", "port", cfg.RESTPort)
		}
	}

	slog.Info("Starting TCP ping-pong", "addr", cfg.Addr(), "rounds", cfg.Rounds, "mode", cfg.Mode)

	report, err := pingpong.Run(ctx, cfg.Session, spawner, dispatcher)
	if err != nil {
		slog.Error("Ping-pong failed", "op", pingpong.OpOf(err), "error", err)
		return 1
	}

	slog.Info("TCP ping-pong complete",
		"sent", report.Initiator.Sent,
		"received", report.Initiator.Received,
		"rounds", report.Initiator.Rounds,
	)
	return 0
}

func runResponder(args []string) int {
	config.InitLogger(false)

	r, err := config.ParseResponder(args)
	if err != nil {
		slog.Error("Invalid responder arguments", "error", err)
		return 2
	}
	config.InitLogger(r.SilenceStdout)

	dispatcher := output.NewDispatcher(output.Options{
		FileOutput:   r.FileOutput,
		MaxRecords:   r.MaxRecordsFileOutput,
		LokiEndpoint: r.LokiEndpoint,
	})
	defer dispatcher.Close()

	ctx, cancel := signalContext()
	defer cancel()

	stats, err := pingpong.Respond(ctx, r.Addr, r.Session, dispatcher)
	if err != nil {
		slog.Error("Responder failed", "op", pingpong.OpOf(err), "error", err)
		return 1
	}

	slog.Info("Responder done", "sent", stats.Sent, "received", stats.Received, "rounds", stats.Rounds)
	return 0
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		select {
		case <-c:
			slog.Info("Interrupt received")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx, cancel
}
