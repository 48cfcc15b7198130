package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/audiowire/streamprobe"
)

type cliArgs struct {
	addr           string
	path           string
	anyPath        bool
	logLevel       string
	reportInterval time.Duration
	welcome        bool
	synthetic      bool
	echo           bool
}

func (a *cliArgs) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(a.logLevel)); err != nil {
		panic(fmt.Errorf("invalid log level [%s]: %w", a.logLevel, err))
	}
	return lvl
}

func (a *cliArgs) options() []streamprobe.Option {
	opts := []streamprobe.Option{
		streamprobe.WithAddr(a.addr),
		streamprobe.WithPath(a.path),
		streamprobe.WithWelcome(a.welcome),
		streamprobe.WithSyntheticEvents(a.synthetic),
		streamprobe.WithAudioEcho(a.echo),
		streamprobe.WithReportInterval(a.reportInterval),
	}
	if a.anyPath {
		opts = append(opts, streamprobe.WithAnyPath())
	}
	return opts
}

func initCLI() *cliArgs {
	args := cliArgs{
		addr:           "0.0.0.0:9090",
		path:           "/audio",
		logLevel:       "info",
		reportInterval: 10 * time.Second,
		synthetic:      true,
	}
	flag.StringVar(&args.addr, "addr", args.addr, "listen address")
	flag.StringVar(&args.path, "path", args.path, "websocket upgrade path")
	flag.BoolVar(&args.anyPath, "any-path", args.anyPath, "accept upgrades on any path")
	flag.StringVar(&args.logLevel, "log-level", args.logLevel, "log level")
	flag.DurationVar(&args.reportInterval, "report-interval", args.reportInterval, "stats reporting interval")
	flag.BoolVar(&args.welcome, "welcome", args.welcome, "send connection_established event after accept")
	flag.BoolVar(&args.synthetic, "synthetic", args.synthetic, "inject synthetic test events on the message-count schedule")
	flag.BoolVar(&args.echo, "echo", args.echo, "echo received audio frames back to the peer")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: args.LogLevel(),
	})))

	return &args
}

func main() {
	args := initCLI()

	srv := streamprobe.NewServer(args.options()...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		slog.Error("failed to start server", slog.Any("err", err))
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	select {
	case <-sig:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", slog.Any("err", err))
	}
}
