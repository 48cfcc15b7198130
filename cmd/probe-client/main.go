package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/audiowire/streamprobe"
)

type cliArgs struct {
	url      string
	logLevel string
	timeout  time.Duration
}

func (a *cliArgs) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(a.logLevel)); err != nil {
		panic(fmt.Errorf("invalid log level [%s]: %w", a.logLevel, err))
	}
	return lvl
}

func initCLI() *cliArgs {
	args := cliArgs{
		url:      "ws://localhost:9090/audio",
		logLevel: "info",
		timeout:  10 * time.Second,
	}
	flag.StringVar(&args.url, "url", args.url, "websocket url")
	flag.StringVar(&args.logLevel, "log-level", args.logLevel, "log level")
	flag.DurationVar(&args.timeout, "timeout", args.timeout, "connect and reply timeout")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: args.LogLevel(),
	})))

	return &args
}

func main() {
	args := initCLI()

	err := streamprobe.RunProbe(context.Background(), streamprobe.ClientConfig{
		Dial: streamprobe.DialConfig{
			URL:            args.url,
			ConnectTimeout: args.timeout,
		},
		ReplyTimeout: args.timeout,
	})
	if err != nil {
		slog.Error("probe failed", slog.Any("err", err))
		os.Exit(1)
	}
}
