package streamprobe

import (
	"log/slog"
	"time"
)

type serverOptions struct {
	addr            string
	path            string
	anyPath         bool
	welcome         bool
	syntheticEvents bool
	audioEcho       bool
	echoBufferSize  int
	reportInterval  time.Duration
	logger          *slog.Logger
}

type Option func(opts *serverOptions)

func defaultOptions() serverOptions {
	return serverOptions{
		addr:            "0.0.0.0:9090",
		path:            "/audio",
		syntheticEvents: true,
		echoBufferSize:  1024 * 1024,
		reportInterval:  10 * time.Second,
		logger:          slog.Default(),
	}
}

func WithAddr(addr string) Option {
	return func(opts *serverOptions) {
		opts.addr = addr
	}
}

// WithPath sets the websocket upgrade path. Requests to any other path are
// rejected with 404.
func WithPath(path string) Option {
	return func(opts *serverOptions) {
		opts.path = path
	}
}

// WithAnyPath accepts upgrades on every path.
func WithAnyPath() Option {
	return func(opts *serverOptions) {
		opts.anyPath = true
	}
}

// WithWelcome sends a connection_established event right after accept.
func WithWelcome(enabled bool) Option {
	return func(opts *serverOptions) {
		opts.welcome = enabled
	}
}

// WithSyntheticEvents toggles the injection of transcription.send and
// media.play test events on the global message-count schedule.
func WithSyntheticEvents(enabled bool) Option {
	return func(opts *serverOptions) {
		opts.syntheticEvents = enabled
	}
}

// WithAudioEcho sends received audio frames back to the peer.
func WithAudioEcho(enabled bool) Option {
	return func(opts *serverOptions) {
		opts.audioEcho = enabled
	}
}

func WithEchoBufferSize(size int) Option {
	return func(opts *serverOptions) {
		opts.echoBufferSize = size
	}
}

func WithReportInterval(interval time.Duration) Option {
	return func(opts *serverOptions) {
		opts.reportInterval = interval
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *serverOptions) {
		opts.logger = logger
	}
}
