// Package logging builds the node's operational logger and protocol event
// emitter from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/meshpair/meshpair-go/internal/config"
	"github.com/meshpair/meshpair-go/pkg/log"
	"github.com/meshpair/meshpair-go/pkg/version"
)

// New creates the operational logger. If out is nil the destination is
// taken from cfg.Output.
func New(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	if out == nil {
		out = Output(cfg)
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "meshpair"),
		slog.String("protocol", version.Current),
	})
	return slog.New(handler)
}

// Output returns the writer named by cfg.Output: "stdout" or, by default,
// stderr.
func Output(cfg config.LoggingConfig) io.Writer {
	if strings.ToLower(cfg.Output) == "stdout" {
		return os.Stdout
	}
	return os.Stderr
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Events builds the protocol event emitter for a node session. Events go to
// the configured .mlog file and, when enabled, to logger at debug level.
// The returned close function flushes and closes the file.
func Events(cfg config.LoggingConfig, logger *slog.Logger, localName string) (*log.Emitter, func() error, error) {
	var sinks []log.Logger
	closeFn := func() error { return nil }

	if cfg.Events != "" {
		fl, err := log.NewFileLogger(cfg.Events)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, fl)
		closeFn = fl.Close
	}
	if cfg.EventsToLog && logger != nil {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}

	if len(sinks) == 0 {
		return nil, closeFn, nil
	}

	var sink log.Logger = sinks[0]
	if len(sinks) > 1 {
		sink = log.NewMultiLogger(sinks...)
	}
	return log.NewEmitter(sink, log.NewSessionID(), localName), closeFn, nil
}
