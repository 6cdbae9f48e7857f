package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Direction != DirectionNone {
		attrs = append(attrs, slog.String("direction", event.Direction.String()))
	}
	if event.DeviceName != "" {
		attrs = append(attrs, slog.String("device", event.DeviceName))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Message != nil:
		attrs = append(attrs, slog.String("kind", event.Message.Kind))
		if event.Message.Token != "" {
			attrs = append(attrs, slog.String("token", event.Message.Token))
		}
		if event.Message.Path != "" {
			attrs = append(attrs, slog.String("path", event.Message.Path))
		}
		if event.Message.Status != "" {
			attrs = append(attrs, slog.String("status", event.Message.Status))
		}
		attrs = append(attrs, slog.Int("payload_size", event.Message.PayloadSize))
	case event.Table != nil:
		attrs = append(attrs,
			slog.String("table", event.Table.Table.String()),
			slog.String("action", event.Table.Action.String()),
			slog.Int("slot", event.Table.Slot),
		)
		if event.Table.Resource != 0 {
			attrs = append(attrs, slog.Int("resource", int(event.Table.Resource)))
		}
		if event.Table.Token != "" {
			attrs = append(attrs, slog.String("token", event.Table.Token))
		}
		if event.Table.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Table.Detail))
		}
	case event.Queue != nil:
		attrs = append(attrs,
			slog.String("outcome", event.Queue.Outcome.String()),
			slog.Int("depth", event.Queue.Depth),
		)
		if event.Queue.Slot != nil {
			attrs = append(attrs, slog.Int("slot", *event.Queue.Slot))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "event", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
