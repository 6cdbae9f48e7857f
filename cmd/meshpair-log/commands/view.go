// Package commands implements the meshpair-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/meshpair/meshpair-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Device    string
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Layer:      f.Layer,
		Direction:  f.Direction,
		Category:   f.Category,
		DeviceName: f.Device,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session] DIRECTION LAYER label
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	dir := ""
	if event.Direction != log.DirectionNone {
		dir = event.Direction.String()
	}

	fmt.Fprintf(w, "%s [%s] %-3s %s %s\n", ts, shortenSessionID(event.SessionID), dir, event.Layer.String(), eventLabel(event))

	if event.DeviceName != "" || event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Peer: %s", orDash(event.DeviceName))
		if event.RemoteAddr != "" {
			fmt.Fprintf(w, " at %s", event.RemoteAddr)
		}
		fmt.Fprintln(w)
	}

	switch {
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.Table != nil:
		formatTableDetails(w, event.Table)
	case event.Queue != nil:
		formatQueueDetails(w, event.Queue)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// eventLabel names the event for headers and exports.
func eventLabel(event log.Event) string {
	switch {
	case event.Message != nil:
		return event.Message.Kind
	case event.Table != nil:
		return event.Table.Table.String() + " " + event.Table.Action.String()
	case event.Queue != nil:
		return "QUEUE " + event.Queue.Outcome.String()
	case event.Error != nil:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.Token != "" {
		fmt.Fprintf(w, "  Token: %s\n", msg.Token)
	}
	if msg.Path != "" {
		fmt.Fprintf(w, "  Path: %s\n", msg.Path)
	}
	if msg.Status != "" {
		fmt.Fprintf(w, "  Status: %s\n", msg.Status)
	}
	if msg.PayloadSize > 0 {
		fmt.Fprintf(w, "  Payload: %d bytes\n", msg.PayloadSize)
	}
}

func formatTableDetails(w io.Writer, t *log.TableEvent) {
	if t.Slot >= 0 {
		fmt.Fprintf(w, "  Slot: %d\n", t.Slot)
	}
	if t.Resource != 0 {
		fmt.Fprintf(w, "  Resource: %d\n", t.Resource)
	}
	if t.Token != "" {
		fmt.Fprintf(w, "  Token: %s\n", t.Token)
	}
	if t.Detail != "" {
		fmt.Fprintf(w, "  Detail: %s\n", t.Detail)
	}
}

func formatQueueDetails(w io.Writer, q *log.QueueEvent) {
	fmt.Fprintf(w, "  Depth: %d\n", q.Depth)
	if q.Slot != nil {
		fmt.Fprintf(w, "  Slot: %d\n", *q.Slot)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	return parseLayer(s)
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "table":
		return log.LayerTable, nil
	case "bridge":
		return log.LayerBridge, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, table, or bridge)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseDirection(s)
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "table":
		return log.CategoryTable, nil
	case "queue":
		return log.CategoryQueue, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, table, queue, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
