package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meshpair/meshpair-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.mlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func exportEvents(t *testing.T, events []log.Event, format string) string {
	t.Helper()
	reader, err := log.NewReader(createTestLogFile(t, events))
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if err := export(reader, format, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	return buf.String()
}

func TestExportToJSONL(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 1, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp: ts,
			SessionID: "abc12345",
			Direction: log.DirectionIn,
			Layer:     log.LayerTransport,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Kind: "OBSERVE", Token: "00000001", Path: "state"},
		},
		{
			Timestamp: ts.Add(time.Millisecond),
			SessionID: "abc12345",
			Layer:     log.LayerTable,
			Category:  log.CategoryTable,
			Table:     &log.TableEvent{Table: log.TableRegistry, Action: log.ActionAdd, Slot: 0},
		},
	}

	output := exportEvents(t, events, "jsonl")
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), output)
	}

	var decoded log.Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if decoded.SessionID != "abc12345" {
		t.Errorf("expected session abc12345, got %s", decoded.SessionID)
	}
	if decoded.Message == nil || decoded.Message.Path != "state" {
		t.Errorf("expected message with path state, got %+v", decoded.Message)
	}
}

func TestExportToCSV(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 1, 0, time.UTC)
	slot := 1
	events := []log.Event{
		{
			Timestamp:  ts,
			SessionID:  "s1",
			Direction:  log.DirectionOut,
			Layer:      log.LayerTransport,
			Category:   log.CategoryMessage,
			DeviceName: "hall_3_aabbccddeeff0011",
			RemoteAddr: "[fd00::1]:5683",
			Message:    &log.MessageEvent{Kind: "NOTIFICATION", Token: "0000000a"},
		},
		{
			Timestamp: ts,
			SessionID: "s1",
			Layer:     log.LayerBridge,
			Category:  log.CategoryQueue,
			Queue:     &log.QueueEvent{Outcome: log.QueuePaired, Slot: &slot},
		},
	}

	records, err := csv.NewReader(strings.NewReader(exportEvents(t, events, "csv"))).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(records))
	}
	if records[0][0] != "timestamp" || records[0][7] != "event" {
		t.Errorf("unexpected header: %v", records[0])
	}

	row := records[1]
	if row[2] != "OUT" || row[3] != "TRANSPORT" || row[5] != "hall_3_aabbccddeeff0011" {
		t.Errorf("unexpected message row: %v", row)
	}
	if row[7] != "NOTIFICATION" || row[8] != "0000000a" {
		t.Errorf("unexpected message columns: %v", row)
	}

	row = records[2]
	if row[7] != "QUEUE PAIRED" || row[9] != "1" {
		t.Errorf("unexpected queue row: %v", row)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	if err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out")); err == nil {
		t.Error("expected error for unknown format")
	}
}
