package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/meshpair/meshpair-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
}

func TestFilterBySessionID(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, SessionID: "sess-1", Category: log.CategoryMessage},
		{Timestamp: ts, SessionID: "sess-2", Category: log.CategoryMessage},
		{Timestamp: ts, SessionID: "sess-1", Category: log.CategoryMessage},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.mlog")

	count, err := RunFilter(path, FilterOptions{Output: outPath, SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 events written, got %d", count)
	}

	for _, e := range readAll(t, outPath) {
		if e.SessionID != "sess-1" {
			t.Errorf("expected sess-1, got %s", e.SessionID)
		}
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, SessionID: "s"},
		{Timestamp: base.Add(5 * time.Minute), SessionID: "s"},
		{Timestamp: base.Add(10 * time.Minute), SessionID: "s"},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.mlog")

	count, err := RunFilter(path, FilterOptions{
		Output:    outPath,
		TimeStart: base.Add(time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(9 * time.Minute).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 event in range, got %d", count)
	}
}

func TestFilterByDeviceAndCategory(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, DeviceName: "a_3_0000000000000001", Layer: log.LayerBridge, Category: log.CategoryQueue,
			Queue: &log.QueueEvent{Outcome: log.QueueEnqueued}},
		{Timestamp: ts, DeviceName: "a_3_0000000000000001", Layer: log.LayerTable, Category: log.CategoryTable,
			Table: &log.TableEvent{Table: log.TableDirectory, Action: log.ActionAdd}},
		{Timestamp: ts, DeviceName: "a_4_0000000000000002", Layer: log.LayerBridge, Category: log.CategoryQueue,
			Queue: &log.QueueEvent{Outcome: log.QueueEnqueued}},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.mlog")

	count, err := RunFilter(path, FilterOptions{
		Output:     outPath,
		DeviceName: "a_3_0000000000000001",
		Category:   "queue",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event, got %d", count)
	}

	got := readAll(t, outPath)
	if len(got) != 1 || got[0].Queue == nil {
		t.Errorf("expected the queue event, got %+v", got)
	}
}

func TestFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, nil)
	outPath := filepath.Join(t.TempDir(), "filtered.mlog")

	for _, opts := range []FilterOptions{
		{Output: outPath, TimeStart: "yesterday"},
		{Output: outPath, TimeEnd: "tomorrow"},
		{Output: outPath, Layer: "wire"},
		{Output: outPath, Direction: "up"},
		{Output: outPath, Category: "state"},
	} {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
