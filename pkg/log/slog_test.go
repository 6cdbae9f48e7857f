package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decodeJSONLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func newJSONSlog(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestSlogAdapterMessageEvent(t *testing.T) {
	var buf bytes.Buffer
	NewSlogAdapter(newJSONSlog(&buf)).Log(Event{
		SessionID:  "s1",
		Direction:  DirectionOut,
		Layer:      LayerTransport,
		Category:   CategoryMessage,
		RemoteAddr: "fd00::1",
		Message:    &MessageEvent{Kind: "NOTIFICATION", Token: "01020304", PayloadSize: 1},
	})

	entry := decodeJSONLine(t, &buf)
	if entry["direction"] != "OUT" {
		t.Errorf("direction = %v", entry["direction"])
	}
	if entry["kind"] != "NOTIFICATION" {
		t.Errorf("kind = %v", entry["kind"])
	}
	if entry["token"] != "01020304" {
		t.Errorf("token = %v", entry["token"])
	}
	if entry["payload_size"] != float64(1) {
		t.Errorf("payload_size = %v", entry["payload_size"])
	}
}

func TestSlogAdapterTableEventOmitsDirection(t *testing.T) {
	var buf bytes.Buffer
	NewSlogAdapter(newJSONSlog(&buf)).Log(Event{
		Layer:    LayerTable,
		Category: CategoryTable,
		Table:    &TableEvent{Table: TableRegistry, Action: ActionUpdate, Slot: 4, Detail: "TOKEN_UPDATED"},
	})

	entry := decodeJSONLine(t, &buf)
	if _, ok := entry["direction"]; ok {
		t.Error("direction logged for local event")
	}
	if entry["table"] != "REGISTRY" || entry["action"] != "UPDATE" {
		t.Errorf("table/action = %v/%v", entry["table"], entry["action"])
	}
	if entry["slot"] != float64(4) {
		t.Errorf("slot = %v", entry["slot"])
	}
}

func TestSlogAdapterQueueEvent(t *testing.T) {
	var buf bytes.Buffer
	NewSlogAdapter(newJSONSlog(&buf)).Log(Event{
		Layer:    LayerBridge,
		Category: CategoryQueue,
		Queue:    &QueueEvent{Outcome: QueueDropped, Depth: 9},
	})

	entry := decodeJSONLine(t, &buf)
	if entry["outcome"] != "DROPPED" || entry["depth"] != float64(9) {
		t.Errorf("outcome/depth = %v/%v", entry["outcome"], entry["depth"])
	}
}
