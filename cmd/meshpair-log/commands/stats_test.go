package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/meshpair/meshpair-go/pkg/log"
)

func TestRunStats(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	slot := 0
	events := []log.Event{
		{Timestamp: base, SessionID: "session-aaaa", LocalName: "hall_2_0011223344556677", Layer: log.LayerBridge,
			Category: log.CategoryQueue, DeviceName: "hall_3_aabbccddeeff0011",
			Queue: &log.QueueEvent{Outcome: log.QueueEnqueued, Depth: 1}},
		{Timestamp: base.Add(100 * time.Millisecond), SessionID: "session-aaaa", LocalName: "hall_2_0011223344556677",
			Layer: log.LayerBridge, Category: log.CategoryQueue, DeviceName: "hall_3_aabbccddeeff0011",
			Queue: &log.QueueEvent{Outcome: log.QueuePaired, Slot: &slot}},
		{Timestamp: base.Add(time.Second), SessionID: "session-aaaa", LocalName: "hall_2_0011223344556677",
			Direction: log.DirectionIn, Layer: log.LayerTransport, Category: log.CategoryMessage,
			DeviceName: "hall_3_aabbccddeeff0011", Message: &log.MessageEvent{Kind: "OBSERVE"}},
		{Timestamp: base.Add(2 * time.Second), SessionID: "session-aaaa", Layer: log.LayerTransport,
			Category: log.CategoryError, Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "boom"}},
	}

	var buf bytes.Buffer
	if err := RunStats(createTestLogFile(t, events), &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 4",
		"Duration:   2s",
		"BRIDGE:",
		"TRANSPORT:",
		"QUEUE:",
		"ENQUEUED:",
		"PAIRED:",
		"Sessions: 1",
		"[session-] hall_2_0011223344556677 4 events",
		"Peers: 1",
		"hall_3_aabbccddeeff0011",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestRunStatsEmptyFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunStats(createTestLogFile(t, nil), &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Total Events: 0") {
		t.Errorf("expected zero events, got: %s", output)
	}
	if strings.Contains(output, "Time Range") {
		t.Errorf("expected no time range for empty log, got: %s", output)
	}
}
