package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logToJSON(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsMessageEvent(t *testing.T) {
	entry := logToJSON(t, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionOut,
		Layer:        LayerEvent,
		Category:     CategoryMessage,
		SimID:        "000868942",
		Message:      &MessageEvent{Name: "subscribe:packets", Args: `["000868942"]`},
	})

	want := map[string]any{
		"msg":       "protocol",
		"conn_id":   "conn-123",
		"direction": "OUT",
		"layer":     "EVENT",
		"sim_id":    "000868942",
		"event":     "subscribe:packets",
		"args":      `["000868942"]`,
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %v", k, entry[k], v)
		}
	}
}

func TestSlogAdapterLogsFrameAndState(t *testing.T) {
	entry := logToJSON(t, Event{
		ConnectionID: "c",
		Frame:        &FrameEvent{Size: 256},
	})
	if entry["frame_size"] != float64(256) {
		t.Errorf("frame_size: got %v, want 256", entry["frame_size"])
	}

	entry = logToJSON(t, Event{
		ConnectionID: "c",
		StateChange:  &StateChangeEvent{Entity: StateEntityConnection, OldState: "CONNECTED", NewState: "DISCONNECTED", Reason: "io error"},
	})
	if entry["new_state"] != "DISCONNECTED" || entry["reason"] != "io error" {
		t.Errorf("state attrs = %v", entry)
	}

	entry = logToJSON(t, Event{
		ConnectionID: "c",
		ControlMsg:   &ControlMsgEvent{Type: ControlMsgPing},
	})
	if entry["ctrl_type"] != "PING" {
		t.Errorf("ctrl_type: got %v, want PING", entry["ctrl_type"])
	}
}

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(e Event) { r.events = append(r.events, e) }

func TestMultiLogger(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	m.Log(Event{ConnectionID: "1"})
	m.Log(Event{ConnectionID: "2"})

	if len(a.events) != 2 || len(b.events) != 2 {
		t.Errorf("got %d and %d events, want 2 each", len(a.events), len(b.events))
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	r := &recordingLogger{}
	if OrNoop(r) != Logger(r) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
}
