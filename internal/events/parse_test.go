package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseEvent_AllTypes(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	base := func(et EventType) BaseEvent {
		return BaseEvent{EventType: et, Time: now, Src: SourceController, RunID: "run-7"}
	}

	tests := []struct {
		name  string
		event Event
	}{
		{"RunStartEvent", &RunStartEvent{BaseEvent: base(EventRunStart), Name: "tool", Args: []string{"-v"}, MaxRetries: 3, RetrySeconds: 2}},
		{"RunEndEvent", &RunEndEvent{BaseEvent: base(EventRunEnd), State: "exhausted", ExitCode: 2, Attempts: 4, DurationMs: 1200}},
		{"AttemptStartEvent", &AttemptStartEvent{BaseEvent: base(EventAttemptStart), Attempt: 1, MaxRetries: 3}},
		{"AttemptEndEvent", &AttemptEndEvent{BaseEvent: base(EventAttemptEnd), Attempt: 1, Path: "/bin/tool", ExitCode: 1, Spawned: true}},
		{"OutputLineEvent", &OutputLineEvent{BaseEvent: base(EventOutputLine), Channel: ChannelWarning, Text: "oops"}},
		{"RetryWaitEvent", &RetryWaitEvent{BaseEvent: base(EventRetryWait), Remaining: 3, Retry: 1, MaxRetries: 3}},
		{"NoticeEvent", &NoticeEvent{BaseEvent: base(EventNotice), Text: "would execute"}},
		{"ErrorEvent", &ErrorEvent{BaseEvent: base(EventError), Message: "exit 1", Severity: SeverityWarning, Attempt: 1, ExitCode: 1}},
		{"ParseErrorEvent", &ParseErrorEvent{BaseEvent: base(EventParseError), Line: "{", Error: "unexpected end"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			parsed, err := ParseEvent(data)
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if parsed == nil {
				t.Fatal("ParseEvent returned nil")
			}
			if parsed.Type() != tt.event.Type() {
				t.Errorf("Type() = %s, want %s", parsed.Type(), tt.event.Type())
			}
			if !parsed.Timestamp().Equal(now) {
				t.Errorf("Timestamp() = %v, want %v", parsed.Timestamp(), now)
			}
			if got := GetRunID(parsed); got != "run-7" {
				t.Errorf("GetRunID() = %q, want run-7", got)
			}
		})
	}
}

func TestParseEvent_PreservesFields(t *testing.T) {
	line := []byte(`{"type":"attempt.end","timestamp":"2025-01-01T00:00:00Z","source":"controller","run_id":"r","attempt":2,"path":"/bin/tool","exit_code":3,"spawned":true,"duration_ms":15}`)

	ev, err := ParseEvent(line)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}

	end, ok := ev.(*AttemptEndEvent)
	if !ok {
		t.Fatalf("expected *AttemptEndEvent, got %T", ev)
	}
	if end.Attempt != 2 || end.ExitCode != 3 || !end.Spawned || end.Path != "/bin/tool" || end.DurationMs != 15 {
		t.Errorf("unexpected fields: %+v", end)
	}
}

func TestParseEvent_UnknownType(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"future.event","timestamp":"2025-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Errorf("expected nil event for unknown type, got %T", ev)
	}
}

func TestParseEvent_InvalidJSON(t *testing.T) {
	tests := []string{
		"",
		"not json",
		`{"type":`,
		`{"type":"attempt.end","attempt":"two"}`,
	}

	for _, line := range tests {
		if _, err := ParseEvent([]byte(line)); err == nil {
			t.Errorf("ParseEvent(%q) expected error", line)
		}
	}
}

func TestGetRunID_Nil(t *testing.T) {
	if got := GetRunID(nil); got != "" {
		t.Errorf("GetRunID(nil) = %q, want empty", got)
	}
}
