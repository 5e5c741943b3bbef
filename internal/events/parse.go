package events

import (
	"encoding/json"
	"log/slog"
)

// eventEnvelope is used for initial JSON parsing to determine event type.
type eventEnvelope struct {
	Type EventType `json:"type"`
}

// ParseEvent parses a JSON line into a typed Event.
// Returns nil with no error for unknown event types (for forward compatibility).
func ParseEvent(line []byte) (Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, err
	}

	var ev Event
	var err error

	switch envelope.Type {
	case EventRunStart:
		var e RunStartEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventRunEnd:
		var e RunEndEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventAttemptStart:
		var e AttemptStartEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventAttemptEnd:
		var e AttemptEndEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventOutputLine:
		var e OutputLineEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventRetryWait:
		var e RetryWaitEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventNotice:
		var e NoticeEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventError:
		var e ErrorEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventParseError:
		var e ParseErrorEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	default:
		slog.Debug("unknown event type", "type", envelope.Type)
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return ev, nil
}

// GetRunID extracts the run ID from an event, if present.
func GetRunID(ev Event) string {
	if ev == nil {
		return ""
	}
	if r, ok := ev.(interface{ runID() string }); ok {
		return r.runID()
	}
	return ""
}

func (e BaseEvent) runID() string {
	return e.RunID
}
