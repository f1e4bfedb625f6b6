package slot

import (
	"encoding/json"
	"fmt"
)

// eventMessage is the Pub/Sub wire form of an Event.
// Values travel as JSON strings so that arbitrary bytes survive and absence
// stays distinguishable from an empty value.
type eventMessage struct {
	Source   string  `json:"source"`
	Area     string  `json:"area"`
	Key      string  `json:"key"`
	OldValue *string `json:"old_value"`
	NewValue *string `json:"new_value"`
}

// EventToJSON converts an Event to its broadcast payload.
func EventToJSON(e Event) ([]byte, error) {
	msg := eventMessage{
		Source:   e.Source,
		Area:     e.Area,
		Key:      e.Key,
		OldValue: valueToField(e.OldValue),
		NewValue: valueToField(e.NewValue),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal storage event: %w", err)
	}
	return data, nil
}

// JSONToEvent converts a broadcast payload back to an Event.
func JSONToEvent(data []byte) (Event, error) {
	var msg eventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal storage event: %w", err)
	}
	if msg.Key == "" {
		return Event{}, fmt.Errorf("storage event has no key")
	}

	return Event{
		Source:   msg.Source,
		Area:     msg.Area,
		Key:      msg.Key,
		OldValue: fieldToValue(msg.OldValue),
		NewValue: fieldToValue(msg.NewValue),
	}, nil
}

func valueToField(v Value) *string {
	if v.IsAbsent() {
		return nil
	}
	s := string(v)
	return &s
}

func fieldToValue(s *string) Value {
	if s == nil {
		return nil
	}
	return Value(*s)
}
