package slot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes v into its slot representation.
// A nil v, including a typed nil such as a nil pointer or map, encodes to
// absence, as does anything that marshals to JSON null. Value is passed
// through untouched; everything else is JSON-encoded.
func Encode(v any) (Value, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case Value:
		return tv.Clone(), nil
	case json.RawMessage:
		if tv == nil || isJSONNull(tv) {
			return nil, nil
		}
		return Value(tv).Clone(), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode slot value: %w", err)
	}
	if isJSONNull(data) {
		return nil, nil
	}
	return Value(data), nil
}

var jsonNull = []byte("null")

func isJSONNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), jsonNull)
}

// Decode is the identity: the slot hands back exactly what was stored.
func Decode(v Value) Value {
	return v
}

// DecodeInto unmarshals a JSON value into dst.
// Returns false without touching dst when v is absent.
func DecodeInto(v Value, dst any) (bool, error) {
	if v.IsAbsent() {
		return false, nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return false, fmt.Errorf("failed to decode slot value: %w", err)
	}
	return true, nil
}
