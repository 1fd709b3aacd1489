package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID represents a JSON-RPC ID that can be either a string or an integer.
// Fractional numeric ids are rejected on decode; MCP peers never produce them.
type RequestID struct {
	value any // string | int64
}

// NewRequestID creates a RequestID from a string or an integer value. Any
// other type yields a nil id.
func NewRequestID(value any) *RequestID {
	switch v := value.(type) {
	case string:
		return &RequestID{value: v}
	case int:
		return &RequestID{value: int64(v)}
	case int32:
		return &RequestID{value: int64(v)}
	case int64:
		return &RequestID{value: v}
	case uint32:
		return &RequestID{value: int64(v)}
	case uint64:
		return &RequestID{value: int64(v)}
	default:
		return &RequestID{}
	}
}

// String returns the canonical string form of the id. Numeric and string ids
// that print the same collapse to the same key, which is how peers echo them
// back in practice.
func (id *RequestID) String() string {
	if id == nil || id.value == nil {
		return ""
	}
	switch v := id.value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		panic("unreachable: RequestID contains unsupported type")
	}
}

// Value returns the underlying value (string or int64).
func (id *RequestID) Value() any {
	if id == nil {
		return nil
	}
	return id.value
}

// IsNil reports whether the id is absent.
func (id *RequestID) IsNil() bool {
	return id == nil || id.value == nil
}

// MarshalJSON implements json.Marshaler.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id == nil || id.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("JSON-RPC ID must be a string or number, got: %s", string(data))
		}
		id.value = str
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("JSON-RPC ID must be a string or number, got: %s", string(data))
	}
	n, err := num.Int64()
	if err != nil {
		return fmt.Errorf("JSON-RPC ID must be an integer or string, got: %s", string(data))
	}
	id.value = n
	return nil
}
