// Package codec converts producer-defined payload types to and from the
// storage-neutral structural representation (map of string to value) kept in
// the JSONB payload column.
//
// Encoding goes through JSON so timestamps serialize as RFC 3339 with
// nanosecond precision and round-trip without truncation. Decoding is
// lenient about unknown fields (forward compatibility for evolved payloads)
// and strict about type mismatches.
package codec

import (
	"encoding/json"
	"fmt"
)

// DecodeError reports a structural value that cannot satisfy the target
// payload shape. Replay treats it as a per-event, skippable failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode converts a typed payload into its structural representation.
// A nil payload encodes to an empty map.
func Encode(payload any) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("encode payload: not a record shape: %w", err)
	}
	return value, nil
}

// Decode converts a structural value back into the target payload type.
// Returns *DecodeError when the value cannot satisfy the target shape.
func Decode[T any](value map[string]any) (T, error) {
	var target T

	raw, err := json.Marshal(value)
	if err != nil {
		return target, &DecodeError{Err: err}
	}
	if err := json.Unmarshal(raw, &target); err != nil {
		return target, &DecodeError{Err: err}
	}
	return target, nil
}
