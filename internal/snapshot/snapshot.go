// Package snapshot wraps persisted state in a versioned JSON envelope:
//
//	{"version": 1, "<field>": ...}
//
// A bare JSON array is the legacy, untagged form (version 0) and is still
// accepted on read.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the envelope version written by this build.
const Version = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrMalformed          = errors.New("malformed snapshot")
)

// Encode wraps v under field in a current-version envelope.
func Encode(field string, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}

	b, err := json.Marshal(map[string]json.RawMessage{
		"version": json.RawMessage(fmt.Sprint(Version)),
		field:     payload,
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(b), nil
}

// Decode unmarshals field of the envelope in raw into out and reports the
// version it was written with.
func Decode(raw, field string, out any) (int, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrMalformed)
	}

	if data[0] == '[' {
		if err := json.Unmarshal(data, out); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return 0, nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var version int
	if err := json.Unmarshal(env["version"], &version); err != nil {
		return 0, fmt.Errorf("%w: version: %v", ErrMalformed, err)
	}
	if version < 1 || version > Version {
		return version, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	payload, ok := env[field]
	if !ok || bytes.Equal(payload, []byte("null")) {
		return version, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return version, fmt.Errorf("%w: %s: %v", ErrMalformed, field, err)
	}
	return version, nil
}
