package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is an identifier the backend sends either as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("model: invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// backendLayouts are the timestamp formats the backend is known to emit.
var backendLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp accepts RFC 3339 and the backend's "YYYY-MM-DD hh:mm:ss" form.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			t.Time = time.Time{}
			return nil
		}
		return fmt.Errorf("model: invalid timestamp %s: %w", data, err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range backendLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("model: unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
